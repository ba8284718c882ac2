package acceptance

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FeatureExt is the file extension of feature files.
const FeatureExt = ".feature"

// FindFeatureFiles expands paths into a sorted, de-duplicated list of feature
// files. Directories are walked recursively; files are taken as given.
func FindFeatureFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var found []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			found = append(found, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("finding feature files: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(root))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == FeatureExt {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("finding feature files under %s: %w", root, err)
		}
	}

	sort.Strings(found)
	return found, nil
}
