package fixture

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// AutoloadEntry maps a fully qualified class name to the file defining it,
// relative to the workspace.
type AutoloadEntry struct {
	Class string
	File  string
}

var autoloadTemplate = template.Must(template.New("autoload").Funcs(template.FuncMap{
	"php": phpString,
}).Parse(`<?php
spl_autoload_register(function(string $class) {
    /** @var ?array<string,string> $classes */
    static $classes = null;
    if (null === $classes) {
        $classes = [{{range .}}
            {{php .Class}} => {{php .File}},{{end}}
        ];
    }
    if (array_key_exists($class, $classes)) {
        /** @psalm-suppress UnresolvableInclude */
        include $classes[$class];
    }
});
`))

var phpEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// phpString renders s as a single-quoted PHP string literal.
func phpString(s string) string {
	return "'" + phpEscaper.Replace(s) + "'"
}

// RenderAutoloadMap returns the source of a class-map autoloader.
func RenderAutoloadMap(entries []AutoloadEntry) (string, error) {
	var buf bytes.Buffer
	if err := autoloadTemplate.Execute(&buf, entries); err != nil {
		return "", fmt.Errorf("rendering autoload map: %w", err)
	}
	return buf.String(), nil
}

// WriteAutoloadMap writes autoload.php for entries.
func (w *Workspace) WriteAutoloadMap(entries []AutoloadEntry) error {
	src, err := RenderAutoloadMap(entries)
	if err != nil {
		return err
	}
	return w.write(AutoloadFile, src)
}
