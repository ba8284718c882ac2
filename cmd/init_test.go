package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/config"
)

// mockInitIO is a test double for InitIO.
type mockInitIO struct {
	configExists   bool
	configStatErr  error
	featureExists  bool
	featureStatErr error
	mkdirErr       error
	writeErrFor    map[string]error  // keyed by filepath.Base
	written        map[string]string // keyed by filepath.Base
	dirs           []string
}

func newMockInitIO() *mockInitIO {
	return &mockInitIO{
		writeErrFor: make(map[string]error),
		written:     make(map[string]string),
	}
}

func (m *mockInitIO) StatFile(path string) (bool, error) {
	switch filepath.Base(path) {
	case "psalmspec.yml":
		return m.configExists, m.configStatErr
	case "Example.feature":
		return m.featureExists, m.featureStatErr
	default:
		return false, nil
	}
}

func (m *mockInitIO) MkdirAll(path string) error {
	m.dirs = append(m.dirs, path)
	return m.mkdirErr
}

func (m *mockInitIO) WriteFileAtomic(path, content string) error {
	base := filepath.Base(path)
	if err, ok := m.writeErrFor[base]; ok {
		return err
	}
	m.written[base] = content
	return nil
}

func TestNewInitCmd_HasRequiredFlags(t *testing.T) {
	c := NewInitCmd(nil)
	required := []string{"project", "force"}
	for _, name := range required {
		name := name
		t.Run(name, func(t *testing.T) {
			if c.Flags().Lookup(name) == nil {
				t.Errorf("expected --%s flag on init command", name)
			}
		})
	}
}

func TestNewInitCmd_GetCWDError(t *testing.T) {
	mock := newMockInitIO()
	c := newInitCmdWithGetCWD(mock, func() (string, error) {
		return "", errors.New("getwd failed")
	})
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))

	if err := c.Execute(); err == nil {
		t.Error("expected error when getwd fails")
	}
}

func TestNewInitCmd_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		configExists  bool
		configStatErr error
		featureExists bool
		mkdirErr      error
		writeErrFor   map[string]error
		force         bool
		wantErr       bool
		wantConfig    bool
		wantFeature   bool
		wantStdout    string
		wantStderrHas string
	}{
		{
			name:        "no files creates both",
			wantConfig:  true,
			wantFeature: true,
			wantStdout:  "Initialized",
		},
		{
			name:         "config exists no force errors",
			configExists: true,
			wantErr:      true,
		},
		{
			name:          "config stat error",
			configStatErr: errors.New("permission denied"),
			wantErr:       true,
		},
		{
			name:          "feature exists only writes config",
			featureExists: true,
			wantConfig:    true,
			wantFeature:   false,
			wantStdout:    "Initialized",
		},
		{
			name:          "force overwrites both with warning",
			configExists:  true,
			featureExists: true,
			force:         true,
			wantConfig:    true,
			wantFeature:   true,
			wantStdout:    "Initialized",
			wantStderrHas: "warning",
		},
		{
			name:        "config write error",
			writeErrFor: map[string]error{"psalmspec.yml": errors.New("permission denied")},
			wantErr:     true,
		},
		{
			name:       "mkdir error",
			mkdirErr:   errors.New("read-only file system"),
			wantErr:    true,
			wantConfig: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockInitIO()
			mock.configExists = tt.configExists
			mock.configStatErr = tt.configStatErr
			mock.featureExists = tt.featureExists
			mock.mkdirErr = tt.mkdirErr
			if tt.writeErrFor != nil {
				mock.writeErrFor = tt.writeErrFor
			}

			c := newInitCmdWithGetCWD(mock, func() (string, error) { return ".", nil })
			out := new(bytes.Buffer)
			errOut := new(bytes.Buffer)
			c.SetOut(out)
			c.SetErr(errOut)

			args := []string{"--project", "."}
			if tt.force {
				args = append(args, "--force")
			}
			c.SetArgs(args)

			err := c.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}

			if _, ok := mock.written["psalmspec.yml"]; ok != tt.wantConfig {
				t.Errorf("psalmspec.yml written = %v, want %v", ok, tt.wantConfig)
			}
			if _, ok := mock.written["Example.feature"]; ok != tt.wantFeature {
				t.Errorf("Example.feature written = %v, want %v", ok, tt.wantFeature)
			}

			if tt.wantStdout != "" && !strings.Contains(out.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want to contain %q", out.String(), tt.wantStdout)
			}
			if tt.wantStderrHas != "" && !strings.Contains(strings.ToLower(errOut.String()), tt.wantStderrHas) {
				t.Errorf("stderr = %q, want to contain %q", errOut.String(), tt.wantStderrHas)
			}
		})
	}
}

func TestNewInitCmd_WritesLoadableFiles(t *testing.T) {
	mock := newMockInitIO()
	c := newInitCmdWithGetCWD(mock, func() (string, error) { return "/project", nil })
	c.SetOut(new(bytes.Buffer))
	c.SetArgs([]string{})

	if err := c.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cfg, err := config.Parse([]byte(mock.written["psalmspec.yml"]), ".yml")
	if err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("written config = %+v, want defaults", cfg)
	}

	feature, err := acceptance.ParseFeature(mock.written["Example.feature"], "Example.feature")
	if err != nil {
		t.Fatalf("example feature does not parse: %v", err)
	}
	if len(feature.Scenarios) != 1 {
		t.Errorf("len(Scenarios) = %d, want 1", len(feature.Scenarios))
	}

	wantDir := filepath.Join("/project", "tests", "acceptance")
	if len(mock.dirs) != 1 || mock.dirs[0] != wantDir {
		t.Errorf("MkdirAll calls = %q, want [%q]", mock.dirs, wantDir)
	}
}

func TestNewInitCmd_PartialInitErrorIncludesRecoveryHint(t *testing.T) {
	// Simulate feature write failure after the config write succeeds.
	mock := newMockInitIO()
	mock.writeErrFor = map[string]error{"Example.feature": errors.New("permission denied")}

	c := newInitCmdWithGetCWD(mock, func() (string, error) { return ".", nil })
	errOut := new(bytes.Buffer)
	c.SetOut(new(bytes.Buffer))
	c.SetErr(errOut)
	c.SetArgs([]string{"--project", "."})

	err := c.Execute()
	if err == nil {
		t.Fatal("expected error on feature write failure")
	}

	combined := errOut.String() + err.Error()
	if !strings.Contains(combined, "--force") {
		t.Errorf("expected partial-init error to include --force recovery hint, got: %q", combined)
	}
}

func TestFileInitIO(t *testing.T) {
	io := newDefaultInitIO()
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := io.MkdirAll(dir); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, "psalmspec.yml")

	exists, err := io.StatFile(path)
	if err != nil || exists {
		t.Fatalf("StatFile() = %v, %v; want false, nil", exists, err)
	}
	if err := io.WriteFileAtomic(path, "package: x\n"); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	exists, err = io.StatFile(path)
	if err != nil || !exists {
		t.Fatalf("StatFile() = %v, %v; want true, nil", exists, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package: x\n" {
		t.Errorf("content = %q", data)
	}
}
