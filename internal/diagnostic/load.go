package diagnostic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedOutput is matched by every *MalformedOutputError.
var ErrMalformedOutput = errors.New("malformed analyzer output")

// MalformedOutputError reports analyzer output that could not be decoded
// from a run that exited with a non-zero status.
type MalformedOutputError struct {
	Output   string
	ExitCode int
	Err      error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("failed to parse output (exit code %d): %s\nerror: %v", e.ExitCode, e.Output, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedOutput.
func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

// Load decodes raw analyzer output into a fresh Set.
//
// Blank output is zero diagnostics whatever the exit code. Output that does
// not decode is an error only when exitCode is non-zero; a successful run
// that printed something other than diagnostics JSON is treated as having
// reported nothing.
func Load(rawOutput string, exitCode int) (*Set, error) {
	if strings.TrimSpace(rawOutput) == "" {
		return NewSet(nil), nil
	}

	records, err := Decode(rawOutput)
	if err != nil {
		if exitCode != 0 {
			return nil, &MalformedOutputError{Output: rawOutput, ExitCode: exitCode, Err: err}
		}
		return NewSet(nil), nil
	}
	return NewSet(records), nil
}

// Decode parses a JSON array of diagnostic objects. Each object must carry
// a non-null "type" and "message", and the type must not be blank. Numbers
// and booleans are coerced to strings the way PHP casts them (true is "1",
// false is empty). Other fields are ignored apart from the provenance kept
// on Record. A top-level JSON null decodes to no records.
func Decode(raw string) ([]Record, error) {
	if !gjson.Valid(raw) {
		var scratch json.RawMessage
		if err := json.Unmarshal([]byte(raw), &scratch); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid JSON")
	}

	doc := gjson.Parse(raw)
	if doc.Type == gjson.Null {
		return nil, nil
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected a JSON array of diagnostics, got %s", describe(doc))
	}

	var records []Record
	var decodeErr error
	doc.ForEach(func(key, item gjson.Result) bool {
		r, err := decodeRecord(item)
		if err != nil {
			decodeErr = fmt.Errorf("diagnostic %d: %w", key.Int(), err)
			return false
		}
		records = append(records, r)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return records, nil
}

func decodeRecord(item gjson.Result) (Record, error) {
	if !item.IsObject() {
		return Record{}, fmt.Errorf("expected an object, got %s", describe(item))
	}
	kind, err := scalarField(item, "type")
	if err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(kind) == "" {
		return Record{}, errors.New(`"type" field is blank`)
	}
	message, err := scalarField(item, "message")
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:     kind,
		Message:  message,
		Severity: item.Get("severity").String(),
		File:     item.Get("file_name").String(),
		Line:     int(item.Get("line_from").Int()),
	}, nil
}

func scalarField(item gjson.Result, name string) (string, error) {
	v := item.Get(name)
	if !v.Exists() {
		return "", fmt.Errorf("missing %q field", name)
	}
	switch {
	case v.IsObject() || v.IsArray():
		return "", fmt.Errorf("%q field is %s, want a scalar", name, describe(v))
	case v.Type == gjson.Null:
		return "", fmt.Errorf("%q field is null", name)
	case v.Type == gjson.True:
		return "1", nil
	case v.Type == gjson.False:
		return "", nil
	}
	return v.String(), nil
}

func describe(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "an array"
	case r.IsObject():
		return "an object"
	}
	return r.Type.String()
}
