package acceptance

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleFeature() *Feature {
	return &Feature{
		SourceFile: "tests/acceptance/ReturnTypes.feature",
		Name:       "Return types",
		Tags:       []string{"taint"},
		Background: []Step{
			{Keyword: "Given", Text: "I have the following config", DocString: &DocString{Content: "<psalm %s/>", Line: 4}, Line: 3},
		},
		Scenarios: []Scenario{
			{
				Description: "Wrong return type",
				Tags:        []string{"skip"},
				Steps: []Step{
					{Keyword: "Given", Text: "I have the following code", DocString: &DocString{Content: "<?php", MediaType: "php", Line: 10}, Line: 9},
					{Keyword: "When", Text: "I run Psalm", Line: 13},
					{Keyword: "Then", Text: "I see these errors", Table: [][]string{{"Type", "Message"}, {"A", "b %"}}, Line: 14},
				},
				Line: 8,
			},
		},
	}
}

func TestSerializeIR_RoundTrip(t *testing.T) {
	feature := sampleFeature()

	data, err := SerializeIR(feature)
	if err != nil {
		t.Fatalf("SerializeIR() error = %v", err)
	}

	// Verify it's valid JSON
	if !json.Valid(data) {
		t.Fatal("SerializeIR() produced invalid JSON")
	}

	got, err := DeserializeIR(data)
	if err != nil {
		t.Fatalf("DeserializeIR() error = %v", err)
	}
	if !reflect.DeepEqual(got, feature) {
		t.Errorf("DeserializeIR(SerializeIR()) = %+v, want %+v", got, feature)
	}
}

func TestSerializeIR_EmptyFeature(t *testing.T) {
	feature := &Feature{
		SourceFile: "tests/acceptance/empty.feature",
	}

	data, err := SerializeIR(feature)
	if err != nil {
		t.Fatalf("SerializeIR() error = %v", err)
	}

	got, err := DeserializeIR(data)
	if err != nil {
		t.Fatalf("DeserializeIR() error = %v", err)
	}
	if got.SourceFile != "tests/acceptance/empty.feature" {
		t.Errorf("SourceFile = %q, want %q", got.SourceFile, "tests/acceptance/empty.feature")
	}
	if got.Scenarios != nil {
		t.Errorf("Scenarios = %v, want nil", got.Scenarios)
	}
}

func TestSerializeIR_OmitsEmptyArguments(t *testing.T) {
	feature := &Feature{
		SourceFile: "x.feature",
		Scenarios:  []Scenario{{Description: "plain", Steps: []Step{{Keyword: "When", Text: "I run Psalm", Line: 2}}, Line: 1}},
	}

	data, err := SerializeIR(feature)
	if err != nil {
		t.Fatalf("SerializeIR() error = %v", err)
	}
	for _, key := range []string{`"docString"`, `"table"`, `"tags"`, `"background"`} {
		if strings.Contains(string(data), key) {
			t.Errorf("SerializeIR() output contains %s, want it omitted:\n%s", key, data)
		}
	}
	// Indented JSON should contain newlines
	if !strings.Contains(string(data), "\n  ") {
		t.Errorf("SerializeIR() output is not indented:\n%s", data)
	}
}

func TestDeserializeIR_InvalidJSON(t *testing.T) {
	_, err := DeserializeIR([]byte("not json"))
	if err == nil {
		t.Error("DeserializeIR() expected error for invalid JSON, got nil")
	}
}

func TestWriteAndReadIRImpl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "feature.json")
	data, err := SerializeIR(sampleFeature())
	if err != nil {
		t.Fatalf("SerializeIR() error = %v", err)
	}

	if err := WriteIRImpl(path, data); err != nil {
		t.Fatalf("WriteIRImpl() error = %v", err)
	}
	got, err := ReadIRImpl(path)
	if err != nil {
		t.Fatalf("ReadIRImpl() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadIRImpl() = %q, want %q", got, data)
	}
}
