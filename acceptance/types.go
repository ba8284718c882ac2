// Package acceptance parses Given/When/Then feature files into a structure
// the scenario driver executes, and serializes that structure as JSON IR.
package acceptance

// Step keywords. "And", "But" and "*" take the keyword of the step before.
const (
	KeywordGiven = "Given"
	KeywordWhen  = "When"
	KeywordThen  = "Then"
)

// DocString is a multi-line argument delimited by """ or ``` lines.
type DocString struct {
	// Content is the text between the delimiters, de-indented relative to
	// the opening delimiter.
	Content string `json:"content"`
	// MediaType is the optional annotation after the opening delimiter.
	MediaType string `json:"mediaType,omitempty"`
	// Line is the source line of the opening delimiter.
	Line int `json:"line"`
}

// Step represents a single Given, When, or Then statement in a scenario.
type Step struct {
	// Keyword is the resolved step type: "Given", "When", or "Then".
	Keyword string `json:"keyword"`
	// Text is the step description without the keyword prefix.
	Text string `json:"text"`
	// DocString is the step's doc string argument, if any.
	DocString *DocString `json:"docString,omitempty"`
	// Table holds the rows of the step's table argument, header included.
	Table [][]string `json:"table,omitempty"`
	// Line is the source line number where this step appears.
	Line int `json:"line"`
}

// Scenario represents a named acceptance scenario containing a sequence of steps.
type Scenario struct {
	// Description is the scenario title from the Scenario: line.
	Description string `json:"description"`
	// Tags are the @tags written above the scenario, without the "@".
	Tags []string `json:"tags,omitempty"`
	// Steps is the ordered sequence of Given/When/Then steps.
	Steps []Step `json:"steps"`
	// Line is the source line number of the scenario header.
	Line int `json:"line"`
}

// Feature represents a parsed feature file containing one or more scenarios.
type Feature struct {
	// SourceFile is the path to the file this feature was parsed from.
	SourceFile string `json:"sourceFile"`
	// Name is the title from the Feature: line.
	Name string `json:"name,omitempty"`
	// Tags are the @tags written above the Feature: line.
	Tags []string `json:"tags,omitempty"`
	// Background steps run before every scenario's own steps.
	Background []Step `json:"background,omitempty"`
	// Scenarios is the list of scenarios defined in the file.
	Scenarios []Scenario `json:"scenarios"`
}

// HasTag reports whether the scenario or its feature carries tag.
func (f *Feature) HasTag(sc Scenario, tag string) bool {
	for _, tags := range [][]string{f.Tags, sc.Tags} {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}
