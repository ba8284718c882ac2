package acceptance

import (
	"fmt"
	"os"
	"strings"
)

// SyntaxError reports a construct the parser cannot accept.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// unsupportedHeaders are Gherkin sections this parser rejects rather than
// silently misreading.
var unsupportedHeaders = []string{"Scenario Outline:", "Scenario Template:", "Examples:", "Scenarios:", "Rule:"}

// docStringDelimiters open and close a doc string.
var docStringDelimiters = []string{`"""`, "```"}

// parseKeyword extracts a step keyword and remaining text from a trimmed line.
// Returns empty keyword if the line doesn't start with a known keyword.
func parseKeyword(trimmed string) (keyword, text string) {
	if trimmed == "*" || strings.HasPrefix(trimmed, "* ") {
		return "*", strings.TrimSpace(trimmed[1:])
	}
	for _, kw := range []string{KeywordGiven, KeywordWhen, KeywordThen, "And", "But"} {
		if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") {
			return kw, strings.TrimSpace(trimmed[len(kw):])
		}
	}
	return "", ""
}

// parseHeader matches "Keyword: title" lines.
func parseHeader(trimmed string, keywords ...string) (title string, ok bool) {
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) {
			return strings.TrimSpace(trimmed[len(kw):]), true
		}
	}
	return "", false
}

// parseTags splits an "@a @b" line into tag names without the "@".
func parseTags(trimmed string) []string {
	var tags []string
	for _, field := range strings.Fields(trimmed) {
		if strings.HasPrefix(field, "#") {
			break
		}
		if tag := strings.TrimPrefix(field, "@"); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// parseTableRow splits a "| a | b |" line into trimmed cells. "\|" is a
// literal pipe, "\n" a newline, and "\\" a backslash.
func parseTableRow(trimmed string) []string {
	body := strings.TrimPrefix(trimmed, "|")
	var (
		cells []string
		cell  strings.Builder
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			i++
			switch body[i] {
			case '|':
				cell.WriteByte('|')
			case 'n':
				cell.WriteByte('\n')
			case '\\':
				cell.WriteByte('\\')
			default:
				cell.WriteByte('\\')
				cell.WriteByte(body[i])
			}
		case c == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteByte(c)
		}
	}
	// Text after the final pipe is not a cell.
	return cells
}

// docStringOpen reports whether trimmed opens a doc string and returns the
// delimiter and media type.
func docStringOpen(trimmed string) (delim, mediaType string, ok bool) {
	for _, d := range docStringDelimiters {
		if strings.HasPrefix(trimmed, d) {
			return d, strings.TrimSpace(trimmed[len(d):]), true
		}
	}
	return "", "", false
}

// dedent removes up to indent leading spaces from line.
func dedent(line string, indent int) string {
	i := 0
	for i < indent && i < len(line) && line[i] == ' ' {
		i++
	}
	return line[i:]
}

// parser holds the state of a single ParseFeature call.
type parser struct {
	feature *Feature
	file    string

	inBackground bool
	pendingTags  []string
	prevKeyword  string
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &SyntaxError{File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// steps returns the step list new steps are appended to, creating an unnamed
// scenario when steps appear before any header.
func (p *parser) steps() *[]Step {
	if p.inBackground {
		return &p.feature.Background
	}
	if len(p.feature.Scenarios) == 0 {
		p.feature.Scenarios = append(p.feature.Scenarios, Scenario{})
	}
	return &p.feature.Scenarios[len(p.feature.Scenarios)-1].Steps
}

// lastStep returns the most recent step of the current section, or nil.
func (p *parser) lastStep() *Step {
	var steps []Step
	if p.inBackground {
		steps = p.feature.Background
	} else if n := len(p.feature.Scenarios); n > 0 {
		steps = p.feature.Scenarios[n-1].Steps
	}
	if len(steps) == 0 {
		return nil
	}
	return &steps[len(steps)-1]
}

// ParseFeature parses a feature file's content into a Feature.
// It handles Feature, Background and Scenario headers, @tags, # comments,
// Given/When/Then/And/But steps, doc strings, and data tables.
// This is a pure function with no I/O.
func ParseFeature(content string, sourcePath string) (*Feature, error) {
	// Normalize line endings
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	p := &parser{feature: &Feature{SourceFile: sourcePath}, file: sourcePath}

	for i := 0; i < len(lines); i++ {
		lineNum := i + 1 // 1-based line numbers
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue

		case strings.HasPrefix(trimmed, "@"):
			p.pendingTags = append(p.pendingTags, parseTags(trimmed)...)
			continue

		case strings.HasPrefix(trimmed, "|"):
			step := p.lastStep()
			if step == nil || step.DocString != nil {
				return nil, p.errorf(lineNum, "table without a step")
			}
			step.Table = append(step.Table, parseTableRow(trimmed))
			continue
		}

		if delim, mediaType, ok := docStringOpen(trimmed); ok {
			step := p.lastStep()
			if step == nil || step.DocString != nil || step.Table != nil {
				return nil, p.errorf(lineNum, "doc string without a step")
			}
			indent := strings.Index(line, delim)
			var body []string
			closed := false
			for i++; i < len(lines); i++ {
				if strings.TrimSpace(lines[i]) == delim {
					closed = true
					break
				}
				body = append(body, strings.ReplaceAll(dedent(lines[i], indent), `\`+delim, delim))
			}
			if !closed {
				return nil, p.errorf(lineNum, "unterminated doc string")
			}
			step.DocString = &DocString{Content: strings.Join(body, "\n"), MediaType: mediaType, Line: lineNum}
			continue
		}

		if _, ok := parseHeader(trimmed, unsupportedHeaders...); ok {
			header, _, _ := strings.Cut(trimmed, ":")
			return nil, p.errorf(lineNum, "%s is not supported", header)
		}

		if title, ok := parseHeader(trimmed, "Feature:"); ok {
			p.feature.Name = title
			p.feature.Tags = p.pendingTags
			p.pendingTags = nil
			continue
		}

		if _, ok := parseHeader(trimmed, "Background:"); ok {
			if len(p.feature.Scenarios) > 0 {
				return nil, p.errorf(lineNum, "Background must come before the first scenario")
			}
			p.inBackground = true
			p.prevKeyword = ""
			continue
		}

		if title, ok := parseHeader(trimmed, "Scenario:", "Example:"); ok {
			p.inBackground = false
			p.prevKeyword = ""
			p.feature.Scenarios = append(p.feature.Scenarios, Scenario{
				Description: title,
				Tags:        p.pendingTags,
				Line:        lineNum,
			})
			p.pendingTags = nil
			continue
		}

		keyword, text := parseKeyword(trimmed)
		if keyword == "" {
			// Free-form description text under a header.
			continue
		}
		switch keyword {
		case "And", "But", "*":
			if p.prevKeyword == "" {
				return nil, p.errorf(lineNum, "%q step without a preceding Given, When, or Then", keyword)
			}
			keyword = p.prevKeyword
		}
		p.prevKeyword = keyword

		steps := p.steps()
		*steps = append(*steps, Step{
			Keyword: keyword,
			Text:    text,
			Line:    lineNum,
		})
	}

	return p.feature, nil
}

// ParseFeatureFileImpl reads a feature file from disk and parses it.
// This is an Impl function exempt from coverage requirements.
func ParseFeatureFileImpl(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFeature(string(data), path)
}

// ParseTable parses a standalone pipe table, such as an expectations file.
// Blank lines and # comments are skipped; any other line is an error.
func ParseTable(content string, sourcePath string) ([][]string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var rows [][]string
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		case strings.HasPrefix(trimmed, "|"):
			rows = append(rows, parseTableRow(trimmed))
		default:
			return nil, &SyntaxError{File: sourcePath, Line: i + 1, Msg: "expected a table row"}
		}
	}
	return rows, nil
}
