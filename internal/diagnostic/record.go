// Package diagnostic holds the records reported by one analyzer run and the
// collector that decodes them from the analyzer's JSON output.
package diagnostic

import "fmt"

// Record is one finding reported by the analyzer. Matching only looks at
// Kind and Message; the remaining fields are provenance for reporting.
type Record struct {
	Kind     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
	File     string `json:"file_name,omitempty"`
	Line     int    `json:"line_from,omitempty"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Set is the ordered multiset of records not yet matched by an expectation.
// A Set belongs to a single scenario and is not safe for concurrent use.
type Set struct {
	records []Record
}

// NewSet returns a Set holding a copy of records, in order.
func NewSet(records []Record) *Set {
	return &Set{records: append([]Record(nil), records...)}
}

// Len returns the number of outstanding records.
func (s *Set) Len() int {
	return len(s.records)
}

// Empty reports whether no records are outstanding.
func (s *Set) Empty() bool {
	return len(s.records) == 0
}

// Records returns a copy of the outstanding records in their current order.
func (s *Set) Records() []Record {
	return append([]Record(nil), s.records...)
}

// At returns the i-th outstanding record.
func (s *Set) At(i int) Record {
	return s.records[i]
}

// Remove consumes the i-th record, keeping the order of the rest.
func (s *Set) Remove(i int) Record {
	r := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	return r
}

// Table renders the outstanding records as a two-column pipe table.
func (s *Set) Table() string {
	return RenderTable(s.records)
}
