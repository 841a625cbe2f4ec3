package domain

import (
	"fmt"
)

// MasterTestDefinition is one immutable entry of the test catalog.
type MasterTestDefinition struct {
	Category    CategoryKey `json:"category" yaml:"category"`
	SubCategory string      `json:"subCategory,omitempty" yaml:"sub_category,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Unit        string      `json:"unit" yaml:"unit"`
	NormalRange string      `json:"normalRange" yaml:"normal_range"`
	Method      string      `json:"method,omitempty" yaml:"method,omitempty"`
}

// NewEntry derives a fresh TestEntry with an empty result value.
func (d MasterTestDefinition) NewEntry() TestEntry {
	return TestEntry{
		TestName:    d.Name,
		ResultValue: "",
		Unit:        d.Unit,
		NormalRange: d.NormalRange,
		Method:      d.Method,
	}
}

// TestEntry records one performed investigation. ResultValue is whatever the
// technician typed: a number, a qualitative token or a count expression.
type TestEntry struct {
	TestName    string `json:"testName"`
	ResultValue string `json:"resultValue"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normalRange"`
	Method      string `json:"method,omitempty"`
}

// DefinitionFilter selects catalog definitions for a bulk add.
type DefinitionFilter func(MasterTestDefinition) bool

// BySubCategory selects definitions of one sub-category, e.g. "LFT".
func BySubCategory(sub string) DefinitionFilter {
	return func(d MasterTestDefinition) bool {
		return d.SubCategory == sub
	}
}

// CategorizedResultSet maps each schema category to its ordered entries.
//
// Every recognized key maps to a non-nil list. All mutating operations
// return a new set and leave the receiver untouched.
type CategorizedResultSet map[CategoryKey][]TestEntry

// NewResultSet creates an empty set containing every key of the schema.
func NewResultSet(keys []CategoryKey) CategorizedResultSet {
	set := make(CategorizedResultSet, len(keys))
	for _, k := range keys {
		set[k] = []TestEntry{}
	}
	return set
}

// Has reports whether the category is part of this set's schema.
func (s CategorizedResultSet) Has(category CategoryKey) bool {
	_, ok := s[category]
	return ok
}

// Clone returns a deep copy of the set.
func (s CategorizedResultSet) Clone() CategorizedResultSet {
	out := make(CategorizedResultSet, len(s))
	for k, entries := range s {
		cp := make([]TestEntry, len(entries))
		copy(cp, entries)
		out[k] = cp
	}
	return out
}

// Count returns the total number of entries across all categories.
func (s CategorizedResultSet) Count() int {
	n := 0
	for _, entries := range s {
		n += len(entries)
	}
	return n
}

// EnsureSchema returns a copy in which every key of the schema is present.
// Keys outside the schema are kept so that no recorded result is lost.
func (s CategorizedResultSet) EnsureSchema(keys []CategoryKey) CategorizedResultSet {
	out := s.Clone()
	for _, k := range keys {
		if out[k] == nil {
			out[k] = []TestEntry{}
		}
	}
	return out
}

// AddSingle appends an entry derived from def to the category.
func (s CategorizedResultSet) AddSingle(category CategoryKey, def *MasterTestDefinition) (CategorizedResultSet, error) {
	if !s.Has(category) {
		return s, newMutationError(ErrUnknownCategory, string(category))
	}
	if def == nil {
		return s, newMutationError(ErrUnknownTest, string(category))
	}
	return s.appendEntries(category, def.NewEntry()), nil
}

// AddBulk appends every catalog definition of the category that passes the
// filter, in catalog order. A nil filter selects the whole category.
func (s CategorizedResultSet) AddBulk(category CategoryKey, catalog []MasterTestDefinition, filter DefinitionFilter) (CategorizedResultSet, error) {
	if !s.Has(category) {
		return s, newMutationError(ErrUnknownCategory, string(category))
	}

	var entries []TestEntry
	for _, def := range catalog {
		if def.Category != category {
			continue
		}
		if filter != nil && !filter(def) {
			continue
		}
		entries = append(entries, def.NewEntry())
	}
	return s.appendEntries(category, entries...), nil
}

// UpdateResultValue replaces the result value of one entry. Other fields of
// the entry are unchanged.
func (s CategorizedResultSet) UpdateResultValue(category CategoryKey, index int, value string) (CategorizedResultSet, error) {
	if err := s.checkIndex(category, index); err != nil {
		return s, err
	}
	out := s.Clone()
	out[category][index].ResultValue = value
	return out, nil
}

// RemoveEntry removes one entry, shifting later entries down by one.
func (s CategorizedResultSet) RemoveEntry(category CategoryKey, index int) (CategorizedResultSet, error) {
	if err := s.checkIndex(category, index); err != nil {
		return s, err
	}
	out := s.Clone()
	entries := out[category]
	out[category] = append(entries[:index:index], entries[index+1:]...)
	return out, nil
}

// AddFreeform appends an arbitrary entry that is not backed by the catalog.
// No validation of the name or value happens here.
func (s CategorizedResultSet) AddFreeform(category CategoryKey, entry TestEntry) (CategorizedResultSet, error) {
	if !s.Has(category) {
		return s, newMutationError(ErrUnknownCategory, string(category))
	}
	return s.appendEntries(category, entry), nil
}

func (s CategorizedResultSet) appendEntries(category CategoryKey, entries ...TestEntry) CategorizedResultSet {
	out := s.Clone()
	out[category] = append(out[category], entries...)
	return out
}

func (s CategorizedResultSet) checkIndex(category CategoryKey, index int) error {
	entries, ok := s[category]
	if !ok {
		return newMutationError(ErrUnknownCategory, string(category))
	}
	if index < 0 || index >= len(entries) {
		return newMutationError(ErrIndexOutOfRange,
			fmt.Sprintf("index %d not in [0,%d) for %s", index, len(entries), category))
	}
	return nil
}
