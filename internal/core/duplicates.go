package core

import "strings"

// DefaultDuplicateThreshold is the similarity above which two school names
// are treated as the same school.
const DefaultDuplicateThreshold = 0.8

// FindPotentialDuplicates returns every pool entry whose lower-cased name is
// strictly more similar than threshold to the candidate's, in pool order.
// An entry with the candidate's own MINERD code is the school being updated,
// not a duplicate, and is never returned.
func FindPotentialDuplicates(candidate ValidatedRecord, pool []ExistingSchool, threshold float64) []ExistingSchool {
	return NewDetector(pool, threshold).Find(candidate)
}

// Detector compares candidate names against a fixed snapshot of existing
// schools. The snapshot is lower-cased once at construction.
type Detector struct {
	pool      []ExistingSchool
	lowered   []string
	threshold float64
}

// NewDetector builds a detector over pool. The pool is not copied and must
// not be modified while the detector is in use.
func NewDetector(pool []ExistingSchool, threshold float64) *Detector {
	lowered := make([]string, len(pool))
	for i, s := range pool {
		lowered[i] = strings.ToLower(s.Name)
	}
	return &Detector{pool: pool, lowered: lowered, threshold: threshold}
}

// Find returns the pool entries similar to the candidate, in pool order.
func (d *Detector) Find(candidate ValidatedRecord) []ExistingSchool {
	return d.FindName(candidate.Name(), candidate.MinerdCode())
}

// FindName matches a bare name. Entries whose code equals excludeCode are
// skipped; pass "" to compare against the whole pool.
func (d *Detector) FindName(name, excludeCode string) []ExistingSchool {
	name = strings.ToLower(name)
	var matches []ExistingSchool
	for i, existing := range d.lowered {
		if excludeCode != "" && d.pool[i].MinerdCode == excludeCode {
			continue
		}
		if Similarity(name, existing) > d.threshold {
			matches = append(matches, d.pool[i])
		}
	}
	return matches
}

// Size returns the number of schools in the snapshot.
func (d *Detector) Size() int {
	return len(d.pool)
}
