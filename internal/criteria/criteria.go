// Package criteria keeps the two representations of acceptance criteria in
// step: the structured list (one addressable Criterion per condition, with
// given/when/then text) and the flattened legacy list of plain descriptions.
//
// The structured list is the source of truth whenever it is supplied. The
// legacy list is always derived from it with ToLegacy. Edit surfaces that
// only know the legacy list go through MergeWithLegacy, which keeps
// criterion IDs stable for unchanged positions so verification history
// keyed by ID is not orphaned.
package criteria

import (
	"strings"

	"github.com/HendryAvila/reqgraph/internal/idalloc"
)

// Criterion is the structured, addressable form of one acceptance criterion.
// It is what gets persisted in a requirement's acceptance_criteria_json.
type Criterion struct {
	ID                 string `json:"id"`
	Description        string `json:"description"`
	GivenText          string `json:"givenText"`
	WhenText           string `json:"whenText"`
	ThenText           string `json:"thenText"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
}

// hasContent reports whether any of the text fields is set. Entries with
// nothing but an ID carry no criterion and are dropped on normalization.
func (c Criterion) hasContent() bool {
	return c.Description != "" || c.GivenText != "" || c.WhenText != "" ||
		c.ThenText != "" || c.VerificationMethod != ""
}

// hasDescription reports whether the entry shows up in the legacy list.
func (c Criterion) hasDescription() bool {
	return strings.TrimSpace(c.Description) != ""
}

// ToLegacy projects the description of every structured entry, in order,
// dropping entries whose description is blank. Descriptions are returned
// as stored. The result is never nil.
func ToLegacy(structured []Criterion) []string {
	out := make([]string, 0, len(structured))
	for _, c := range structured {
		if !c.hasDescription() {
			continue
		}
		out = append(out, c.Description)
	}
	return out
}

// FromLegacy synthesizes one structured entry per non-blank description,
// with fresh IDs under the "AC-<ownerID>-" prefix. Descriptions are kept
// verbatim so FromLegacy(ToLegacy(s)) reproduces the text of s.
func FromLegacy(ownerID string, descriptions []string) []Criterion {
	seq := idalloc.NewSequence(idalloc.CriterionPrefix(ownerID), nil, idalloc.DefaultPad)
	out := make([]Criterion, 0, len(descriptions))
	for _, d := range descriptions {
		if strings.TrimSpace(d) == "" {
			continue
		}
		out = append(out, Criterion{ID: seq.Next(), Description: d})
	}
	return out
}

// MergeWithLegacy reconciles an edited legacy list against the existing
// structured list, position by position.
//
// Blank legacy entries are dropped first. Legacy index i is aligned with
// the i-th existing entry that has a description, which is the entry
// ToLegacy put at index i. If both carry the same trimmed description the
// whole existing entry is kept (ID, given/when/then, verification method).
// Otherwise a new entry with a fresh ID takes its place. Described entries
// past the end of the legacy list are dropped and extra legacy entries are
// appended. Entries without a description cannot be edited through the
// legacy list and stay where they are. Fresh IDs never reuse any ID from
// existing, including the ones abandoned by this merge.
func MergeWithLegacy(ownerID string, existing []Criterion, legacy []string) []Criterion {
	prefix := idalloc.CriterionPrefix(ownerID)
	ids := make([]string, 0, len(existing))
	for _, c := range existing {
		ids = append(ids, c.ID)
	}
	seq := idalloc.NewSequence(prefix, ids, idalloc.DefaultPad)

	edited := make([]string, 0, len(legacy))
	for _, d := range legacy {
		if strings.TrimSpace(d) != "" {
			edited = append(edited, d)
		}
	}

	out := make([]Criterion, 0, len(existing)+len(edited))
	i := 0
	for _, c := range existing {
		if !c.hasDescription() {
			out = append(out, c)
			continue
		}
		if i >= len(edited) {
			continue
		}
		d := edited[i]
		i++
		if c.ID != "" && strings.TrimSpace(c.Description) == strings.TrimSpace(d) {
			out = append(out, c)
			continue
		}
		out = append(out, Criterion{ID: seq.Next(), Description: d})
	}
	for _, d := range edited[i:] {
		out = append(out, Criterion{ID: seq.Next(), Description: d})
	}
	return out
}

// Reconcile returns the structured/legacy pair to persist for a requirement.
//
// When legacyOnly is set the caller edited the flat list and it is merged
// into structured. Otherwise structured wins and legacy is ignored. Entries
// without an ID are given one. The returned pair always satisfies
// ToLegacy(json) == legacy.
func Reconcile(ownerID string, structured []Criterion, legacy []string, legacyOnly bool) ([]Criterion, []string) {
	structured = Normalize(structured)
	if legacyOnly {
		structured = MergeWithLegacy(ownerID, structured, legacy)
	}
	structured = AssignMissingIDs(ownerID, structured)
	return structured, ToLegacy(structured)
}

// AssignMissingIDs gives every entry without an ID a fresh one under the
// owner's prefix. Existing IDs are left alone. The input is not modified.
func AssignMissingIDs(ownerID string, structured []Criterion) []Criterion {
	out := make([]Criterion, len(structured))
	copy(out, structured)

	ids := make([]string, 0, len(out))
	missing := false
	for _, c := range out {
		if c.ID == "" {
			missing = true
			continue
		}
		ids = append(ids, c.ID)
	}
	if !missing {
		return out
	}
	seq := idalloc.NewSequence(idalloc.CriterionPrefix(ownerID), ids, idalloc.DefaultPad)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = seq.Next()
		}
	}
	return out
}
