// Package requirements holds the business/system requirement model and the
// operations that keep the BR <-> SR relation symmetric.
//
// A business requirement lists its system requirements in
// RelatedSystemRequirementIDs; a system requirement lists its business
// requirements in BusinessRequirementIDs. The two fields are mirrors of one
// many-to-many relation and Synchronize restores that after edits on either
// side.
package requirements

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/criteria"
)

// ErrNotFound is returned when a requirement does not exist in the project.
var ErrNotFound = errors.New("requirement not found")

// --- Priority enum ---

// Priority is the MoSCoW priority of a business requirement.
type Priority string

const (
	PriorityMust   Priority = "Must"
	PriorityShould Priority = "Should"
	PriorityCould  Priority = "Could"
)

var validPriorities = map[Priority]bool{
	PriorityMust:   true,
	PriorityShould: true,
	PriorityCould:  true,
}

// ValidatePriority returns an error if the priority is not recognized.
// An empty priority is allowed and means "not yet prioritized".
func ValidatePriority(p Priority) error {
	if p != "" && !validPriorities[p] {
		return fmt.Errorf("invalid priority %q: must be one of: Must, Should, Could", p)
	}
	return nil
}

// --- Category enum ---

// Category classifies a system requirement.
type Category string

const (
	CategoryFunction      Category = "function"
	CategoryData          Category = "data"
	CategoryException     Category = "exception"
	CategoryAuth          Category = "auth"
	CategoryNonFunctional Category = "non_functional"
)

var validCategories = map[Category]bool{
	CategoryFunction:      true,
	CategoryData:          true,
	CategoryException:     true,
	CategoryAuth:          true,
	CategoryNonFunctional: true,
}

// ValidateCategory returns an error if the category is not recognized.
func ValidateCategory(c Category) error {
	if !validCategories[c] {
		return fmt.Errorf("invalid category %q: must be one of: function, data, exception, auth, non_functional", c)
	}
	return nil
}

// --- Core data structures ---

// BusinessRequirement is a requirement expressed in business terms, owned by
// a business task.
type BusinessRequirement struct {
	ID                          string               `json:"id"` // "BR-T1-001"
	ProjectID                   string               `json:"project_id"`
	TaskID                      string               `json:"task_id"`
	Title                       string               `json:"title"`
	Summary                     string               `json:"summary"`
	Goal                        string               `json:"goal"`
	Constraints                 string               `json:"constraints"`
	Owner                       string               `json:"owner"`
	ConceptIDs                  []string             `json:"concept_ids"`
	SRFID                       *string              `json:"srf_id,omitempty"`
	SystemDomainIDs             []string             `json:"system_domain_ids"`
	Impacts                     string               `json:"impacts"`
	RelatedSystemRequirementIDs []string             `json:"related_system_requirement_ids"`
	Priority                    Priority             `json:"priority"`
	AcceptanceCriteriaJSON      []criteria.Criterion `json:"acceptance_criteria_json"`
	AcceptanceCriteria          []string             `json:"acceptance_criteria"`
	SortOrder                   int                  `json:"sort_order"`
	Version                     int64                `json:"version"`
	CreatedAt                   string               `json:"created_at"`
	UpdatedAt                   string               `json:"updated_at"`
}

// SystemRequirement is a requirement expressed in system terms, optionally
// tied to a system function (SRFID).
type SystemRequirement struct {
	ID                     string               `json:"id"` // "SR-T1-001"
	ProjectID              string               `json:"project_id"`
	TaskID                 string               `json:"task_id"`
	SRFID                  *string              `json:"srf_id,omitempty"`
	Title                  string               `json:"title"`
	Summary                string               `json:"summary"`
	Category               Category             `json:"category"`
	ConceptIDs             []string             `json:"concept_ids"`
	Impacts                string               `json:"impacts"`
	BusinessRequirementIDs []string             `json:"business_requirement_ids"`
	RelatedDeliverableIDs  []string             `json:"related_deliverable_ids"`
	AcceptanceCriteriaJSON []criteria.Criterion `json:"acceptance_criteria_json"`
	AcceptanceCriteria     []string             `json:"acceptance_criteria"`
	SystemDomainIDs        []string             `json:"system_domain_ids"`
	SortOrder              int                  `json:"sort_order"`
	Version                int64                `json:"version"`
	CreatedAt              string               `json:"created_at"`
	UpdatedAt              string               `json:"updated_at"`
}

// clone returns a copy whose slices do not alias the receiver's.
func (b BusinessRequirement) clone() BusinessRequirement {
	b.ConceptIDs = cloneStrings(b.ConceptIDs)
	b.SystemDomainIDs = cloneStrings(b.SystemDomainIDs)
	b.RelatedSystemRequirementIDs = cloneStrings(b.RelatedSystemRequirementIDs)
	b.AcceptanceCriteriaJSON = cloneCriteria(b.AcceptanceCriteriaJSON)
	b.AcceptanceCriteria = cloneStrings(b.AcceptanceCriteria)
	return b
}

func (s SystemRequirement) clone() SystemRequirement {
	s.ConceptIDs = cloneStrings(s.ConceptIDs)
	s.BusinessRequirementIDs = cloneStrings(s.BusinessRequirementIDs)
	s.RelatedDeliverableIDs = cloneStrings(s.RelatedDeliverableIDs)
	s.AcceptanceCriteriaJSON = cloneCriteria(s.AcceptanceCriteriaJSON)
	s.AcceptanceCriteria = cloneStrings(s.AcceptanceCriteria)
	s.SystemDomainIDs = cloneStrings(s.SystemDomainIDs)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneCriteria(in []criteria.Criterion) []criteria.Criterion {
	if in == nil {
		return nil
	}
	out := make([]criteria.Criterion, len(in))
	copy(out, in)
	return out
}
