package criteria

import (
	"context"
	"fmt"
)

// --- Verification status enum ---

// Status is the verification outcome of one acceptance criterion.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerifiedOK Status = "verified_ok"
	StatusVerifiedNG Status = "verified_ng"
)

var validStatuses = map[Status]bool{
	StatusUnverified: true,
	StatusVerifiedOK: true,
	StatusVerifiedNG: true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid verification status %q: must be one of: unverified, verified_ok, verified_ng", s)
	}
	return nil
}

// Verification is the separately persisted state of a criterion. It is keyed
// by criterion ID and never stored inside the JSON payload, so it survives
// any rewrite of the structured list that keeps the ID.
type Verification struct {
	CriterionID   string  `json:"criterion_id"`
	RequirementID string  `json:"requirement_id"`
	Status        Status  `json:"status"`
	VerifiedBy    *string `json:"verified_by,omitempty"`
	VerifiedAt    *string `json:"verified_at,omitempty"`
	Evidence      *string `json:"evidence,omitempty"`
	SortOrder     int     `json:"sort_order"`
}

// VerificationStore persists verification state.
type VerificationStore interface {
	// ListVerifications returns the verification records of a requirement
	// ordered by sort order.
	ListVerifications(ctx context.Context, projectID, requirementID string) ([]Verification, error)
	// ReplaceVerifications deletes every record of the requirement and
	// inserts the given ones.
	ReplaceVerifications(ctx context.Context, projectID, requirementID string, vs []Verification) ([]Verification, error)
	// SetVerification upserts a single record.
	SetVerification(ctx context.Context, projectID string, v Verification) (*Verification, error)
}

// CarryVerifications maps previous verification state onto a rewritten
// structured list. Records whose criterion survived keep their state and
// take the criterion's new position as sort order. Records for dropped
// criteria are discarded. No record is created for criteria that never
// had one; state is created lazily through SetVerification.
func CarryVerifications(prev []Verification, structured []Criterion) []Verification {
	byID := make(map[string]Verification, len(prev))
	for _, v := range prev {
		byID[v.CriterionID] = v
	}
	out := make([]Verification, 0, len(prev))
	for i, c := range structured {
		v, ok := byID[c.ID]
		if !ok {
			continue
		}
		v.SortOrder = i
		out = append(out, v)
	}
	return out
}
