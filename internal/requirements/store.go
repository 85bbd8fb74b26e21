package requirements

import "context"

// Filter selects requirements by field equality. Empty fields are ignored.
type Filter struct {
	TaskID string
	SRFID  string
}

// Store is the persistence contract the requirement operations rely on.
// Every call is scoped by project. List results are ordered by sort order
// with the ID as tiebreak.
//
// Save methods upsert a batch and return the rows as persisted. A record
// with Version 0 is inserted; any other record is updated only if its
// Version matches the stored one, otherwise the save fails with a conflict.
type Store interface {
	GetBusinessRequirementsByIDs(ctx context.Context, projectID string, ids []string) ([]BusinessRequirement, error)
	GetSystemRequirementsByIDs(ctx context.Context, projectID string, ids []string) ([]SystemRequirement, error)
	ListBusinessRequirements(ctx context.Context, projectID string, f Filter) ([]BusinessRequirement, error)
	ListSystemRequirements(ctx context.Context, projectID string, f Filter) ([]SystemRequirement, error)
	SaveBusinessRequirements(ctx context.Context, projectID string, brs []BusinessRequirement) ([]BusinessRequirement, error)
	SaveSystemRequirements(ctx context.Context, projectID string, srs []SystemRequirement) ([]SystemRequirement, error)
	// Delete methods remove the row and its verification records. A missing
	// row yields an error wrapping ErrNotFound.
	DeleteBusinessRequirement(ctx context.Context, projectID, id string) error
	DeleteSystemRequirement(ctx context.Context, projectID, id string) error
}
