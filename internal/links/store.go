package links

import "context"

// Filter selects links by field equality. Nil/zero fields are ignored.
type Filter struct {
	Suspect *bool
	// Node matches links whose source or target is the node.
	Node *NodeRef
}

// Store persists links. Every call is scoped by project; a link of another
// project is reported as ErrNotFound.
type Store interface {
	InsertLink(ctx context.Context, l Link) (*Link, error)
	GetLink(ctx context.Context, projectID, id string) (*Link, error)
	// UpdateLinkSuspect writes suspect, suspect_reason and updated_at.
	UpdateLinkSuspect(ctx context.Context, l Link) (*Link, error)
	// ListLinks orders by updated_at, then id.
	ListLinks(ctx context.Context, projectID string, f Filter) ([]Link, error)
	DeleteLinksForNode(ctx context.Context, projectID string, ref NodeRef) (int, error)
}
