// Package links owns typed links between requirement-graph nodes and their
// "suspect" flag.
//
// A link is flagged suspect by change-impact detection outside this package
// (Registry.Flag) and stays suspect until someone confirms it
// (Registry.Confirm or Registry.BatchConfirm). No other operation clears the
// flag.
package links

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a link does not exist in the project.
	ErrNotFound = errors.New("link not found")
	// ErrSelfLink is returned when source and target are the same node.
	ErrSelfLink = errors.New("cannot link a node to itself")
	// ErrInvalidNodeType is returned for an unknown node type.
	ErrInvalidNodeType = errors.New("invalid node type")
)

// --- Node type enum ---

// NodeType tags what kind of node a link endpoint refers to.
type NodeType string

const (
	NodeBusinessRequirement NodeType = "business_requirement"
	NodeSystemRequirement   NodeType = "system_requirement"
	NodeSystemFunction      NodeType = "system_function"
	NodeConcept             NodeType = "concept"
	NodeDeliverable         NodeType = "deliverable"
)

var validNodeTypes = map[NodeType]bool{
	NodeBusinessRequirement: true,
	NodeSystemRequirement:   true,
	NodeSystemFunction:      true,
	NodeConcept:             true,
	NodeDeliverable:         true,
}

// ValidateNodeType returns an error wrapping ErrInvalidNodeType if t is not
// recognized.
func ValidateNodeType(t NodeType) error {
	if !validNodeTypes[t] {
		return fmt.Errorf("%w %q: must be one of: business_requirement, system_requirement, system_function, concept, deliverable", ErrInvalidNodeType, t)
	}
	return nil
}

// NodeRef is a tagged reference to a node of the requirement graph.
type NodeRef struct {
	Type NodeType `json:"type"`
	ID   string   `json:"id"`
}

func (r NodeRef) String() string { return string(r.Type) + ":" + r.ID }

// Link is a typed, directed relation between two nodes.
type Link struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	Source        NodeRef `json:"source"`
	Target        NodeRef `json:"target"`
	LinkType      string  `json:"link_type"` // free-form: "derives", "implements", ...
	Suspect       bool    `json:"suspect"`
	SuspectReason *string `json:"suspect_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// CreateParams holds the input for creating a link.
type CreateParams struct {
	Source   NodeRef `json:"source"`
	Target   NodeRef `json:"target"`
	LinkType string  `json:"link_type"`
}

// BatchResult reports a batch confirmation. FirstError is the first failure
// encountered, nil when every link was confirmed.
type BatchResult struct {
	ConfirmedCount int      `json:"confirmed_count"`
	Requested      int      `json:"requested"`
	FirstError     error    `json:"-"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
}
