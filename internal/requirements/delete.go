package requirements

import (
	"context"
	"fmt"
	"slices"

	"github.com/HendryAvila/reqgraph/internal/links"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Delete pipeline steps, reported in StepError.
const (
	StepDelete      = "delete"
	StepUnlink      = "unlink"
	StepRetireLinks = "retire-links"
)

// NodeRetirer removes every typed link that touches a node.
type NodeRetirer interface {
	RetireNode(ctx context.Context, projectID string, ref links.NodeRef) (int, error)
}

// SetNodeRetirer makes deletes also retire the deleted node's typed links.
func (s *Service) SetNodeRetirer(r NodeRetirer) { s.retirer = r }

// DeleteResult reports what a delete touched.
type DeleteResult struct {
	ID string `json:"id"`
	// Unlinked lists the counterparts whose mirror field lost the ID.
	Unlinked     []string `json:"unlinked"`
	RetiredLinks int      `json:"retired_links"`
}

// DeleteBusinessRequirement removes a business requirement:
//
//  1. the row and its verification records are deleted;
//  2. its ID is stripped from BusinessRequirementIDs of every system
//     requirement of the project;
//  3. typed links touching it are retired, when a NodeRetirer is set.
//
// Like SaveBatch it stops at the first failing step and returns a
// *StepError without undoing earlier steps.
func (s *Service) DeleteBusinessRequirement(ctx context.Context, projectID, id string) (res *DeleteResult, err error) {
	ctx, span := s.startDelete(ctx, "requirements.DeleteBusinessRequirement", projectID, id)
	defer endSpan(span, &err)

	if err := s.store.DeleteBusinessRequirement(ctx, projectID, id); err != nil {
		return nil, &StepError{Step: StepDelete, Err: err}
	}

	srs, err := s.store.ListSystemRequirements(ctx, projectID, Filter{})
	if err != nil {
		return nil, &StepError{Step: StepUnlink, Err: fmt.Errorf("listing system requirements: %w", err)}
	}
	var changed []SystemRequirement
	for _, sr := range srs {
		if !slices.Contains(sr.BusinessRequirementIDs, id) {
			continue
		}
		sr = sr.clone()
		sr.BusinessRequirementIDs = without(sr.BusinessRequirementIDs, id)
		changed = append(changed, sr)
	}
	if len(changed) > 0 {
		if _, err := s.store.SaveSystemRequirements(ctx, projectID, changed); err != nil {
			return nil, &StepError{Step: StepUnlink, Err: err}
		}
	}

	res = &DeleteResult{ID: id, Unlinked: make([]string, 0, len(changed))}
	for _, sr := range changed {
		res.Unlinked = append(res.Unlinked, sr.ID)
	}
	if err := s.retire(ctx, projectID, links.NodeRef{Type: links.NodeBusinessRequirement, ID: id}, res); err != nil {
		return nil, err
	}

	s.log.Info("business requirement deleted",
		"project_id", projectID, "id", id,
		"unlinked", len(res.Unlinked), "retired_links", res.RetiredLinks)
	return res, nil
}

// DeleteSystemRequirement is the system-side counterpart of
// DeleteBusinessRequirement.
func (s *Service) DeleteSystemRequirement(ctx context.Context, projectID, id string) (res *DeleteResult, err error) {
	ctx, span := s.startDelete(ctx, "requirements.DeleteSystemRequirement", projectID, id)
	defer endSpan(span, &err)

	if err := s.store.DeleteSystemRequirement(ctx, projectID, id); err != nil {
		return nil, &StepError{Step: StepDelete, Err: err}
	}

	brs, err := s.store.ListBusinessRequirements(ctx, projectID, Filter{})
	if err != nil {
		return nil, &StepError{Step: StepUnlink, Err: fmt.Errorf("listing business requirements: %w", err)}
	}
	var changed []BusinessRequirement
	for _, br := range brs {
		if !slices.Contains(br.RelatedSystemRequirementIDs, id) {
			continue
		}
		br = br.clone()
		br.RelatedSystemRequirementIDs = without(br.RelatedSystemRequirementIDs, id)
		changed = append(changed, br)
	}
	if len(changed) > 0 {
		if _, err := s.store.SaveBusinessRequirements(ctx, projectID, changed); err != nil {
			return nil, &StepError{Step: StepUnlink, Err: err}
		}
	}

	res = &DeleteResult{ID: id, Unlinked: make([]string, 0, len(changed))}
	for _, br := range changed {
		res.Unlinked = append(res.Unlinked, br.ID)
	}
	if err := s.retire(ctx, projectID, links.NodeRef{Type: links.NodeSystemRequirement, ID: id}, res); err != nil {
		return nil, err
	}

	s.log.Info("system requirement deleted",
		"project_id", projectID, "id", id,
		"unlinked", len(res.Unlinked), "retired_links", res.RetiredLinks)
	return res, nil
}

func (s *Service) retire(ctx context.Context, projectID string, ref links.NodeRef, res *DeleteResult) error {
	if s.retirer == nil {
		return nil
	}
	n, err := s.retirer.RetireNode(ctx, projectID, ref)
	if err != nil {
		return &StepError{Step: StepRetireLinks, Err: err}
	}
	res.RetiredLinks = n
	return nil
}

func (s *Service) startDelete(ctx context.Context, name, projectID, id string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("reqgraph.project_id", projectID),
		attribute.String("reqgraph.requirement_id", id),
	))
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

// without returns ids minus every occurrence of id.
func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
