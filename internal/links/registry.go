package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HendryAvila/reqgraph/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/HendryAvila/reqgraph/links"

// newID generates link IDs. Replaced in tests.
var newID = uuid.NewString

// Registry is the suspect-link registry. It holds no state of its own; all
// state lives in the Store.
type Registry struct {
	store     Store
	log       *slog.Logger
	tracer    trace.Tracer
	confirmed metric.Int64Counter
	flagged   metric.Int64Counter
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store Store, log *slog.Logger) *Registry {
	if log == nil {
		log = telemetry.Discard()
	}
	m := telemetry.Meter(scopeName)
	return &Registry{
		store:     store,
		log:       log,
		tracer:    telemetry.Tracer(scopeName),
		confirmed: newCounter(m, log, "reqgraph.links.confirmed", "Links confirmed (suspect flag cleared)"),
		flagged:   newCounter(m, log, "reqgraph.links.flagged", "Links flagged as suspect"),
	}
}

// newCounter creates an Int64Counter, or a noop counter when the meter
// rejects the instrument.
func newCounter(m metric.Meter, log *slog.Logger, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Warn("metric instrument unavailable, counting disabled", "instrument", name, "error", err)
		return metricnoop.Int64Counter{}
	}
	return c
}

func (r *Registry) start(ctx context.Context, name, projectID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("reqgraph.project_id", projectID))
	return r.tracer.Start(ctx, "links."+name, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create inserts a new, non-suspect link.
func (r *Registry) Create(ctx context.Context, projectID string, p CreateParams) (l *Link, err error) {
	ctx, span := r.start(ctx, "Create", projectID)
	defer func() { end(span, err) }()

	if err := ValidateNodeType(p.Source.Type); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := ValidateNodeType(p.Target.Type); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if strings.TrimSpace(p.Source.ID) == "" || strings.TrimSpace(p.Target.ID) == "" {
		return nil, errors.New("source and target ids are required")
	}
	if p.Source == p.Target {
		return nil, ErrSelfLink
	}
	linkType := strings.TrimSpace(p.LinkType)
	if linkType == "" {
		linkType = "relates_to"
	}

	ts := now()
	return r.store.InsertLink(ctx, Link{
		ID:        newID(),
		ProjectID: projectID,
		Source:    p.Source,
		Target:    p.Target,
		LinkType:  linkType,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
}

// Flag marks a link suspect with a reason. It is the entry point for
// change-impact detection; flagging an already suspect link replaces the
// reason.
func (r *Registry) Flag(ctx context.Context, linkID, projectID, reason string) (l *Link, err error) {
	ctx, span := r.start(ctx, "Flag", projectID, attribute.String("reqgraph.link_id", linkID))
	defer func() { end(span, err) }()

	cur, err := r.store.GetLink(ctx, projectID, linkID)
	if err != nil {
		return nil, err
	}
	cur.Suspect = true
	if reason = strings.TrimSpace(reason); reason != "" {
		cur.SuspectReason = &reason
	}
	cur.UpdatedAt = now()

	updated, err := r.store.UpdateLinkSuspect(ctx, *cur)
	if err != nil {
		return nil, err
	}
	r.flagged.Add(ctx, 1)
	return updated, nil
}

// ListSuspect returns the project's links that await re-confirmation.
func (r *Registry) ListSuspect(ctx context.Context, projectID string) (ls []Link, err error) {
	ctx, span := r.start(ctx, "ListSuspect", projectID)
	defer func() { end(span, err) }()

	suspect := true
	return r.store.ListLinks(ctx, projectID, Filter{Suspect: &suspect})
}

// ListForNode returns every link touching the node, in either direction.
func (r *Registry) ListForNode(ctx context.Context, projectID string, ref NodeRef) (ls []Link, err error) {
	ctx, span := r.start(ctx, "ListForNode", projectID, attribute.String("reqgraph.node", ref.String()))
	defer func() { end(span, err) }()

	return r.store.ListLinks(ctx, projectID, Filter{Node: &ref})
}

// Confirm clears the suspect flag of a link and returns the updated record.
// The suspect reason is kept for audit. Confirming a link that is not
// suspect succeeds and rewrites the same state.
func (r *Registry) Confirm(ctx context.Context, linkID, projectID string) (l *Link, err error) {
	ctx, span := r.start(ctx, "Confirm", projectID, attribute.String("reqgraph.link_id", linkID))
	defer func() { end(span, err) }()

	cur, err := r.store.GetLink(ctx, projectID, linkID)
	if err != nil {
		return nil, err
	}
	wasSuspect := cur.Suspect
	cur.Suspect = false
	cur.UpdatedAt = now()

	updated, err := r.store.UpdateLinkSuspect(ctx, *cur)
	if err != nil {
		return nil, err
	}
	if wasSuspect {
		r.confirmed.Add(ctx, 1)
	}
	return updated, nil
}

// BatchConfirm confirms each link in order. It is not atomic: a failure is
// recorded and the remaining IDs are still processed. The result carries the
// number confirmed and the first error.
func (r *Registry) BatchConfirm(ctx context.Context, linkIDs []string, projectID string) BatchResult {
	ctx, span := r.start(ctx, "BatchConfirm", projectID, attribute.Int("reqgraph.link.count", len(linkIDs)))

	res := BatchResult{Requested: len(linkIDs)}
	for _, id := range linkIDs {
		if _, err := r.Confirm(ctx, id, projectID); err != nil {
			if res.FirstError == nil {
				res.FirstError = fmt.Errorf("confirming link %s: %w", id, err)
			}
			res.FailedIDs = append(res.FailedIDs, id)
			continue
		}
		res.ConfirmedCount++
	}

	if res.FirstError != nil {
		r.log.Warn("batch confirm partially failed",
			"project_id", projectID,
			"confirmed", res.ConfirmedCount,
			"failed", len(res.FailedIDs),
			"first_error", res.FirstError.Error(),
		)
	}
	span.SetAttributes(attribute.Int("reqgraph.link.confirmed", res.ConfirmedCount))
	end(span, res.FirstError)
	return res
}

// RetireNode hard-deletes every link whose source or target is the node.
// Called when the node itself is deleted.
func (r *Registry) RetireNode(ctx context.Context, projectID string, ref NodeRef) (n int, err error) {
	ctx, span := r.start(ctx, "RetireNode", projectID, attribute.String("reqgraph.node", ref.String()))
	defer func() { end(span, err) }()

	if err := ValidateNodeType(ref.Type); err != nil {
		return 0, err
	}
	n, err = r.store.DeleteLinksForNode(ctx, projectID, ref)
	if err != nil {
		return 0, err
	}
	r.log.Info("links retired", "project_id", projectID, "node", ref.String(), "count", n)
	return n, nil
}
