package links

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// fakeStore is an in-memory Store with per-link write failures.
type fakeStore struct {
	links      map[string]Link
	failUpdate map[string]error
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: map[string]Link{}, failUpdate: map[string]error{}}
}

func (f *fakeStore) InsertLink(_ context.Context, l Link) (*Link, error) {
	f.links[l.ID] = l
	return &l, nil
}

func (f *fakeStore) GetLink(_ context.Context, projectID, id string) (*Link, error) {
	l, ok := f.links[id]
	if !ok || l.ProjectID != projectID {
		return nil, fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	return &l, nil
}

func (f *fakeStore) UpdateLinkSuspect(_ context.Context, l Link) (*Link, error) {
	if err := f.failUpdate[l.ID]; err != nil {
		return nil, err
	}
	f.updates++
	f.links[l.ID] = l
	return &l, nil
}

func (f *fakeStore) ListLinks(_ context.Context, projectID string, flt Filter) ([]Link, error) {
	var out []Link
	for _, l := range f.links {
		if l.ProjectID != projectID {
			continue
		}
		if flt.Suspect != nil && l.Suspect != *flt.Suspect {
			continue
		}
		if flt.Node != nil && l.Source != *flt.Node && l.Target != *flt.Node {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteLinksForNode(_ context.Context, projectID string, ref NodeRef) (int, error) {
	n := 0
	for id, l := range f.links {
		if l.ProjectID == projectID && (l.Source == ref || l.Target == ref) {
			delete(f.links, id)
			n++
		}
	}
	return n, nil
}

// fixedClock makes timeNow return successive seconds from a fixed origin.
func fixedClock(t *testing.T) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	orig := timeNow
	timeNow = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	t.Cleanup(func() { timeNow = orig })
}

func seqIDs(t *testing.T) {
	t.Helper()
	n := 0
	orig := newID
	newID = func() string {
		n++
		return fmt.Sprintf("link-%d", n)
	}
	t.Cleanup(func() { newID = orig })
}

var (
	br1 = NodeRef{Type: NodeBusinessRequirement, ID: "BR-T1-001"}
	sr1 = NodeRef{Type: NodeSystemRequirement, ID: "SR-T1-001"}
	sr2 = NodeRef{Type: NodeSystemRequirement, ID: "SR-T1-002"}
)

func newTestRegistry(t *testing.T) (*Registry, *fakeStore) {
	t.Helper()
	fixedClock(t)
	seqIDs(t)
	fs := newFakeStore()
	return NewRegistry(fs, nil), fs
}

func mustFlag(t *testing.T, r *Registry, id, reason string) {
	t.Helper()
	_, err := r.Flag(context.Background(), id, "p1", reason)
	require.NoError(t, err)
}

func TestCreate(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	l, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1, LinkType: "derives"})
	require.NoError(t, err)
	assert.Equal(t, "link-1", l.ID)
	assert.Equal(t, "p1", l.ProjectID)
	assert.False(t, l.Suspect)
	assert.Nil(t, l.SuspectReason)
	assert.Equal(t, l.CreatedAt, l.UpdatedAt)

	l, err = r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr2})
	require.NoError(t, err)
	assert.Equal(t, "relates_to", l.LinkType)
}

func TestCreate_Rejects(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: br1})
	assert.ErrorIs(t, err, ErrSelfLink)

	_, err = r.Create(ctx, "p1", CreateParams{Source: NodeRef{Type: "epic", ID: "E1"}, Target: sr1})
	assert.ErrorIs(t, err, ErrInvalidNodeType)

	_, err = r.Create(ctx, "p1", CreateParams{Source: br1, Target: NodeRef{Type: NodeSystemRequirement}})
	assert.Error(t, err)
}

func TestConfirm_ClearsFlagKeepsReason(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	l, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	mustFlag(t, r, l.ID, "BR-T1-001 goal changed")

	flagged, err := r.ListSuspect(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	before := flagged[0].UpdatedAt

	got, err := r.Confirm(ctx, l.ID, "p1")
	require.NoError(t, err)
	assert.False(t, got.Suspect)
	require.NotNil(t, got.SuspectReason)
	assert.Equal(t, "BR-T1-001 goal changed", *got.SuspectReason)
	assert.Greater(t, got.UpdatedAt, before)

	remaining, err := r.ListSuspect(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestConfirm_AlreadyCleanIsIdempotent(t *testing.T) {
	r, fs := newTestRegistry(t)
	ctx := context.Background()
	l, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := r.Confirm(ctx, l.ID, "p1")
		require.NoError(t, err)
		assert.False(t, got.Suspect)
	}
	assert.Equal(t, 2, fs.updates)
}

func TestConfirm_ScopedByProject(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	l, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	mustFlag(t, r, l.ID, "x")

	_, err = r.Confirm(ctx, l.ID, "other")
	assert.ErrorIs(t, err, ErrNotFound)

	still, err := r.ListSuspect(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, still, 1)
}

func TestFlag_EmptyReasonKeepsPrevious(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	l, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	mustFlag(t, r, l.ID, "first")

	got, err := r.Flag(ctx, l.ID, "p1", "  ")
	require.NoError(t, err)
	assert.True(t, got.Suspect)
	assert.Equal(t, "first", *got.SuspectReason)
}

func TestBatchConfirm_PartialFailure(t *testing.T) {
	r, fs := newTestRegistry(t)
	ctx := context.Background()
	l1, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	l2, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr2})
	require.NoError(t, err)
	mustFlag(t, r, l1.ID, "a")
	mustFlag(t, r, l2.ID, "b")

	writeErr := errors.New("database is locked")
	fs.failUpdate[l2.ID] = writeErr

	res := r.BatchConfirm(ctx, []string{l1.ID, l2.ID}, "p1")

	assert.Equal(t, 1, res.ConfirmedCount)
	assert.Equal(t, 2, res.Requested)
	assert.ErrorIs(t, res.FirstError, writeErr)
	assert.Contains(t, res.FirstError.Error(), l2.ID)
	assert.Equal(t, []string{l2.ID}, res.FailedIDs)

	assert.False(t, fs.links[l1.ID].Suspect)
	assert.True(t, fs.links[l2.ID].Suspect)
}

func TestBatchConfirm_ContinuesAfterFirstFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	l1, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	mustFlag(t, r, l1.ID, "a")

	res := r.BatchConfirm(ctx, []string{"missing-1", l1.ID, "missing-2"}, "p1")

	assert.Equal(t, 1, res.ConfirmedCount)
	assert.ErrorIs(t, res.FirstError, ErrNotFound)
	assert.Contains(t, res.FirstError.Error(), "missing-1")
	assert.Equal(t, []string{"missing-1", "missing-2"}, res.FailedIDs)
}

func TestBatchConfirm_Empty(t *testing.T) {
	r, _ := newTestRegistry(t)
	res := r.BatchConfirm(context.Background(), nil, "p1")
	assert.Zero(t, res.ConfirmedCount)
	assert.NoError(t, res.FirstError)
}

func TestRetireNode(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Create(ctx, "p1", CreateParams{Source: br1, Target: sr1})
	require.NoError(t, err)
	_, err = r.Create(ctx, "p1", CreateParams{Source: sr2, Target: br1})
	require.NoError(t, err)
	_, err = r.Create(ctx, "p1", CreateParams{Source: sr1, Target: sr2})
	require.NoError(t, err)

	n, err := r.RetireNode(ctx, "p1", br1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := r.ListForNode(ctx, "p1", sr1)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, sr2, left[0].Target)
}

func TestNewCounter_RejectedInstrumentFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	meter := sdkmetric.NewMeterProvider().Meter("test")

	c := newCounter(meter, log, "1 not a valid name", "rejected")
	require.NotNil(t, c)
	c.Add(context.Background(), 1)
	assert.Contains(t, buf.String(), "metric instrument unavailable")

	buf.Reset()
	require.NotNil(t, newCounter(meter, log, "reqgraph.test.ok", "accepted"))
	assert.Empty(t, buf.String())
}
