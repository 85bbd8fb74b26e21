package requirements

import (
	"context"
	"fmt"
	"sort"
)

// LinkUp repairs the mirror on persisted requirements outside the batch.
//
// Synchronize only sees the records being edited. When a system requirement
// in the batch declares a business requirement that is not in the batch (or
// the other way round) the counterpart lives only in the store. LinkUp
// fetches every such counterpart and adds the missing reciprocal ID.
//
// Links dropped by the edit are repaired the same way. The stored copy of
// each batch record is compared with the edited one, and every counterpart
// outside the batch that the record no longer declares loses the reciprocal
// ID. As in Synchronize, a record that declares nothing has no say and
// removes nothing.
//
// Only records that actually changed are returned; the caller writes them
// together with the batch.
func LinkUp(ctx context.Context, store Store, projectID string, brs []BusinessRequirement, srs []SystemRequirement) ([]BusinessRequirement, []SystemRequirement, error) {
	inBatchBR := make(map[string]bool, len(brs))
	brIDs := make([]string, 0, len(brs))
	for _, br := range brs {
		inBatchBR[br.ID] = true
		brIDs = append(brIDs, br.ID)
	}
	inBatchSR := make(map[string]bool, len(srs))
	srIDs := make([]string, 0, len(srs))
	for _, sr := range srs {
		inBatchSR[sr.ID] = true
		srIDs = append(srIDs, sr.ID)
	}

	// Mirror fields as currently stored, keyed by batch record ID.
	storedBR := map[string][]string{}
	if len(brIDs) > 0 {
		found, err := store.GetBusinessRequirementsByIDs(ctx, projectID, brIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching stored business requirements: %w", err)
		}
		for _, br := range found {
			storedBR[br.ID] = br.RelatedSystemRequirementIDs
		}
	}
	storedSR := map[string][]string{}
	if len(srIDs) > 0 {
		found, err := store.GetSystemRequirementsByIDs(ctx, projectID, srIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching stored system requirements: %w", err)
		}
		for _, sr := range found {
			storedSR[sr.ID] = sr.BusinessRequirementIDs
		}
	}

	// brID -> system requirement IDs that must (or must no longer) appear on it.
	onBR := map[string]*linkDelta{}
	for _, sr := range srs {
		if len(sr.BusinessRequirementIDs) == 0 {
			continue
		}
		declared := newIDSet(sr.BusinessRequirementIDs)
		for brID := range declared {
			if !inBatchBR[brID] {
				deltaFor(onBR, brID).add = append(deltaFor(onBR, brID).add, sr.ID)
			}
		}
		for _, brID := range storedSR[sr.ID] {
			if _, still := declared[brID]; !still && !inBatchBR[brID] {
				deltaFor(onBR, brID).remove = append(deltaFor(onBR, brID).remove, sr.ID)
			}
		}
	}
	onSR := map[string]*linkDelta{}
	for _, br := range brs {
		if len(br.RelatedSystemRequirementIDs) == 0 {
			continue
		}
		declared := newIDSet(br.RelatedSystemRequirementIDs)
		for srID := range declared {
			if !inBatchSR[srID] {
				deltaFor(onSR, srID).add = append(deltaFor(onSR, srID).add, br.ID)
			}
		}
		for _, srID := range storedBR[br.ID] {
			if _, still := declared[srID]; !still && !inBatchSR[srID] {
				deltaFor(onSR, srID).remove = append(deltaFor(onSR, srID).remove, br.ID)
			}
		}
	}

	var outBR []BusinessRequirement
	if len(onBR) > 0 {
		found, err := store.GetBusinessRequirementsByIDs(ctx, projectID, keys(onBR))
		if err != nil {
			return nil, nil, fmt.Errorf("fetching linked business requirements: %w", err)
		}
		for _, br := range found {
			br = br.clone()
			if ids, changed := onBR[br.ID].apply(br.RelatedSystemRequirementIDs); changed {
				br.RelatedSystemRequirementIDs = ids
				outBR = append(outBR, br)
			}
		}
	}

	var outSR []SystemRequirement
	if len(onSR) > 0 {
		found, err := store.GetSystemRequirementsByIDs(ctx, projectID, keys(onSR))
		if err != nil {
			return nil, nil, fmt.Errorf("fetching linked system requirements: %w", err)
		}
		for _, sr := range found {
			sr = sr.clone()
			if ids, changed := onSR[sr.ID].apply(sr.BusinessRequirementIDs); changed {
				sr.BusinessRequirementIDs = ids
				outSR = append(outSR, sr)
			}
		}
	}

	return outBR, outSR, nil
}

// linkDelta is the set of reciprocal IDs to add to and remove from one
// persisted counterpart.
type linkDelta struct {
	add    []string
	remove []string
}

func deltaFor(m map[string]*linkDelta, id string) *linkDelta {
	d, ok := m[id]
	if !ok {
		d = &linkDelta{}
		m[id] = d
	}
	return d
}

// apply returns ids with the removals and additions applied, sorted, and
// whether anything changed.
func (d *linkDelta) apply(ids []string) ([]string, bool) {
	set := newIDSet(ids)
	changed := false
	for _, id := range d.remove {
		if _, ok := set[id]; ok {
			delete(set, id)
			changed = true
		}
	}
	for _, id := range d.add {
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return ids, false
	}
	return set.sorted(), true
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
