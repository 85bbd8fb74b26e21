package requirements

import (
	"sort"
)

// idSet is a set of requirement IDs.
type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// sorted returns the members in ascending order. Sorting keeps the mirror
// fields stable so that a second pass over its own output is a no-op.
func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SyncBusinessSide rewrites RelatedSystemRequirementIDs on every business
// requirement from the system requirements' BusinessRequirementIDs.
//
// Each business requirement starts from its current links. Every system
// requirement that declares at least one business requirement is then
// removed from all business requirements and re-added only to the ones it
// declares, so a system requirement repointed to another business
// requirement leaves no stale link behind. System requirements that declare
// nothing are left where they are. IDs of business requirements outside brs
// are ignored.
//
// The inputs are not modified. The pass is idempotent.
func SyncBusinessSide(brs []BusinessRequirement, srs []SystemRequirement) []BusinessRequirement {
	links := make(map[string]idSet, len(brs))
	for _, br := range brs {
		links[br.ID] = newIDSet(br.RelatedSystemRequirementIDs)
	}

	for _, sr := range srs {
		if len(sr.BusinessRequirementIDs) == 0 {
			continue
		}
		for _, set := range links {
			delete(set, sr.ID)
		}
		for _, brID := range sr.BusinessRequirementIDs {
			if set, ok := links[brID]; ok {
				set[sr.ID] = struct{}{}
			}
		}
	}

	out := make([]BusinessRequirement, len(brs))
	for i, br := range brs {
		br = br.clone()
		br.RelatedSystemRequirementIDs = links[br.ID].sorted()
		out[i] = br
	}
	return out
}

// SyncSystemSide is the mirror of SyncBusinessSide: business requirements'
// RelatedSystemRequirementIDs are authoritative and BusinessRequirementIDs
// is rewritten on every system requirement.
func SyncSystemSide(brs []BusinessRequirement, srs []SystemRequirement) []SystemRequirement {
	links := make(map[string]idSet, len(srs))
	for _, sr := range srs {
		links[sr.ID] = newIDSet(sr.BusinessRequirementIDs)
	}

	for _, br := range brs {
		if len(br.RelatedSystemRequirementIDs) == 0 {
			continue
		}
		for _, set := range links {
			delete(set, br.ID)
		}
		for _, srID := range br.RelatedSystemRequirementIDs {
			if set, ok := links[srID]; ok {
				set[br.ID] = struct{}{}
			}
		}
	}

	out := make([]SystemRequirement, len(srs))
	for i, sr := range srs {
		sr = sr.clone()
		sr.BusinessRequirementIDs = links[sr.ID].sorted()
		out[i] = sr
	}
	return out
}

// Synchronize runs both passes as one round: the business side is computed
// from the system requirements as edited, then the system side from the
// already mirrored business requirements. After it returns, every link
// between two requirements of the batch appears on both sides.
func Synchronize(brs []BusinessRequirement, srs []SystemRequirement) ([]BusinessRequirement, []SystemRequirement) {
	brs = SyncBusinessSide(brs, srs)
	srs = SyncSystemSide(brs, srs)
	return brs, srs
}
