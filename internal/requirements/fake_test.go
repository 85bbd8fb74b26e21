package requirements_test

import (
	"context"
	"fmt"
	"sort"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/requirements"
)

// memStore is an in-memory requirements.Store and criteria.VerificationStore.
type memStore struct {
	br map[string]requirements.BusinessRequirement
	sr map[string]requirements.SystemRequirement
	vs map[string][]criteria.Verification

	failGet    error
	failSaveBR error
	failSaveSR error
	failList   error
	failDelete error

	savedBR [][]string
	savedSR [][]string
}

func newMemStore() *memStore {
	return &memStore{
		br: map[string]requirements.BusinessRequirement{},
		sr: map[string]requirements.SystemRequirement{},
		vs: map[string][]criteria.Verification{},
	}
}

func (m *memStore) GetBusinessRequirementsByIDs(_ context.Context, _ string, ids []string) ([]requirements.BusinessRequirement, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	out := []requirements.BusinessRequirement{}
	for _, id := range ids {
		if br, ok := m.br[id]; ok {
			out = append(out, br)
		}
	}
	return out, nil
}

func (m *memStore) GetSystemRequirementsByIDs(_ context.Context, _ string, ids []string) ([]requirements.SystemRequirement, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	out := []requirements.SystemRequirement{}
	for _, id := range ids {
		if sr, ok := m.sr[id]; ok {
			out = append(out, sr)
		}
	}
	return out, nil
}

func (m *memStore) ListBusinessRequirements(_ context.Context, _ string, f requirements.Filter) ([]requirements.BusinessRequirement, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	out := []requirements.BusinessRequirement{}
	for _, br := range m.br {
		if f.TaskID == "" || br.TaskID == f.TaskID {
			out = append(out, br)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListSystemRequirements(_ context.Context, _ string, f requirements.Filter) ([]requirements.SystemRequirement, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	out := []requirements.SystemRequirement{}
	for _, sr := range m.sr {
		if f.TaskID == "" || sr.TaskID == f.TaskID {
			out = append(out, sr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SaveBusinessRequirements(_ context.Context, _ string, brs []requirements.BusinessRequirement) ([]requirements.BusinessRequirement, error) {
	if m.failSaveBR != nil {
		return nil, m.failSaveBR
	}
	ids := []string{}
	out := make([]requirements.BusinessRequirement, 0, len(brs))
	for _, br := range brs {
		br.Version++
		m.br[br.ID] = br
		out = append(out, br)
		ids = append(ids, br.ID)
	}
	m.savedBR = append(m.savedBR, ids)
	return out, nil
}

func (m *memStore) SaveSystemRequirements(_ context.Context, _ string, srs []requirements.SystemRequirement) ([]requirements.SystemRequirement, error) {
	if m.failSaveSR != nil {
		return nil, m.failSaveSR
	}
	ids := []string{}
	out := make([]requirements.SystemRequirement, 0, len(srs))
	for _, sr := range srs {
		sr.Version++
		m.sr[sr.ID] = sr
		out = append(out, sr)
		ids = append(ids, sr.ID)
	}
	m.savedSR = append(m.savedSR, ids)
	return out, nil
}

func (m *memStore) DeleteBusinessRequirement(_ context.Context, _ string, id string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.br[id]; !ok {
		return fmt.Errorf("requirement %s: %w", id, requirements.ErrNotFound)
	}
	delete(m.br, id)
	delete(m.vs, id)
	return nil
}

func (m *memStore) DeleteSystemRequirement(_ context.Context, _ string, id string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.sr[id]; !ok {
		return fmt.Errorf("requirement %s: %w", id, requirements.ErrNotFound)
	}
	delete(m.sr, id)
	delete(m.vs, id)
	return nil
}

func (m *memStore) ListVerifications(_ context.Context, _ string, reqID string) ([]criteria.Verification, error) {
	return append([]criteria.Verification{}, m.vs[reqID]...), nil
}

func (m *memStore) ReplaceVerifications(_ context.Context, _ string, reqID string, vs []criteria.Verification) ([]criteria.Verification, error) {
	m.vs[reqID] = append([]criteria.Verification{}, vs...)
	return vs, nil
}

func (m *memStore) SetVerification(_ context.Context, _ string, v criteria.Verification) (*criteria.Verification, error) {
	list := m.vs[v.RequirementID]
	for i := range list {
		if list[i].CriterionID == v.CriterionID {
			list[i] = v
			return &v, nil
		}
	}
	m.vs[v.RequirementID] = append(list, v)
	return &v, nil
}
