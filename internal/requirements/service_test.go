package requirements_test

import (
	"context"
	"errors"
	"testing"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(st *memStore) *requirements.Service {
	return requirements.NewService(st, st, nil)
}

func TestSaveBatch_AllocatesIDs(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-002"] = requirements.BusinessRequirement{ID: "BR-T1-002", TaskID: "T1"}
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{
			{Title: "first new"},
			{Title: "second new"},
		},
		System: []requirements.SystemRequirement{
			{Title: "sr", Category: requirements.CategoryFunction},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Business, 2)
	assert.Equal(t, "BR-T1-003", res.Business[0].ID)
	assert.Equal(t, "BR-T1-004", res.Business[1].ID)
	assert.Equal(t, "SR-T1-001", res.System[0].ID)
	assert.Equal(t, "p1", res.Business[0].ProjectID)
	assert.Equal(t, "T1", res.System[0].TaskID)
}

func TestSaveBatch_SkipsIDsTakenInBatch(t *testing.T) {
	st := newMemStore()
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{
			{},
			{ID: "BR-T1-001"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "BR-T1-002", res.Business[0].ID)
}

func TestSaveBatch_PadLength(t *testing.T) {
	st := newMemStore()
	svc := newService(st)
	svc.SetPadLength(5)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:   "T7",
		Business: []requirements.BusinessRequirement{{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "BR-T7-00001", res.Business[0].ID)
}

func TestSaveBatch_SynchronizesAndLinksUp(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{ID: "BR-T1-001", TaskID: "T1", Version: 1}
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{
			{ID: "BR-T1-002"},
		},
		System: []requirements.SystemRequirement{
			{ID: "SR-T1-001", Category: requirements.CategoryData, BusinessRequirementIDs: []string{"BR-T1-001", "BR-T1-002"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.LinkedUp)
	assert.Equal(t, []string{"SR-T1-001"}, st.br["BR-T1-002"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"SR-T1-001"}, st.br["BR-T1-001"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"BR-T1-001", "BR-T1-002"}, st.sr["SR-T1-001"].BusinessRequirementIDs)

	// The out-of-batch record is written with the batch.
	require.Len(t, st.savedBR, 1)
	assert.ElementsMatch(t, []string{"BR-T1-002", "BR-T1-001"}, st.savedBR[0])
}

func TestSaveBatch_ReconcilesCriteria(t *testing.T) {
	st := newMemStore()
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{{
			ID: "BR-T1-001",
			AcceptanceCriteriaJSON: []criteria.Criterion{
				{Description: "shows error on bad password"},
				{ID: "AC-BR-T1-001-009"},
			},
		}},
	})
	require.NoError(t, err)

	br := res.Business[0]
	require.Len(t, br.AcceptanceCriteriaJSON, 1)
	assert.Equal(t, "AC-BR-T1-001-001", br.AcceptanceCriteriaJSON[0].ID)
	assert.Equal(t, []string{"shows error on bad password"}, br.AcceptanceCriteria)
}

func TestSaveBatch_LegacyOnlyMergeKeepsIDs(t *testing.T) {
	st := newMemStore()
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:             "T1",
		LegacyCriteriaOnly: true,
		System: []requirements.SystemRequirement{{
			ID:       "SR-T1-001",
			Category: requirements.CategoryFunction,
			AcceptanceCriteriaJSON: []criteria.Criterion{
				{ID: "AC-SR-T1-001-001", Description: "login works", VerificationMethod: "test"},
				{ID: "AC-SR-T1-001-002", Description: "logout works"},
			},
			AcceptanceCriteria: []string{"login works", "", "session expires"},
		}},
	})
	require.NoError(t, err)

	got := res.System[0].AcceptanceCriteriaJSON
	require.Len(t, got, 2)
	assert.Equal(t, "AC-SR-T1-001-001", got[0].ID)
	assert.Equal(t, "test", got[0].VerificationMethod)
	// Position 1 changed text: new entry, and the abandoned 002 is not reused.
	assert.Equal(t, "AC-SR-T1-001-003", got[1].ID)
	assert.Equal(t, "session expires", got[1].Description)
	assert.Equal(t, []string{"login works", "session expires"}, res.System[0].AcceptanceCriteria)
}

func TestSaveBatch_LegacyOnlyMergesStoredCriteria(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{
		ID: "BR-T1-001", TaskID: "T1", Version: 1,
		AcceptanceCriteriaJSON: []criteria.Criterion{
			{ID: "AC-BR-T1-001-001", Description: "A"},
			{ID: "AC-BR-T1-001-002", Description: "B"},
		},
	}
	st.vs["BR-T1-001"] = []criteria.Verification{
		{CriterionID: "AC-BR-T1-001-001", RequirementID: "BR-T1-001", Status: criteria.StatusVerifiedOK},
	}
	svc := newService(st)

	// The edit surface only knows the flat list and sends no structured one.
	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:             "T1",
		LegacyCriteriaOnly: true,
		Business: []requirements.BusinessRequirement{{
			ID: "BR-T1-001", Version: 1,
			AcceptanceCriteria: []string{"B"},
		}},
	})
	require.NoError(t, err)

	got := res.Business[0].AcceptanceCriteriaJSON
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Description)
	assert.Equal(t, "AC-BR-T1-001-003", got[0].ID, "stored IDs must not be handed to different text")
	assert.Empty(t, st.vs["BR-T1-001"], "A's verification must not move onto B")
}

func TestSaveBatch_LegacyOnlyKeepsStoredIDsAndState(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{
		ID: "BR-T1-001", TaskID: "T1", Version: 1,
		AcceptanceCriteriaJSON: []criteria.Criterion{
			{ID: "AC-BR-T1-001-001", Description: "A", GivenText: "g"},
			{ID: "AC-BR-T1-001-002", Description: "B"},
		},
	}
	st.vs["BR-T1-001"] = []criteria.Verification{
		{CriterionID: "AC-BR-T1-001-001", RequirementID: "BR-T1-001", Status: criteria.StatusVerifiedOK},
	}
	svc := newService(st)

	res, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:             "T1",
		LegacyCriteriaOnly: true,
		Business: []requirements.BusinessRequirement{{
			ID: "BR-T1-001", Version: 1,
			AcceptanceCriteria: []string{"A", "B", "C"},
		}},
	})
	require.NoError(t, err)

	got := res.Business[0].AcceptanceCriteriaJSON
	require.Len(t, got, 3)
	assert.Equal(t, []string{"AC-BR-T1-001-001", "AC-BR-T1-001-002", "AC-BR-T1-001-003"},
		[]string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "g", got[0].GivenText)

	vs := st.vs["BR-T1-001"]
	require.Len(t, vs, 1)
	assert.Equal(t, "AC-BR-T1-001-001", vs[0].CriterionID)
	assert.Equal(t, criteria.StatusVerifiedOK, vs[0].Status)
}

func TestSaveBatch_LegacyOnlyLoadFailure(t *testing.T) {
	boom := errors.New("boom")
	st := newMemStore()
	st.failGet = boom
	svc := newService(st)

	_, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:             "T1",
		LegacyCriteriaOnly: true,
		Business:           []requirements.BusinessRequirement{{ID: "BR-T1-001", AcceptanceCriteria: []string{"A"}}},
	})
	var stepErr *requirements.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, requirements.StepLoad, stepErr.Step)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.savedBR)
}

func TestSaveBatch_RepointSystemRequirementAlone(t *testing.T) {
	st := newMemStore()
	svc := newService(st)
	ctx := context.Background()

	_, err := svc.SaveBatch(ctx, "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{
			{ID: "BR-T1-001", RelatedSystemRequirementIDs: []string{"SR-T1-001"}},
			{ID: "BR-T1-002"},
		},
		System: []requirements.SystemRequirement{
			{ID: "SR-T1-001", Category: requirements.CategoryFunction, BusinessRequirementIDs: []string{"BR-T1-001"}},
		},
	})
	require.NoError(t, err)

	// Only the edited system requirement is sent.
	sr := st.sr["SR-T1-001"]
	sr.BusinessRequirementIDs = []string{"BR-T1-002"}
	_, err = svc.SaveBatch(ctx, "p1", requirements.Batch{
		TaskID: "T1",
		System: []requirements.SystemRequirement{sr},
	})
	require.NoError(t, err)

	assert.Empty(t, st.br["BR-T1-001"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"SR-T1-001"}, st.br["BR-T1-002"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"BR-T1-002"}, st.sr["SR-T1-001"].BusinessRequirementIDs)

	// A later edit of the old business requirement alone must not bring the
	// dropped link back.
	br := st.br["BR-T1-001"]
	br.Title = "renamed"
	_, err = svc.SaveBatch(ctx, "p1", requirements.Batch{
		TaskID:   "T1",
		Business: []requirements.BusinessRequirement{br},
	})
	require.NoError(t, err)

	assert.Empty(t, st.br["BR-T1-001"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"BR-T1-002"}, st.sr["SR-T1-001"].BusinessRequirementIDs)
}

func TestSaveBatch_CarriesVerifications(t *testing.T) {
	st := newMemStore()
	st.vs["BR-T1-001"] = []criteria.Verification{
		{CriterionID: "AC-BR-T1-001-001", RequirementID: "BR-T1-001", Status: criteria.StatusVerifiedOK, SortOrder: 0},
		{CriterionID: "AC-BR-T1-001-002", RequirementID: "BR-T1-001", Status: criteria.StatusVerifiedNG, SortOrder: 1},
	}
	svc := newService(st)

	_, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		Business: []requirements.BusinessRequirement{{
			ID: "BR-T1-001",
			AcceptanceCriteriaJSON: []criteria.Criterion{
				{ID: "AC-BR-T1-001-002", Description: "kept, moved first"},
			},
		}},
	})
	require.NoError(t, err)

	vs := st.vs["BR-T1-001"]
	require.Len(t, vs, 1)
	assert.Equal(t, "AC-BR-T1-001-002", vs[0].CriterionID)
	assert.Equal(t, criteria.StatusVerifiedNG, vs[0].Status)
	assert.Equal(t, 0, vs[0].SortOrder)
}

func TestSaveBatch_ValidationFails(t *testing.T) {
	st := newMemStore()
	svc := newService(st)

	_, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID: "T1",
		System: []requirements.SystemRequirement{{ID: "SR-T1-001", Category: "ui"}},
	})
	var stepErr *requirements.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, requirements.StepValidate, stepErr.Step)
	assert.Empty(t, st.savedSR)

	_, err = svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		Business: []requirements.BusinessRequirement{{ID: "BR-T1-001"}},
	})
	require.ErrorAs(t, err, &stepErr)
	assert.Contains(t, err.Error(), "task id is required")
}

func TestSaveBatch_StepErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(*memStore)
		step  string
	}{
		{"allocate", func(m *memStore) { m.failList = boom }, requirements.StepAllocate},
		{"save business", func(m *memStore) { m.failSaveBR = boom }, requirements.StepSaveBusiness},
		{"save system", func(m *memStore) { m.failSaveSR = boom }, requirements.StepSaveSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			tt.setup(st)
			svc := newService(st)

			_, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
				TaskID:   "T1",
				Business: []requirements.BusinessRequirement{{}},
				System:   []requirements.SystemRequirement{{Category: requirements.CategoryAuth}},
			})
			var stepErr *requirements.StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestSaveBatch_SystemFailureLeavesBusinessSaved(t *testing.T) {
	st := newMemStore()
	st.failSaveSR = errors.New("boom")
	svc := newService(st)

	_, err := svc.SaveBatch(context.Background(), "p1", requirements.Batch{
		TaskID:   "T1",
		Business: []requirements.BusinessRequirement{{ID: "BR-T1-001"}},
		System:   []requirements.SystemRequirement{{ID: "SR-T1-001", Category: requirements.CategoryFunction}},
	})
	require.Error(t, err)
	assert.Contains(t, st.br, "BR-T1-001")
}
