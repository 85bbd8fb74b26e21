package requirements_test

import (
	"context"
	"errors"
	"testing"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/links"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetirer struct {
	retired []links.NodeRef
	n       int
	err     error
}

func (f *fakeRetirer) RetireNode(_ context.Context, _ string, ref links.NodeRef) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.retired = append(f.retired, ref)
	return f.n, nil
}

func TestDeleteBusinessRequirement_StripsMirrorAndRetiresLinks(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{ID: "BR-T1-001", RelatedSystemRequirementIDs: []string{"SR-T1-001"}}
	st.sr["SR-T1-001"] = requirements.SystemRequirement{ID: "SR-T1-001", BusinessRequirementIDs: []string{"BR-T1-001", "BR-T1-002"}}
	st.sr["SR-T1-002"] = requirements.SystemRequirement{ID: "SR-T1-002", BusinessRequirementIDs: []string{"BR-T1-002"}}
	st.vs["BR-T1-001"] = []criteria.Verification{{CriterionID: "AC-BR-T1-001-001", RequirementID: "BR-T1-001"}}
	retirer := &fakeRetirer{n: 2}
	svc := newService(st)
	svc.SetNodeRetirer(retirer)

	res, err := svc.DeleteBusinessRequirement(context.Background(), "p1", "BR-T1-001")
	require.NoError(t, err)

	assert.NotContains(t, st.br, "BR-T1-001")
	assert.NotContains(t, st.vs, "BR-T1-001")
	assert.Equal(t, []string{"BR-T1-002"}, st.sr["SR-T1-001"].BusinessRequirementIDs)
	assert.Equal(t, []string{"BR-T1-002"}, st.sr["SR-T1-002"].BusinessRequirementIDs)
	assert.Equal(t, []string{"SR-T1-001"}, res.Unlinked)
	assert.Equal(t, 2, res.RetiredLinks)
	assert.Equal(t, []links.NodeRef{{Type: links.NodeBusinessRequirement, ID: "BR-T1-001"}}, retirer.retired)
}

func TestDeleteSystemRequirement_StripsMirror(t *testing.T) {
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{ID: "BR-T1-001", RelatedSystemRequirementIDs: []string{"SR-T1-001", "SR-T1-002"}}
	st.sr["SR-T1-001"] = requirements.SystemRequirement{ID: "SR-T1-001", BusinessRequirementIDs: []string{"BR-T1-001"}}
	svc := newService(st)

	res, err := svc.DeleteSystemRequirement(context.Background(), "p1", "SR-T1-001")
	require.NoError(t, err)

	assert.NotContains(t, st.sr, "SR-T1-001")
	assert.Equal(t, []string{"SR-T1-002"}, st.br["BR-T1-001"].RelatedSystemRequirementIDs)
	assert.Equal(t, []string{"BR-T1-001"}, res.Unlinked)
	assert.Zero(t, res.RetiredLinks)
}

func TestDeleteRequirement_NotFound(t *testing.T) {
	st := newMemStore()
	svc := newService(st)

	_, err := svc.DeleteSystemRequirement(context.Background(), "p1", "SR-T1-404")
	var stepErr *requirements.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, requirements.StepDelete, stepErr.Step)
	assert.ErrorIs(t, err, requirements.ErrNotFound)
}

func TestDeleteRequirement_RetireFailureKeepsEarlierSteps(t *testing.T) {
	boom := errors.New("boom")
	st := newMemStore()
	st.br["BR-T1-001"] = requirements.BusinessRequirement{ID: "BR-T1-001"}
	st.sr["SR-T1-001"] = requirements.SystemRequirement{ID: "SR-T1-001", BusinessRequirementIDs: []string{"BR-T1-001"}}
	svc := newService(st)
	svc.SetNodeRetirer(&fakeRetirer{err: boom})

	_, err := svc.DeleteBusinessRequirement(context.Background(), "p1", "BR-T1-001")
	var stepErr *requirements.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, requirements.StepRetireLinks, stepErr.Step)
	assert.ErrorIs(t, err, boom)

	assert.NotContains(t, st.br, "BR-T1-001")
	assert.Empty(t, st.sr["SR-T1-001"].BusinessRequirementIDs)
}
