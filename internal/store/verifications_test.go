package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/store"
)

func TestSetVerification_CreatesAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	defer store.SetClock(time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC))()

	v, err := s.SetVerification(ctx, "p1", criteria.Verification{
		CriterionID:   "AC-BR-T1-001-01",
		RequirementID: "BR-T1-001",
		Status:        criteria.StatusVerifiedOK,
		VerifiedBy:    strPtr("qa"),
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if v.Status != criteria.StatusVerifiedOK || v.VerifiedAt == nil || *v.VerifiedAt != "2026-05-04T09:30:00Z" {
		t.Errorf("unexpected record: %+v", v)
	}

	v, err = s.SetVerification(ctx, "p1", criteria.Verification{
		CriterionID:   "AC-BR-T1-001-01",
		RequirementID: "BR-T1-001",
		Status:        criteria.StatusVerifiedNG,
		Evidence:      strPtr("fails on empty password"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v.Status != criteria.StatusVerifiedNG || v.Evidence == nil {
		t.Errorf("update not applied: %+v", v)
	}

	all, _ := s.ListVerifications(ctx, "p1", "BR-T1-001")
	if len(all) != 1 {
		t.Errorf("upsert must not duplicate, got %d records", len(all))
	}
}

func TestSetVerification_InvalidStatus(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SetVerification(context.Background(), "p1", criteria.Verification{
		CriterionID: "AC-1", RequirementID: "BR-T1-001", Status: "done",
	})
	if err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestReplaceVerifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"AC-SR-T1-001-01", "AC-SR-T1-001-02"} {
		if _, err := s.SetVerification(ctx, "p1", criteria.Verification{
			CriterionID: id, RequirementID: "SR-T1-001", Status: criteria.StatusVerifiedOK,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// A record of another requirement must survive.
	if _, err := s.SetVerification(ctx, "p1", criteria.Verification{
		CriterionID: "AC-SR-T1-002-01", RequirementID: "SR-T1-002", Status: criteria.StatusVerifiedOK,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReplaceVerifications(ctx, "p1", "SR-T1-001", []criteria.Verification{
		{CriterionID: "AC-SR-T1-001-02", RequirementID: "SR-T1-001", Status: criteria.StatusVerifiedOK, SortOrder: 0},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(got) != 1 || got[0].CriterionID != "AC-SR-T1-001-02" {
		t.Errorf("replace result = %+v", got)
	}

	other, _ := s.ListVerifications(ctx, "p1", "SR-T1-002")
	if len(other) != 1 {
		t.Errorf("unrelated requirement lost its records: %+v", other)
	}
}

func TestReplaceVerifications_DefaultsStatus(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ReplaceVerifications(context.Background(), "p1", "BR-T1-001", []criteria.Verification{
		{CriterionID: "AC-BR-T1-001-01", RequirementID: "BR-T1-001"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Status != criteria.StatusUnverified {
		t.Errorf("status = %q, want unverified", got[0].Status)
	}
}
