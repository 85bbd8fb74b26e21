package store

import (
	"context"
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/criteria"
)

const verificationColumns = `criterion_id, requirement_id, status, verified_by, verified_at, evidence, sort_order`

// ListVerifications returns a requirement's verification records ordered by
// sort order.
func (s *Store) ListVerifications(ctx context.Context, projectID, requirementID string) ([]criteria.Verification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM acceptance_criteria
		 WHERE project_id = ? AND requirement_id = ?
		 ORDER BY sort_order, criterion_id`,
		projectID, requirementID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying verifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []criteria.Verification{}
	for rows.Next() {
		var (
			v      criteria.Verification
			status string
		)
		if err := rows.Scan(&v.CriterionID, &v.RequirementID, &status, &v.VerifiedBy, &v.VerifiedAt, &v.Evidence, &v.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning verification: %w", err)
		}
		v.Status = criteria.Status(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReplaceVerifications deletes all records of the requirement and inserts
// vs in one transaction, then returns what was stored.
func (s *Store) ReplaceVerifications(ctx context.Context, projectID, requirementID string, vs []criteria.Verification) ([]criteria.Verification, error) {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := s.execHook(ctx, tx,
		`DELETE FROM acceptance_criteria WHERE project_id = ? AND requirement_id = ?`,
		projectID, requirementID,
	); err != nil {
		return nil, fmt.Errorf("clearing verifications of %s: %w", requirementID, err)
	}

	for _, v := range vs {
		if v.Status == "" {
			v.Status = criteria.StatusUnverified
		}
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO acceptance_criteria (project_id, `+verificationColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, v.CriterionID, requirementID, string(v.Status),
			nullableString(v.VerifiedBy), nullableString(v.VerifiedAt), nullableString(v.Evidence), v.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("inserting verification %s: %w", v.CriterionID, err)
		}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.ListVerifications(ctx, projectID, requirementID)
}

// SetVerification upserts the verification record of one criterion. This
// is where a record is first created.
func (s *Store) SetVerification(ctx context.Context, projectID string, v criteria.Verification) (*criteria.Verification, error) {
	if err := criteria.ValidateStatus(v.Status); err != nil {
		return nil, err
	}
	if v.VerifiedAt == nil && v.Status != criteria.StatusUnverified {
		ts := now()
		v.VerifiedAt = &ts
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO acceptance_criteria (project_id, `+verificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, criterion_id) DO UPDATE SET
		     requirement_id = excluded.requirement_id,
		     status         = excluded.status,
		     verified_by    = excluded.verified_by,
		     verified_at    = excluded.verified_at,
		     evidence       = excluded.evidence,
		     sort_order     = excluded.sort_order`,
		projectID, v.CriterionID, v.RequirementID, string(v.Status),
		nullableString(v.VerifiedBy), nullableString(v.VerifiedAt), nullableString(v.Evidence), v.SortOrder,
	); err != nil {
		return nil, fmt.Errorf("saving verification %s: %w", v.CriterionID, err)
	}

	vs, err := s.ListVerifications(ctx, projectID, v.RequirementID)
	if err != nil {
		return nil, err
	}
	for i := range vs {
		if vs[i].CriterionID == v.CriterionID {
			return &vs[i], nil
		}
	}
	return nil, fmt.Errorf("verification %s not found after save", v.CriterionID)
}
