package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/requirements"
)

// ─── Business requirements ───────────────────────────────────────────────────

const brColumns = `id, project_id, task_id, title, summary, goal, constraints, owner,
	concept_ids, srf_id, system_domain_ids, impacts, related_system_requirement_ids,
	priority, acceptance_criteria_json, sort_order, version, created_at, updated_at`

// GetBusinessRequirementsByIDs returns the requirements with the given IDs
// that exist in the project. Missing IDs are skipped.
func (s *Store) GetBusinessRequirementsByIDs(ctx context.Context, projectID string, ids []string) ([]requirements.BusinessRequirement, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []requirements.BusinessRequirement{}, nil
	}
	args := []any{projectID}
	for _, id := range ids {
		args = append(args, id)
	}
	return s.queryBusiness(ctx, s.db,
		`SELECT `+brColumns+` FROM business_requirements
		 WHERE project_id = ? AND id IN (`+placeholders(len(ids))+`)
		 ORDER BY sort_order, id`, args...)
}

// ListBusinessRequirements returns the project's business requirements
// matching f.
func (s *Store) ListBusinessRequirements(ctx context.Context, projectID string, f requirements.Filter) ([]requirements.BusinessRequirement, error) {
	query := `SELECT ` + brColumns + ` FROM business_requirements WHERE project_id = ?`
	args := []any{projectID}
	if f.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if f.SRFID != "" {
		query += " AND srf_id = ?"
		args = append(args, f.SRFID)
	}
	query += " ORDER BY sort_order, id"
	return s.queryBusiness(ctx, s.db, query, args...)
}

// SaveBusinessRequirements upserts the batch in one transaction and returns
// the persisted rows in input order.
func (s *Store) SaveBusinessRequirements(ctx context.Context, projectID string, brs []requirements.BusinessRequirement) ([]requirements.BusinessRequirement, error) {
	if len(brs) == 0 {
		return []requirements.BusinessRequirement{}, nil
	}
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ts := now()
	ids := make([]string, 0, len(brs))
	for _, br := range brs {
		if br.ID == "" {
			return nil, errors.New("business requirement without id")
		}
		if err := s.upsertBusiness(ctx, tx, projectID, br, ts); err != nil {
			return nil, err
		}
		ids = append(ids, br.ID)
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	saved, err := s.GetBusinessRequirementsByIDs(ctx, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("reading back business requirements: %w", err)
	}
	return orderByIDs(saved, ids, func(b requirements.BusinessRequirement) string { return b.ID }), nil
}

func (s *Store) upsertBusiness(ctx context.Context, tx *sql.Tx, projectID string, br requirements.BusinessRequirement, ts string) error {
	conceptIDs, err := encodeIDs(br.ConceptIDs)
	if err != nil {
		return err
	}
	domainIDs, err := encodeIDs(br.SystemDomainIDs)
	if err != nil {
		return err
	}
	related, err := encodeIDs(br.RelatedSystemRequirementIDs)
	if err != nil {
		return err
	}
	structured := criteria.Normalize(br.AcceptanceCriteriaJSON)
	acJSON, err := criteria.MarshalJSON(structured)
	if err != nil {
		return err
	}
	legacy, err := encodeIDs(criteria.ToLegacy(structured))
	if err != nil {
		return err
	}

	stored, err := storedVersion(ctx, tx, "business_requirements", projectID, br.ID)
	if err != nil {
		return err
	}
	if err := checkVersion("business requirement", br.ID, br.Version, stored); err != nil {
		return err
	}

	if stored == 0 {
		_, err = s.execHook(ctx, tx,
			`INSERT INTO business_requirements (`+brColumns+`, acceptance_criteria)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			br.ID, projectID, br.TaskID, br.Title, br.Summary, br.Goal, br.Constraints, br.Owner,
			conceptIDs, nullableString(br.SRFID), domainIDs, br.Impacts, related,
			string(br.Priority), string(acJSON), br.SortOrder, ts, ts, legacy,
		)
		if err != nil {
			return fmt.Errorf("inserting business requirement %s: %w", br.ID, err)
		}
		return nil
	}

	res, err := s.execHook(ctx, tx,
		`UPDATE business_requirements
		 SET task_id = ?, title = ?, summary = ?, goal = ?, constraints = ?, owner = ?,
		     concept_ids = ?, srf_id = ?, system_domain_ids = ?, impacts = ?,
		     related_system_requirement_ids = ?, priority = ?,
		     acceptance_criteria_json = ?, acceptance_criteria = ?, sort_order = ?,
		     version = version + 1, updated_at = ?
		 WHERE project_id = ? AND id = ? AND version = ?`,
		br.TaskID, br.Title, br.Summary, br.Goal, br.Constraints, br.Owner,
		conceptIDs, nullableString(br.SRFID), domainIDs, br.Impacts,
		related, string(br.Priority),
		string(acJSON), legacy, br.SortOrder,
		ts, projectID, br.ID, br.Version,
	)
	if err != nil {
		return fmt.Errorf("updating business requirement %s: %w", br.ID, err)
	}
	return requireOneRow(res, "business requirement", br.ID)
}

// DeleteBusinessRequirement hard-deletes a business requirement together
// with its verification records.
func (s *Store) DeleteBusinessRequirement(ctx context.Context, projectID, id string) error {
	return s.deleteRequirement(ctx, "business_requirements", projectID, id)
}

func (s *Store) queryBusiness(ctx context.Context, q queryer, query string, args ...any) ([]requirements.BusinessRequirement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []requirements.BusinessRequirement{}
	for rows.Next() {
		var (
			br                                    requirements.BusinessRequirement
			conceptIDs, domainIDs, related, acJSON string
			priority                              string
		)
		if err := rows.Scan(
			&br.ID, &br.ProjectID, &br.TaskID, &br.Title, &br.Summary, &br.Goal, &br.Constraints, &br.Owner,
			&conceptIDs, &br.SRFID, &domainIDs, &br.Impacts, &related,
			&priority, &acJSON, &br.SortOrder, &br.Version, &br.CreatedAt, &br.UpdatedAt,
		); err != nil {
			return nil, err
		}
		br.ConceptIDs = decodeIDs(conceptIDs)
		br.SystemDomainIDs = decodeIDs(domainIDs)
		br.RelatedSystemRequirementIDs = decodeIDs(related)
		br.Priority = requirements.Priority(priority)
		br.AcceptanceCriteriaJSON = criteria.NormalizeJSON([]byte(acJSON))
		br.AcceptanceCriteria = criteria.ToLegacy(br.AcceptanceCriteriaJSON)
		out = append(out, br)
	}
	return out, rows.Err()
}

// ─── System requirements ─────────────────────────────────────────────────────

const srColumns = `id, project_id, task_id, srf_id, title, summary, category,
	concept_ids, impacts, business_requirement_ids, related_deliverable_ids,
	acceptance_criteria_json, system_domain_ids, sort_order, version, created_at, updated_at`

// GetSystemRequirementsByIDs returns the requirements with the given IDs
// that exist in the project. Missing IDs are skipped.
func (s *Store) GetSystemRequirementsByIDs(ctx context.Context, projectID string, ids []string) ([]requirements.SystemRequirement, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []requirements.SystemRequirement{}, nil
	}
	args := []any{projectID}
	for _, id := range ids {
		args = append(args, id)
	}
	return s.querySystem(ctx, s.db,
		`SELECT `+srColumns+` FROM system_requirements
		 WHERE project_id = ? AND id IN (`+placeholders(len(ids))+`)
		 ORDER BY sort_order, id`, args...)
}

// ListSystemRequirements returns the project's system requirements matching f.
func (s *Store) ListSystemRequirements(ctx context.Context, projectID string, f requirements.Filter) ([]requirements.SystemRequirement, error) {
	query := `SELECT ` + srColumns + ` FROM system_requirements WHERE project_id = ?`
	args := []any{projectID}
	if f.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if f.SRFID != "" {
		query += " AND srf_id = ?"
		args = append(args, f.SRFID)
	}
	query += " ORDER BY sort_order, id"
	return s.querySystem(ctx, s.db, query, args...)
}

// SaveSystemRequirements upserts the batch in one transaction and returns
// the persisted rows in input order.
func (s *Store) SaveSystemRequirements(ctx context.Context, projectID string, srs []requirements.SystemRequirement) ([]requirements.SystemRequirement, error) {
	if len(srs) == 0 {
		return []requirements.SystemRequirement{}, nil
	}
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ts := now()
	ids := make([]string, 0, len(srs))
	for _, sr := range srs {
		if sr.ID == "" {
			return nil, errors.New("system requirement without id")
		}
		if err := s.upsertSystem(ctx, tx, projectID, sr, ts); err != nil {
			return nil, err
		}
		ids = append(ids, sr.ID)
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	saved, err := s.GetSystemRequirementsByIDs(ctx, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("reading back system requirements: %w", err)
	}
	return orderByIDs(saved, ids, func(r requirements.SystemRequirement) string { return r.ID }), nil
}

func (s *Store) upsertSystem(ctx context.Context, tx *sql.Tx, projectID string, sr requirements.SystemRequirement, ts string) error {
	conceptIDs, err := encodeIDs(sr.ConceptIDs)
	if err != nil {
		return err
	}
	brIDs, err := encodeIDs(sr.BusinessRequirementIDs)
	if err != nil {
		return err
	}
	deliverables, err := encodeIDs(sr.RelatedDeliverableIDs)
	if err != nil {
		return err
	}
	domainIDs, err := encodeIDs(sr.SystemDomainIDs)
	if err != nil {
		return err
	}
	structured := criteria.Normalize(sr.AcceptanceCriteriaJSON)
	acJSON, err := criteria.MarshalJSON(structured)
	if err != nil {
		return err
	}
	legacy, err := encodeIDs(criteria.ToLegacy(structured))
	if err != nil {
		return err
	}

	stored, err := storedVersion(ctx, tx, "system_requirements", projectID, sr.ID)
	if err != nil {
		return err
	}
	if err := checkVersion("system requirement", sr.ID, sr.Version, stored); err != nil {
		return err
	}

	if stored == 0 {
		_, err = s.execHook(ctx, tx,
			`INSERT INTO system_requirements (`+srColumns+`, acceptance_criteria)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			sr.ID, projectID, sr.TaskID, nullableString(sr.SRFID), sr.Title, sr.Summary, string(sr.Category),
			conceptIDs, sr.Impacts, brIDs, deliverables,
			string(acJSON), domainIDs, sr.SortOrder, ts, ts, legacy,
		)
		if err != nil {
			return fmt.Errorf("inserting system requirement %s: %w", sr.ID, err)
		}
		return nil
	}

	res, err := s.execHook(ctx, tx,
		`UPDATE system_requirements
		 SET task_id = ?, srf_id = ?, title = ?, summary = ?, category = ?,
		     concept_ids = ?, impacts = ?, business_requirement_ids = ?, related_deliverable_ids = ?,
		     acceptance_criteria_json = ?, acceptance_criteria = ?, system_domain_ids = ?, sort_order = ?,
		     version = version + 1, updated_at = ?
		 WHERE project_id = ? AND id = ? AND version = ?`,
		sr.TaskID, nullableString(sr.SRFID), sr.Title, sr.Summary, string(sr.Category),
		conceptIDs, sr.Impacts, brIDs, deliverables,
		string(acJSON), legacy, domainIDs, sr.SortOrder,
		ts, projectID, sr.ID, sr.Version,
	)
	if err != nil {
		return fmt.Errorf("updating system requirement %s: %w", sr.ID, err)
	}
	return requireOneRow(res, "system requirement", sr.ID)
}

// DeleteSystemRequirement hard-deletes a system requirement together with
// its verification records.
func (s *Store) DeleteSystemRequirement(ctx context.Context, projectID, id string) error {
	return s.deleteRequirement(ctx, "system_requirements", projectID, id)
}

func (s *Store) querySystem(ctx context.Context, q queryer, query string, args ...any) ([]requirements.SystemRequirement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []requirements.SystemRequirement{}
	for rows.Next() {
		var (
			sr                                                     requirements.SystemRequirement
			category, conceptIDs, brIDs, deliverables, acJSON, dom string
		)
		if err := rows.Scan(
			&sr.ID, &sr.ProjectID, &sr.TaskID, &sr.SRFID, &sr.Title, &sr.Summary, &category,
			&conceptIDs, &sr.Impacts, &brIDs, &deliverables,
			&acJSON, &dom, &sr.SortOrder, &sr.Version, &sr.CreatedAt, &sr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sr.Category = requirements.Category(category)
		sr.ConceptIDs = decodeIDs(conceptIDs)
		sr.BusinessRequirementIDs = decodeIDs(brIDs)
		sr.RelatedDeliverableIDs = decodeIDs(deliverables)
		sr.SystemDomainIDs = decodeIDs(dom)
		sr.AcceptanceCriteriaJSON = criteria.NormalizeJSON([]byte(acJSON))
		sr.AcceptanceCriteria = criteria.ToLegacy(sr.AcceptanceCriteriaJSON)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// ─── Shared ──────────────────────────────────────────────────────────────────

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// storedVersion returns the current version of a row, 0 if it does not exist.
func storedVersion(ctx context.Context, tx *sql.Tx, table, projectID, id string) (int64, error) {
	var v int64
	err := tx.QueryRowContext(ctx,
		`SELECT version FROM `+table+` WHERE project_id = ? AND id = ?`, projectID, id,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version of %s: %w", id, err)
	}
	return v, nil
}

// checkVersion enforces the optimistic-concurrency precondition. Version 0
// means "new record" and requires that none is stored.
func checkVersion(kind, id string, have, stored int64) error {
	switch {
	case have == 0 && stored != 0:
		return fmt.Errorf("%s %s already exists at version %d: %w", kind, id, stored, ErrConflict)
	case have != 0 && stored == 0:
		return fmt.Errorf("%s %s no longer exists: %w", kind, id, ErrConflict)
	case have != stored:
		return fmt.Errorf("%s %s is at version %d, edit was based on %d: %w", kind, id, stored, have, ErrConflict)
	}
	return nil
}

func requireOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrConflict)
	}
	return nil
}

func (s *Store) deleteRequirement(ctx context.Context, table, projectID, id string) error {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := s.execHook(ctx, tx, `DELETE FROM `+table+` WHERE project_id = ? AND id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("requirement %s: %w", id, requirements.ErrNotFound)
	}
	if _, err := s.execHook(ctx, tx,
		`DELETE FROM acceptance_criteria WHERE project_id = ? AND requirement_id = ?`, projectID, id,
	); err != nil {
		return fmt.Errorf("deleting acceptance criteria of %s: %w", id, err)
	}
	return s.commitHook(tx)
}

// orderByIDs returns records in the order of ids, skipping missing ones.
func orderByIDs[T any](records []T, ids []string, id func(T) string) []T {
	byID := make(map[string]T, len(records))
	for _, r := range records {
		byID[id(r)] = r
	}
	out := make([]T, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, k := range ids {
		if r, ok := byID[k]; ok && !seen[k] {
			out = append(out, r)
			seen[k] = true
		}
	}
	return out
}
