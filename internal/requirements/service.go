package requirements

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HendryAvila/reqgraph/internal/criteria"
	"github.com/HendryAvila/reqgraph/internal/idalloc"
	"github.com/HendryAvila/reqgraph/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/HendryAvila/reqgraph/requirements"

// Save pipeline steps, reported in StepError.
const (
	StepValidate      = "validate"
	StepAllocate      = "allocate"
	StepLoad          = "load"
	StepLinkUp        = "link-up"
	StepSaveBusiness  = "save-business"
	StepSaveSystem    = "save-system"
	StepVerifications = "verifications"
)

// StepError reports which step of a multi-step save failed. Steps before
// it have already been persisted; nothing is rolled back.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Batch is one edit session's worth of requirements for a task.
type Batch struct {
	TaskID   string
	Business []BusinessRequirement
	System   []SystemRequirement
	// LegacyCriteriaOnly marks that the edit surface changed only the flat
	// AcceptanceCriteria lists; they are merged into the stored structured
	// lists instead of being overwritten by them.
	LegacyCriteriaOnly bool
}

// SaveResult holds the rows as persisted.
type SaveResult struct {
	Business []BusinessRequirement `json:"business"`
	System   []SystemRequirement   `json:"system"`
	// LinkedUp counts records outside the batch that gained a reciprocal link.
	LinkedUp int `json:"linked_up"`
}

// Service runs the save pipeline for requirement batches.
type Service struct {
	store         Store
	verifications criteria.VerificationStore
	log           *slog.Logger
	tracer        trace.Tracer
	padLength     int
	retirer       NodeRetirer
}

// NewService creates a Service. verifications may be nil, in which case
// verification state is not carried across saves.
func NewService(store Store, verifications criteria.VerificationStore, log *slog.Logger) *Service {
	if log == nil {
		log = telemetry.Discard()
	}
	return &Service{
		store:         store,
		verifications: verifications,
		log:           log,
		tracer:        telemetry.Tracer(scopeName),
		padLength:     idalloc.DefaultPad,
	}
}

// SetPadLength overrides the zero-pad width of allocated requirement IDs.
func (s *Service) SetPadLength(n int) { s.padLength = n }

// SaveBatch validates, completes and persists a batch:
//
//  1. enums are validated;
//  2. records without an ID get the next BR-/SR- ID for the task;
//  3. acceptance criteria are reconciled (structured and legacy agree);
//     legacy-only edits merge into the stored structured list;
//  4. the BR/SR mirror is synchronized within the batch;
//  5. counterparts outside the batch are linked up;
//  6. business then system requirements are written;
//  7. verification state is carried onto the rewritten criteria.
//
// The pipeline stops at the first failing step and returns a *StepError.
func (s *Service) SaveBatch(ctx context.Context, projectID string, b Batch) (res *SaveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "requirements.SaveBatch", trace.WithAttributes(
		attribute.String("reqgraph.project_id", projectID),
		attribute.String("reqgraph.task_id", b.TaskID),
		attribute.Int("reqgraph.business.count", len(b.Business)),
		attribute.Int("reqgraph.system.count", len(b.System)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateBatch(b); err != nil {
		return nil, &StepError{Step: StepValidate, Err: err}
	}

	brs := make([]BusinessRequirement, len(b.Business))
	for i, br := range b.Business {
		brs[i] = br.clone()
		brs[i].ProjectID = projectID
		if brs[i].TaskID == "" {
			brs[i].TaskID = b.TaskID
		}
	}
	srs := make([]SystemRequirement, len(b.System))
	for i, sr := range b.System {
		srs[i] = sr.clone()
		srs[i].ProjectID = projectID
		if srs[i].TaskID == "" {
			srs[i].TaskID = b.TaskID
		}
	}

	if err := s.allocateIDs(ctx, projectID, b.TaskID, brs, srs); err != nil {
		return nil, &StepError{Step: StepAllocate, Err: err}
	}

	if b.LegacyCriteriaOnly {
		stored, err := s.storedCriteria(ctx, projectID, brs, srs)
		if err != nil {
			return nil, &StepError{Step: StepLoad, Err: err}
		}
		for i := range brs {
			if prev, ok := stored[brs[i].ID]; ok {
				brs[i].AcceptanceCriteriaJSON = prev
			}
		}
		for i := range srs {
			if prev, ok := stored[srs[i].ID]; ok {
				srs[i].AcceptanceCriteriaJSON = prev
			}
		}
	}

	for i := range brs {
		brs[i].AcceptanceCriteriaJSON, brs[i].AcceptanceCriteria = criteria.Reconcile(
			brs[i].ID, brs[i].AcceptanceCriteriaJSON, brs[i].AcceptanceCriteria, b.LegacyCriteriaOnly)
	}
	for i := range srs {
		srs[i].AcceptanceCriteriaJSON, srs[i].AcceptanceCriteria = criteria.Reconcile(
			srs[i].ID, srs[i].AcceptanceCriteriaJSON, srs[i].AcceptanceCriteria, b.LegacyCriteriaOnly)
	}

	brs, srs = Synchronize(brs, srs)

	extraBR, extraSR, err := LinkUp(ctx, s.store, projectID, brs, srs)
	if err != nil {
		return nil, &StepError{Step: StepLinkUp, Err: err}
	}

	prevCriteria, err := s.loadVerifications(ctx, projectID, brs, srs)
	if err != nil {
		return nil, &StepError{Step: StepVerifications, Err: err}
	}

	savedBR, err := s.store.SaveBusinessRequirements(ctx, projectID, append(brs, extraBR...))
	if err != nil {
		return nil, &StepError{Step: StepSaveBusiness, Err: err}
	}
	savedSR, err := s.store.SaveSystemRequirements(ctx, projectID, append(srs, extraSR...))
	if err != nil {
		return nil, &StepError{Step: StepSaveSystem, Err: err}
	}

	// Re-derive the legacy list from what was actually stored.
	for i := range savedBR {
		savedBR[i].AcceptanceCriteriaJSON = criteria.Normalize(savedBR[i].AcceptanceCriteriaJSON)
		savedBR[i].AcceptanceCriteria = criteria.ToLegacy(savedBR[i].AcceptanceCriteriaJSON)
	}
	for i := range savedSR {
		savedSR[i].AcceptanceCriteriaJSON = criteria.Normalize(savedSR[i].AcceptanceCriteriaJSON)
		savedSR[i].AcceptanceCriteria = criteria.ToLegacy(savedSR[i].AcceptanceCriteriaJSON)
	}

	if err := s.carryVerifications(ctx, projectID, prevCriteria, brs, srs); err != nil {
		return nil, &StepError{Step: StepVerifications, Err: err}
	}

	s.log.Info("requirements saved",
		"project_id", projectID,
		"task_id", b.TaskID,
		"business", len(brs),
		"system", len(srs),
		"linked_up", len(extraBR)+len(extraSR),
	)

	return &SaveResult{
		Business: savedBR,
		System:   savedSR,
		LinkedUp: len(extraBR) + len(extraSR),
	}, nil
}

func validateBatch(b Batch) error {
	for _, br := range b.Business {
		if err := ValidatePriority(br.Priority); err != nil {
			return fmt.Errorf("business requirement %q: %w", br.ID, err)
		}
		if br.TaskID == "" && b.TaskID == "" {
			return fmt.Errorf("business requirement %q: task id is required", br.ID)
		}
	}
	for _, sr := range b.System {
		if err := ValidateCategory(sr.Category); err != nil {
			return fmt.Errorf("system requirement %q: %w", sr.ID, err)
		}
		if sr.TaskID == "" && b.TaskID == "" {
			return fmt.Errorf("system requirement %q: task id is required", sr.ID)
		}
	}
	return nil
}

// allocateIDs assigns the next free BR-/SR- IDs to records that have none.
// Existing IDs of each task, both stored and in the batch, are taken into
// account. Records are processed per task in batch order.
func (s *Service) allocateIDs(ctx context.Context, projectID, taskID string, brs []BusinessRequirement, srs []SystemRequirement) error {
	brSeqs := map[string]*idalloc.Sequence{}
	for i := range brs {
		if brs[i].ID != "" {
			continue
		}
		task := brs[i].TaskID
		seq, ok := brSeqs[task]
		if !ok {
			stored, err := s.store.ListBusinessRequirements(ctx, projectID, Filter{TaskID: task})
			if err != nil {
				return fmt.Errorf("listing business requirements of task %q: %w", task, err)
			}
			ids := make([]string, 0, len(stored))
			for _, br := range stored {
				ids = append(ids, br.ID)
			}
			seq = idalloc.NewSequence(idalloc.BusinessRequirementPrefix(task), ids, s.padLength)
			for _, br := range brs {
				seq.Observe(br.ID)
			}
			brSeqs[task] = seq
		}
		brs[i].ID = seq.Next()
	}

	srSeqs := map[string]*idalloc.Sequence{}
	for i := range srs {
		if srs[i].ID != "" {
			continue
		}
		task := srs[i].TaskID
		seq, ok := srSeqs[task]
		if !ok {
			stored, err := s.store.ListSystemRequirements(ctx, projectID, Filter{TaskID: task})
			if err != nil {
				return fmt.Errorf("listing system requirements of task %q: %w", task, err)
			}
			ids := make([]string, 0, len(stored))
			for _, sr := range stored {
				ids = append(ids, sr.ID)
			}
			seq = idalloc.NewSequence(idalloc.SystemRequirementPrefix(task), ids, s.padLength)
			for _, sr := range srs {
				seq.Observe(sr.ID)
			}
			srSeqs[task] = seq
		}
		srs[i].ID = seq.Next()
	}
	return nil
}

// storedCriteria returns the persisted structured criteria of the batch
// records that already exist, keyed by requirement ID.
func (s *Service) storedCriteria(ctx context.Context, projectID string, brs []BusinessRequirement, srs []SystemRequirement) (map[string][]criteria.Criterion, error) {
	out := map[string][]criteria.Criterion{}
	if len(brs) > 0 {
		ids := make([]string, 0, len(brs))
		for _, br := range brs {
			ids = append(ids, br.ID)
		}
		found, err := s.store.GetBusinessRequirementsByIDs(ctx, projectID, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching stored business requirements: %w", err)
		}
		for _, br := range found {
			out[br.ID] = criteria.Normalize(br.AcceptanceCriteriaJSON)
		}
	}
	if len(srs) > 0 {
		ids := make([]string, 0, len(srs))
		for _, sr := range srs {
			ids = append(ids, sr.ID)
		}
		found, err := s.store.GetSystemRequirementsByIDs(ctx, projectID, ids)
		if err != nil {
			return nil, fmt.Errorf("fetching stored system requirements: %w", err)
		}
		for _, sr := range found {
			out[sr.ID] = criteria.Normalize(sr.AcceptanceCriteriaJSON)
		}
	}
	return out, nil
}

func (s *Service) loadVerifications(ctx context.Context, projectID string, brs []BusinessRequirement, srs []SystemRequirement) (map[string][]criteria.Verification, error) {
	if s.verifications == nil {
		return nil, nil
	}
	prev := map[string][]criteria.Verification{}
	load := func(reqID string) error {
		vs, err := s.verifications.ListVerifications(ctx, projectID, reqID)
		if err != nil {
			return fmt.Errorf("listing verifications of %q: %w", reqID, err)
		}
		if len(vs) > 0 {
			prev[reqID] = vs
		}
		return nil
	}
	for _, br := range brs {
		if err := load(br.ID); err != nil {
			return nil, err
		}
	}
	for _, sr := range srs {
		if err := load(sr.ID); err != nil {
			return nil, err
		}
	}
	return prev, nil
}

// carryVerifications rewrites verification records only for requirements
// that had some, following the delete-then-recreate pattern.
func (s *Service) carryVerifications(ctx context.Context, projectID string, prev map[string][]criteria.Verification, brs []BusinessRequirement, srs []SystemRequirement) error {
	if s.verifications == nil || len(prev) == 0 {
		return nil
	}
	structured := make(map[string][]criteria.Criterion, len(brs)+len(srs))
	for _, br := range brs {
		structured[br.ID] = br.AcceptanceCriteriaJSON
	}
	for _, sr := range srs {
		structured[sr.ID] = sr.AcceptanceCriteriaJSON
	}
	for reqID, vs := range prev {
		carried := criteria.CarryVerifications(vs, structured[reqID])
		if _, err := s.verifications.ReplaceVerifications(ctx, projectID, reqID, carried); err != nil {
			return fmt.Errorf("replacing verifications of %q: %w", reqID, err)
		}
		if dropped := len(vs) - len(carried); dropped > 0 {
			s.log.Debug("verification records dropped with their criteria",
				"requirement_id", reqID, "dropped", dropped)
		}
	}
	return nil
}
