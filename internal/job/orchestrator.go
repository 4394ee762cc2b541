// Package job orchestrates the scan pipeline: it owns the OCR job lifecycle
// and drives fetch, extraction, parsing, classification, and reconciliation
// for a contact's business card.
package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscan/internal/audit"
	"github.com/sells-group/leadscan/internal/cardsource"
	"github.com/sells-group/leadscan/internal/classifier"
	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/parser"
	"github.com/sells-group/leadscan/internal/reconcile"
	"github.com/sells-group/leadscan/internal/store"
)

const (
	// pendingBatchLimit caps how many backlog jobs one drain pass claims.
	pendingBatchLimit = 100

	// writeBackAttempts bounds the reconcile/write cycle under revision
	// conflicts with concurrent editors.
	writeBackAttempts = 3

	defaultConcurrency = 3
)

// Orchestrator wires the pipeline stages together over a Store.
type Orchestrator struct {
	store      store.Store
	source     cardsource.Source
	extractor  *ocr.Extractor
	classifier classifier.Classifier
	audit      *audit.Recorder
	cfg        config.Config
}

// New creates an Orchestrator. All collaborators are required.
func New(
	st store.Store,
	source cardsource.Source,
	extractor *ocr.Extractor,
	cls classifier.Classifier,
	rec *audit.Recorder,
	cfg config.Config,
) *Orchestrator {
	return &Orchestrator{
		store:      st,
		source:     source,
		extractor:  extractor,
		classifier: cls,
		audit:      rec,
		cfg:        cfg,
	}
}

// CreateJob queues a new scan for a contact. The contact must exist and
// carry a business card URL.
func (o *Orchestrator) CreateJob(ctx context.Context, contactID string) (*model.Job, error) {
	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, eris.Wrapf(err, "job: load contact %s", contactID)
	}
	if contact.BusinessCardURL == "" {
		return nil, &MissingInputError{ContactID: contactID}
	}

	j, err := o.store.CreateJob(ctx, contactID)
	if err != nil {
		return nil, eris.Wrap(err, "job: create")
	}
	o.audit.Record(ctx, "ocr_job_created", "ocr_job", j.ID, map[string]string{
		"contact_id": contactID,
	})
	zap.L().Info("ocr job queued",
		zap.String("job_id", j.ID),
		zap.String("contact_id", contactID),
	)
	return j, nil
}

// ProcessJob runs the full pipeline for one pending job. Jobs in any other
// state are rejected without mutation. On pipeline failure the job and its
// contact are marked failed and the stage error is returned.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID string) error {
	j, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "job: load %s", jobID)
	}
	if j.Status != model.JobPending {
		return &InvalidStateError{JobID: jobID, Status: j.Status}
	}

	now := time.Now().UTC()
	j.Status = model.JobProcessing
	j.StartedAt = &now
	if err := o.store.UpdateJob(ctx, j); err != nil {
		return eris.Wrapf(err, "job: mark %s processing", jobID)
	}
	// The job is already marked processing; any failure from here on must
	// land it in a terminal state or it can never be processed again.
	if err := o.store.UpdateContactStatus(ctx, j.ContactID, model.ContactProcessing); err != nil {
		err = wrapStage(ErrPersistence, eris.Wrapf(err, "mark contact %s processing", j.ContactID))
		o.failJob(ctx, j, err)
		return err
	}

	if err := o.runPipeline(ctx, j); err != nil {
		o.failJob(ctx, j, err)
		return err
	}

	done := time.Now().UTC()
	j.Status = model.JobCompleted
	j.CompletedAt = &done
	if err := o.store.UpdateJob(ctx, j); err != nil {
		err = wrapStage(ErrPersistence, eris.Wrapf(err, "mark %s completed", jobID))
		o.failJob(ctx, j, err)
		return err
	}
	o.audit.Record(ctx, "ocr_job_completed", "ocr_job", j.ID, map[string]string{
		"contact_id": j.ContactID,
	})
	zap.L().Info("ocr job completed",
		zap.String("job_id", j.ID),
		zap.String("contact_id", j.ContactID),
		zap.Duration("took", done.Sub(now)),
	)
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, j *model.Job) error {
	contact, err := o.store.GetContact(ctx, j.ContactID)
	if err != nil {
		return eris.Wrapf(err, "job: load contact %s", j.ContactID)
	}
	if contact.BusinessCardURL == "" {
		return &MissingInputError{ContactID: contact.ID}
	}

	image, err := o.source.Fetch(ctx, contact.BusinessCardURL)
	if err != nil {
		return wrapStage(ErrExtraction, eris.Wrap(err, "fetch card image"))
	}
	format, ok := ocr.SniffImage(image)
	if !ok {
		return eris.Wrapf(ErrExtraction, "unsupported image format for contact %s", contact.ID)
	}
	zap.L().Debug("card image fetched",
		zap.String("contact_id", contact.ID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(image)),
	)

	raw, err := o.extractor.Extract(ctx, image)
	if err != nil {
		return wrapStage(ErrExtraction, err)
	}

	parsed := parser.Parse(raw)
	input := model.ClassifyInput{
		RawText:       raw.Text,
		Initial:       parsed,
		OCRConfidence: raw.Confidence,
	}

	cls, err := o.classifier.Classify(ctx, input)
	if err != nil {
		return wrapStage(ErrClassification, err)
	}

	result, err := o.writeBack(ctx, contact, input, cls)
	if err != nil {
		return err
	}
	o.audit.Record(ctx, "contact_reconciled", "contact", contact.ID, map[string]any{
		"job_id":     j.ID,
		"status":     result.Status,
		"confidence": cls.Overall,
		"fallback":   cls.Fallback,
		"actions":    result.Actions,
	})
	return nil
}

// writeBack applies the classification and persists under optimistic
// concurrency. On a revision conflict the contact is re-read and the merge
// re-applied so concurrent user edits are honored.
func (o *Orchestrator) writeBack(
	ctx context.Context,
	contact *model.Contact,
	input model.ClassifyInput,
	cls *model.Classification,
) (reconcile.Result, error) {
	var result reconcile.Result
	for attempt := 1; attempt <= writeBackAttempts; attempt++ {
		result = reconcile.Apply(contact, input, cls, time.Now().UTC())

		err := o.store.UpdateContact(ctx, contact)
		if err == nil {
			return result, nil
		}
		if !eris.Is(err, store.ErrRevisionConflict) {
			return result, wrapStage(ErrPersistence, err)
		}

		zap.L().Warn("contact changed during scan, re-reconciling",
			zap.String("contact_id", contact.ID),
			zap.Int("attempt", attempt),
		)
		contact, err = o.store.GetContact(ctx, contact.ID)
		if err != nil {
			return result, wrapStage(ErrPersistence, err)
		}
	}
	return result, eris.Wrapf(ErrPersistence,
		"contact %s kept changing after %d attempts", contact.ID, writeBackAttempts)
}

// failJob records a terminal failure on both the job and its contact. The
// marking writes are best-effort: the original stage error is what callers
// see.
func (o *Orchestrator) failJob(ctx context.Context, j *model.Job, cause error) {
	done := time.Now().UTC()
	j.Status = model.JobFailed
	j.ErrorMessage = cause.Error()
	j.CompletedAt = &done
	if err := o.store.UpdateJob(ctx, j); err != nil {
		zap.L().Error("failed to mark job failed",
			zap.String("job_id", j.ID), zap.Error(err))
	}
	if err := o.store.UpdateContactStatus(ctx, j.ContactID, model.ContactFailed); err != nil {
		zap.L().Error("failed to mark contact failed",
			zap.String("contact_id", j.ContactID), zap.Error(err))
	}
	o.audit.Record(ctx, "ocr_job_failed", "ocr_job", j.ID, map[string]string{
		"contact_id": j.ContactID,
		"error":      cause.Error(),
	})
	zap.L().Error("ocr job failed",
		zap.String("job_id", j.ID),
		zap.String("contact_id", j.ContactID),
		zap.Error(cause),
	)
}

// ProcessPendingJobs drains the pending backlog, oldest first, with bounded
// concurrency. One job's failure never aborts the batch.
func (o *Orchestrator) ProcessPendingJobs(ctx context.Context) (*model.BatchResult, error) {
	pending, err := o.store.ListPendingJobs(ctx, pendingBatchLimit)
	if err != nil {
		return nil, eris.Wrap(err, "job: list pending")
	}
	if len(pending) == 0 {
		return &model.BatchResult{}, nil
	}

	concurrency := o.cfg.Batch.MaxConcurrentJobs
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, p := range pending {
		g.Go(func() error {
			if err := o.ProcessJob(gctx, p.ID); err != nil {
				failed.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := &model.BatchResult{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}
	o.audit.Record(ctx, "batch_processed", "ocr_job", "", result)
	zap.L().Info("pending backlog drained",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Stats bundles the job and contact summaries for the stats surfaces.
type Stats struct {
	Jobs     *model.JobStats     `json:"jobs"`
	Contacts *model.ContactStats `json:"contacts"`
}

// Stats reports job and contact counts.
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	jobs, err := o.store.JobStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "job: job stats")
	}
	contacts, err := o.store.ContactStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "job: contact stats")
	}
	return &Stats{Jobs: jobs, Contacts: contacts}, nil
}

// CleanupOldJobs deletes terminal jobs older than days and returns how many
// were removed. A non-positive days falls back to the configured retention
// window.
func (o *Orchestrator) CleanupOldJobs(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = o.cfg.Retention.JobMaxAgeDays
	}
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := o.store.DeleteJobsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "job: cleanup")
	}
	if n > 0 {
		o.audit.Record(ctx, "jobs_cleaned", "ocr_job", "", map[string]int{"deleted": n})
		zap.L().Info("old jobs deleted", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func wrapStage(stage, err error) error {
	return eris.Wrap(stage, err.Error())
}
