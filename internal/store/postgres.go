package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	event_id             TEXT,
	full_name            TEXT NOT NULL DEFAULT '',
	email                TEXT,
	company              TEXT,
	title                TEXT,
	phone                TEXT,
	linkedin_url         TEXT,
	business_card_url    TEXT,
	ocr_confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	ocr_raw_data         JSONB,
	user_modified_fields JSONB,
	status               TEXT NOT NULL DEFAULT 'processing',
	revision             BIGINT NOT NULL DEFAULT 0,
	processed_at         TIMESTAMPTZ,
	reviewed_at          TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ocr_jobs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id    TEXT NOT NULL REFERENCES contacts(id),
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS activity_log (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT,
	actor       TEXT,
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status ON ocr_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_contact_id ON ocr_jobs(contact_id);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_created_at ON ocr_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_activity_log_entity ON activity_log(entity_type, entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Jobs

func (s *PostgresStore) CreateJob(ctx context.Context, contactID string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ocr_jobs (id, contact_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, contactID, string(model.JobPending), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert job for contact %s", contactID)
	}

	return &model.Job{
		ID:        id,
		ContactID: contactID,
		Status:    model.JobPending,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE id = $1`,
		jobID,
	)
	j, err := scanPgJob(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return j, nil
}

func (s *PostgresStore) ListJobsByContact(ctx context.Context, contactID string) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE contact_id = $1 ORDER BY created_at DESC`,
		contactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list jobs for contact %s", contactID)
	}
	defer rows.Close()
	return collectPgJobs(rows)
}

func (s *PostgresStore) ListPendingJobs(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(model.JobPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending jobs")
	}
	defer rows.Close()
	return collectPgJobs(rows)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.Job) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ocr_jobs SET status = $1, error_message = $2, started_at = $3, completed_at = $4 WHERE id = $5`,
		string(job.Status), emptyToNil(job.ErrorMessage), job.StartedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) JobStats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{ByStatus: make(map[model.JobStatus]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM ocr_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: job stats")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job stats")
		}
		stats.ByStatus[model.JobStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: job stats iterate")
	}

	var avg *float64
	err = s.pool.QueryRow(ctx,
		`SELECT AVG(EXTRACT(EPOCH FROM (completed_at - started_at)))
		 FROM ocr_jobs
		 WHERE status = $1 AND started_at IS NOT NULL AND completed_at IS NOT NULL`,
		string(model.JobCompleted),
	).Scan(&avg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: job durations")
	}
	if avg != nil {
		stats.AvgProcessingSecs = *avg
	}
	return stats, nil
}

func (s *PostgresStore) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ocr_jobs WHERE created_at < $1 AND status IN ($2, $3)`,
		cutoff.UTC(), string(model.JobCompleted), string(model.JobFailed),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete old jobs")
	}
	return int(tag.RowsAffected()), nil
}

// Contacts

func (s *PostgresStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	if contact.Status == "" {
		contact.Status = model.ContactProcessing
	}

	modifiedJSON, err := marshalModifiedPg(contact.UserModifiedFields)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO contacts (id, event_id, full_name, email, company, title, phone, linkedin_url,
		                       business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
		                       status, revision, processed_at, reviewed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		contact.ID, emptyToNil(contact.EventID), contact.FullName,
		emptyToNil(contact.Email), emptyToNil(contact.Company), emptyToNil(contact.Title),
		emptyToNil(contact.Phone), emptyToNil(contact.LinkedInURL), emptyToNil(contact.BusinessCardURL),
		contact.OCRConfidence, rawToNil(contact.OCRRawData), modifiedJSON,
		string(contact.Status), contact.Revision, contact.ProcessedAt, contact.ReviewedAt,
		contact.CreatedAt, contact.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert contact %s", contact.ID)
}

func (s *PostgresStore) GetContact(ctx context.Context, contactID string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, event_id, full_name, email, company, title, phone, linkedin_url,
		        business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
		        status, revision, processed_at, reviewed_at, created_at, updated_at
		 FROM contacts WHERE id = $1`,
		contactID,
	)
	c, err := scanPgContact(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", contactID)
	}
	return c, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, status model.ContactStatus, limit int) ([]model.Contact, error) {
	query := `SELECT id, event_id, full_name, email, company, title, phone, linkedin_url,
	                 business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
	                 status, revision, processed_at, reviewed_at, created_at, updated_at
	          FROM contacts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, string(status), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanPgContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}

func (s *PostgresStore) UpdateContact(ctx context.Context, contact *model.Contact) error {
	modifiedJSON, err := marshalModifiedPg(contact.UserModifiedFields)
	if err != nil {
		return err
	}
	contact.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET full_name = $1, email = $2, company = $3, title = $4, phone = $5,
		        linkedin_url = $6, business_card_url = $7, ocr_confidence = $8, ocr_raw_data = $9,
		        user_modified_fields = $10, status = $11, revision = revision + 1,
		        processed_at = $12, reviewed_at = $13, updated_at = $14
		 WHERE id = $15 AND revision = $16`,
		contact.FullName, emptyToNil(contact.Email), emptyToNil(contact.Company),
		emptyToNil(contact.Title), emptyToNil(contact.Phone), emptyToNil(contact.LinkedInURL),
		emptyToNil(contact.BusinessCardURL), contact.OCRConfidence,
		rawToNil(contact.OCRRawData), modifiedJSON, string(contact.Status),
		contact.ProcessedAt, contact.ReviewedAt, contact.UpdatedAt,
		contact.ID, contact.Revision,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %s", contact.ID)
	}
	if tag.RowsAffected() == 0 {
		var current int64
		err := s.pool.QueryRow(ctx,
			`SELECT revision FROM contacts WHERE id = $1`, contact.ID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "contact %s", contact.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: check contact revision %s", contact.ID)
		}
		return eris.Wrapf(ErrRevisionConflict, "contact %s at revision %d, have %d",
			contact.ID, current, contact.Revision)
	}
	contact.Revision++
	return nil
}

func (s *PostgresStore) UpdateContactStatus(ctx context.Context, contactID string, status model.ContactStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET status = $1, revision = revision + 1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), contactID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact status %s", contactID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "contact %s", contactID)
	}
	return nil
}

func (s *PostgresStore) ContactStats(ctx context.Context) (*model.ContactStats, error) {
	stats := &model.ContactStats{ByStatus: make(map[model.ContactStatus]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: contact stats")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact stats")
		}
		stats.ByStatus[model.ContactStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: contact stats iterate")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts WHERE status = $1 AND ocr_confidence < $2`,
		string(model.ContactPendingReview), 0.7,
	).Scan(&stats.NeedsReview)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: needs review count")
	}
	return stats, nil
}

// Activity log

func (s *PostgresStore) InsertActivity(ctx context.Context, entry model.Activity) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_log (id, action, entity_type, entity_id, actor, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Action, entry.EntityType, emptyToNil(entry.EntityID),
		emptyToNil(entry.Actor), rawToNil(entry.Metadata), entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert activity")
}

// helpers

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawToNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func marshalModifiedPg(m map[model.FieldName]bool) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "marshal user_modified_fields")
	}
	return b, nil
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var errMsg *string

	err := row.Scan(&j.ID, &j.ContactID, &j.Status, &errMsg, &j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	return &j, nil
}

func collectPgJobs(rows pgx.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func scanPgContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	var eventID, email, company, title, phone, linkedin, cardURL *string
	var rawData, modified []byte

	err := row.Scan(&c.ID, &eventID, &c.FullName, &email, &company, &title, &phone, &linkedin,
		&cardURL, &c.OCRConfidence, &rawData, &modified,
		&c.Status, &c.Revision, &c.ProcessedAt, &c.ReviewedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.EventID = deref(eventID)
	c.Email = deref(email)
	c.Company = deref(company)
	c.Title = deref(title)
	c.Phone = deref(phone)
	c.LinkedInURL = deref(linkedin)
	c.BusinessCardURL = deref(cardURL)
	if len(rawData) > 0 {
		c.OCRRawData = rawData
	}
	if len(modified) > 0 {
		if err := json.Unmarshal(modified, &c.UserModifiedFields); err != nil {
			return nil, eris.Wrap(err, "unmarshal user_modified_fields")
		}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
