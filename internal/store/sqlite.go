package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                   TEXT PRIMARY KEY,
	event_id             TEXT,
	full_name            TEXT NOT NULL DEFAULT '',
	email                TEXT,
	company              TEXT,
	title                TEXT,
	phone                TEXT,
	linkedin_url         TEXT,
	business_card_url    TEXT,
	ocr_confidence       REAL NOT NULL DEFAULT 0,
	ocr_raw_data         TEXT,
	user_modified_fields TEXT,
	status               TEXT NOT NULL DEFAULT 'processing',
	revision             INTEGER NOT NULL DEFAULT 0,
	processed_at         DATETIME,
	reviewed_at          DATETIME,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ocr_jobs (
	id            TEXT PRIMARY KEY,
	contact_id    TEXT NOT NULL REFERENCES contacts(id),
	status        TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT,
	started_at    DATETIME,
	completed_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS activity_log (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT,
	actor       TEXT,
	metadata    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status ON ocr_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_contact_id ON ocr_jobs(contact_id);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_created_at ON ocr_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_activity_log_entity ON activity_log(entity_type, entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Jobs

func (s *SQLiteStore) CreateJob(ctx context.Context, contactID string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ocr_jobs (id, contact_id, status, created_at) VALUES (?, ?, ?, ?)`,
		id, contactID, string(model.JobPending), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert job for contact %s", contactID)
	}

	return &model.Job{
		ID:        id,
		ContactID: contactID,
		Status:    model.JobPending,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobsByContact(ctx context.Context, contactID string) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE contact_id = ? ORDER BY created_at DESC`,
		contactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list jobs for contact %s", contactID)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *SQLiteStore) ListPendingJobs(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, status, error_message, started_at, completed_at, created_at
		 FROM ocr_jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(model.JobPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending jobs")
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.Job) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ocr_jobs SET status = ?, error_message = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), nullString(job.ErrorMessage), job.StartedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) JobStats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{ByStatus: make(map[model.JobStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ocr_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job stats")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job stats")
		}
		stats.ByStatus[model.JobStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: job stats iterate")
	}

	// Durations are averaged in Go: SQLite has no interval type and the
	// driver's DATETIME encoding is not stable under strftime math.
	durRows, err := s.db.QueryContext(ctx,
		`SELECT started_at, completed_at FROM ocr_jobs
		 WHERE status = ? AND started_at IS NOT NULL AND completed_at IS NOT NULL`,
		string(model.JobCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job durations")
	}
	defer durRows.Close()

	var total time.Duration
	var n int
	for durRows.Next() {
		var started, completed time.Time
		if err := durRows.Scan(&started, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job durations")
		}
		total += completed.Sub(started)
		n++
	}
	if err := durRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: job durations iterate")
	}
	if n > 0 {
		stats.AvgProcessingSecs = total.Seconds() / float64(n)
	}
	return stats, nil
}

func (s *SQLiteStore) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ocr_jobs WHERE created_at < ? AND status IN (?, ?)`,
		cutoff.UTC(), string(model.JobCompleted), string(model.JobFailed),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete old jobs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Contacts

func (s *SQLiteStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	if contact.Status == "" {
		contact.Status = model.ContactProcessing
	}

	modifiedJSON, err := marshalModified(contact.UserModifiedFields)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, event_id, full_name, email, company, title, phone, linkedin_url,
		                       business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
		                       status, revision, processed_at, reviewed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID, nullString(contact.EventID), contact.FullName,
		nullString(contact.Email), nullString(contact.Company), nullString(contact.Title),
		nullString(contact.Phone), nullString(contact.LinkedInURL), nullString(contact.BusinessCardURL),
		contact.OCRConfidence, nullString(string(contact.OCRRawData)), modifiedJSON,
		string(contact.Status), contact.Revision, contact.ProcessedAt, contact.ReviewedAt,
		contact.CreatedAt, contact.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert contact %s", contact.ID)
}

func (s *SQLiteStore) GetContact(ctx context.Context, contactID string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, full_name, email, company, title, phone, linkedin_url,
		        business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
		        status, revision, processed_at, reviewed_at, created_at, updated_at
		 FROM contacts WHERE id = ?`,
		contactID,
	)
	return scanContact(row)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, status model.ContactStatus, limit int) ([]model.Contact, error) {
	query := `SELECT id, event_id, full_name, email, company, title, phone, linkedin_url,
	                 business_card_url, ocr_confidence, ocr_raw_data, user_modified_fields,
	                 status, revision, processed_at, reviewed_at, created_at, updated_at
	          FROM contacts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close() //nolint:errcheck

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: iterate contacts")
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, contact *model.Contact) error {
	modifiedJSON, err := marshalModified(contact.UserModifiedFields)
	if err != nil {
		return err
	}
	contact.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET full_name = ?, email = ?, company = ?, title = ?, phone = ?,
		        linkedin_url = ?, business_card_url = ?, ocr_confidence = ?, ocr_raw_data = ?,
		        user_modified_fields = ?, status = ?, revision = revision + 1,
		        processed_at = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		contact.FullName, nullString(contact.Email), nullString(contact.Company),
		nullString(contact.Title), nullString(contact.Phone), nullString(contact.LinkedInURL),
		nullString(contact.BusinessCardURL), contact.OCRConfidence,
		nullString(string(contact.OCRRawData)), modifiedJSON, string(contact.Status),
		contact.ProcessedAt, contact.ReviewedAt, contact.UpdatedAt,
		contact.ID, contact.Revision,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %s", contact.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var current int64
		err := s.db.QueryRowContext(ctx,
			`SELECT revision FROM contacts WHERE id = ?`, contact.ID,
		).Scan(&current)
		if err == sql.ErrNoRows {
			return eris.Wrapf(ErrNotFound, "contact %s", contact.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: check contact revision %s", contact.ID)
		}
		return eris.Wrapf(ErrRevisionConflict, "contact %s at revision %d, have %d",
			contact.ID, current, contact.Revision)
	}
	contact.Revision++
	return nil
}

func (s *SQLiteStore) UpdateContactStatus(ctx context.Context, contactID string, status model.ContactStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET status = ?, revision = revision + 1, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), contactID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact status %s", contactID)
	}
	return checkRowsAffected(res, "contact", contactID)
}

func (s *SQLiteStore) ContactStats(ctx context.Context) (*model.ContactStats, error) {
	stats := &model.ContactStats{ByStatus: make(map[model.ContactStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: contact stats")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact stats")
		}
		stats.ByStatus[model.ContactStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: contact stats iterate")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE status = ? AND ocr_confidence < ?`,
		string(model.ContactPendingReview), 0.7,
	).Scan(&stats.NeedsReview)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: needs review count")
	}
	return stats, nil
}

// Activity log

func (s *SQLiteStore) InsertActivity(ctx context.Context, entry model.Activity) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, action, entity_type, entity_id, actor, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.EntityType, nullString(entry.EntityID),
		nullString(entry.Actor), nullString(string(entry.Metadata)), entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert activity")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalModified(m map[model.FieldName]bool) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, eris.Wrap(err, "marshal user_modified_fields")
	}
	return nullString(string(b)), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var errMsg sql.NullString
	var started, completed sql.NullTime

	err := row.Scan(&j.ID, &j.ContactID, &j.Status, &errMsg, &started, &completed, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan job")
	}

	j.ErrorMessage = errMsg.String
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "iterate jobs")
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	var eventID, email, company, title, phone, linkedin, cardURL, rawData, modified sql.NullString
	var processed, reviewed sql.NullTime

	err := row.Scan(&c.ID, &eventID, &c.FullName, &email, &company, &title, &phone, &linkedin,
		&cardURL, &c.OCRConfidence, &rawData, &modified,
		&c.Status, &c.Revision, &processed, &reviewed, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "contact")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan contact")
	}

	c.EventID = eventID.String
	c.Email = email.String
	c.Company = company.String
	c.Title = title.String
	c.Phone = phone.String
	c.LinkedInURL = linkedin.String
	c.BusinessCardURL = cardURL.String
	if rawData.Valid {
		c.OCRRawData = []byte(rawData.String)
	}
	if modified.Valid {
		if err := json.Unmarshal([]byte(modified.String), &c.UserModifiedFields); err != nil {
			return nil, eris.Wrap(err, "unmarshal user_modified_fields")
		}
	}
	if processed.Valid {
		t := processed.Time
		c.ProcessedAt = &t
	}
	if reviewed.Valid {
		t := reviewed.Time
		c.ReviewedAt = &t
	}
	return &c, nil
}
