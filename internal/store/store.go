package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// Sentinel errors callers branch on with eris.Is.
var (
	// ErrNotFound is returned when a job or contact does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrRevisionConflict is returned by UpdateContact when the contact's
	// revision changed since it was read.
	ErrRevisionConflict = eris.New("store: revision conflict")
)

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, contactID string) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobsByContact(ctx context.Context, contactID string) ([]model.Job, error)
	// ListPendingJobs returns pending jobs in creation order, oldest first.
	ListPendingJobs(ctx context.Context, limit int) ([]model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	JobStats(ctx context.Context) (*model.JobStats, error)
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Contacts
	CreateContact(ctx context.Context, contact *model.Contact) error
	GetContact(ctx context.Context, contactID string) (*model.Contact, error)
	// ListContacts returns contacts newest first. An empty status matches
	// all statuses.
	ListContacts(ctx context.Context, status model.ContactStatus, limit int) ([]model.Contact, error)
	// UpdateContact writes the contact back only if its revision still
	// matches the one it was read at, then increments the revision.
	// Returns ErrRevisionConflict when another writer got there first.
	UpdateContact(ctx context.Context, contact *model.Contact) error
	UpdateContactStatus(ctx context.Context, contactID string, status model.ContactStatus) error
	ContactStats(ctx context.Context) (*model.ContactStats, error)

	// Activity log
	InsertActivity(ctx context.Context, entry model.Activity) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
