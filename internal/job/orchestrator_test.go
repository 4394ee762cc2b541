package job

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/audit"
	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateJob(ctx context.Context, contactID string) (*model.Job, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *mockStore) ListJobsByContact(ctx context.Context, contactID string) ([]model.Job, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Job), args.Error(1)
}

func (m *mockStore) ListPendingJobs(ctx context.Context, limit int) ([]model.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Job), args.Error(1)
}

func (m *mockStore) UpdateJob(ctx context.Context, job *model.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockStore) JobStats(ctx context.Context) (*model.JobStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.JobStats), args.Error(1)
}

func (m *mockStore) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *mockStore) GetContact(ctx context.Context, contactID string) (*model.Contact, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *mockStore) ListContacts(ctx context.Context, status model.ContactStatus, limit int) ([]model.Contact, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *mockStore) UpdateContact(ctx context.Context, contact *model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *mockStore) UpdateContactStatus(ctx context.Context, contactID string, status model.ContactStatus) error {
	args := m.Called(ctx, contactID, status)
	return args.Error(0)
}

func (m *mockStore) ContactStats(ctx context.Context) (*model.ContactStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContactStats), args.Error(1)
}

func (m *mockStore) InsertActivity(ctx context.Context, entry model.Activity) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Recognize(ctx context.Context, image []byte) (*model.RawResult, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawResult), args.Error(1)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, input model.ClassifyInput) (*model.Classification, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Classification), args.Error(1)
}

type fixture struct {
	store      *mockStore
	source     *mockSource
	engine     *mockEngine
	classifier *mockClassifier
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := &mockStore{}
	src := &mockSource{}
	eng := &mockEngine{}
	cls := &mockClassifier{}
	orch := New(
		st,
		src,
		ocr.NewExtractor(eng),
		cls,
		audit.NewRecorder(st, "test"),
		config.Config{Batch: config.BatchConfig{MaxConcurrentJobs: 2}},
	)
	return &fixture{store: st, source: src, engine: eng, classifier: cls, orch: orch}
}

var jpegImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

func testContact(id string) *model.Contact {
	return &model.Contact{
		ID:              id,
		FullName:        model.PlaceholderName,
		BusinessCardURL: "https://cards.example.com/" + id + ".jpg",
		Status:          model.ContactProcessing,
	}
}

func testRawResult() *model.RawResult {
	return &model.RawResult{
		Text:       "Jane Doe\nAcme Corp\njane@acme.com",
		Confidence: 0.88,
		Tokens: []model.Token{
			{Text: "Jane", Confidence: 0.9},
			{Text: "Doe", Confidence: 0.86},
		},
	}
}

func testClassification() *model.Classification {
	return &model.Classification{
		Fields: map[model.FieldName]string{
			model.FieldFullName: "Jane Doe",
			model.FieldCompany:  "Acme Corp",
			model.FieldEmail:    "jane@acme.com",
		},
		Confidence: map[model.FieldName]float64{
			model.FieldFullName: 0.95,
			model.FieldCompany:  0.9,
			model.FieldEmail:    0.97,
		},
		Overall: 0.92,
	}
}

func TestCreateJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("GetContact", ctx, "c1").Return(testContact("c1"), nil)
	f.store.On("CreateJob", ctx, "c1").Return(&model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}, nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	j, err := f.orch.CreateJob(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "j1", j.ID)
	assert.Equal(t, model.JobPending, j.Status)
	f.store.AssertExpectations(t)
}

func TestCreateJob_NoCardURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	contact.BusinessCardURL = ""
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)

	_, err := f.orch.CreateJob(ctx, "c1")
	require.Error(t, err)
	assert.True(t, IsMissingInput(err))
	f.store.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}

func TestCreateJob_ContactNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("GetContact", ctx, "missing").Return(nil, store.ErrNotFound)

	_, err := f.orch.CreateJob(ctx, "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestProcessJob_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)
	f.source.On("Fetch", ctx, contact.BusinessCardURL).Return(jpegImage, nil)
	f.engine.On("Recognize", mock.Anything, jpegImage).Return(testRawResult(), nil)
	f.classifier.On("Classify", ctx, mock.AnythingOfType("model.ClassifyInput")).
		Return(testClassification(), nil)
	f.store.On("UpdateContact", ctx, contact).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	var jobStatuses []model.JobStatus
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).
		Run(func(args mock.Arguments) {
			jobStatuses = append(jobStatuses, args.Get(1).(*model.Job).Status)
		}).
		Return(nil)

	require.NoError(t, f.orch.ProcessJob(ctx, "j1"))

	assert.Equal(t, []model.JobStatus{model.JobProcessing, model.JobCompleted}, jobStatuses)
	assert.Equal(t, "Jane Doe", contact.FullName)
	assert.Equal(t, "Acme Corp", contact.Company)
	assert.Equal(t, "jane@acme.com", contact.Email)
	assert.Equal(t, model.ContactCompleted, contact.Status)
	assert.InDelta(t, 0.92, contact.OCRConfidence, 0.001)
	require.NotNil(t, pending.CompletedAt)
	f.store.AssertExpectations(t)
}

func TestProcessJob_NotPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("GetJob", ctx, "j1").
		Return(&model.Job{ID: "j1", ContactID: "c1", Status: model.JobCompleted}, nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	f.store.AssertNotCalled(t, "UpdateJob", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "UpdateContactStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_FetchFailureMarksJobAndContactFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)
	f.source.On("Fetch", ctx, contact.BusinessCardURL).
		Return(nil, eris.New("connection refused"))
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactFailed).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExtraction))
	assert.Equal(t, model.JobFailed, pending.Status)
	assert.Contains(t, pending.ErrorMessage, "connection refused")
	require.NotNil(t, pending.CompletedAt)
	f.store.AssertExpectations(t)
}

func TestProcessJob_UnsupportedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)
	f.source.On("Fetch", ctx, contact.BusinessCardURL).Return([]byte("<html>not an image"), nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactFailed).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExtraction))
	assert.Equal(t, model.JobFailed, pending.Status)
	f.engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestProcessJob_ContactStatusWriteFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).
		Return(eris.New("database gone"))
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactFailed).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrPersistence))

	// The job must land terminal, not stay stuck in processing.
	assert.Equal(t, model.JobFailed, pending.Status)
	assert.Contains(t, pending.ErrorMessage, "database gone")
	require.NotNil(t, pending.CompletedAt)
	f.store.AssertExpectations(t)
}

func TestProcessJob_CompletionWriteFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil).Once()
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)
	f.source.On("Fetch", ctx, contact.BusinessCardURL).Return(jpegImage, nil)
	f.engine.On("Recognize", mock.Anything, jpegImage).Return(testRawResult(), nil)
	f.classifier.On("Classify", ctx, mock.AnythingOfType("model.ClassifyInput")).
		Return(testClassification(), nil)
	f.store.On("UpdateContact", ctx, contact).Return(nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).
		Return(eris.New("write timeout")).Once()
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil).Once()
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactFailed).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrPersistence))
	assert.Equal(t, model.JobFailed, pending.Status)
	f.store.AssertNumberOfCalls(t, "UpdateJob", 3)
}

func TestProcessJob_RevisionConflictRereconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := testContact("c1")
	fresh := testContact("c1")
	fresh.Title = "VP Sales"
	fresh.UserModifiedFields = map[model.FieldName]bool{model.FieldTitle: true}
	fresh.Revision = 3
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(stale, nil).Once()
	f.source.On("Fetch", ctx, stale.BusinessCardURL).Return(jpegImage, nil)
	f.engine.On("Recognize", mock.Anything, jpegImage).Return(testRawResult(), nil)
	f.classifier.On("Classify", ctx, mock.AnythingOfType("model.ClassifyInput")).
		Return(testClassification(), nil)
	f.store.On("UpdateContact", ctx, stale).Return(store.ErrRevisionConflict).Once()
	f.store.On("GetContact", ctx, "c1").Return(fresh, nil).Once()
	f.store.On("UpdateContact", ctx, fresh).Return(nil).Once()
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	require.NoError(t, f.orch.ProcessJob(ctx, "j1"))

	// The concurrent user edit survives the re-merge.
	assert.Equal(t, "VP Sales", fresh.Title)
	assert.Equal(t, "Jane Doe", fresh.FullName)
	f.store.AssertExpectations(t)
}

func TestProcessJob_RevisionConflictExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contact := testContact("c1")
	pending := &model.Job{ID: "j1", ContactID: "c1", Status: model.JobPending}

	f.store.On("GetJob", ctx, "j1").Return(pending, nil)
	f.store.On("UpdateJob", ctx, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", ctx, "c1").Return(contact, nil)
	f.source.On("Fetch", ctx, contact.BusinessCardURL).Return(jpegImage, nil)
	f.engine.On("Recognize", mock.Anything, jpegImage).Return(testRawResult(), nil)
	f.classifier.On("Classify", ctx, mock.AnythingOfType("model.ClassifyInput")).
		Return(testClassification(), nil)
	f.store.On("UpdateContact", ctx, mock.AnythingOfType("*model.Contact")).
		Return(store.ErrRevisionConflict)
	f.store.On("UpdateContactStatus", ctx, "c1", model.ContactFailed).Return(nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	err := f.orch.ProcessJob(ctx, "j1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrPersistence))
	assert.Equal(t, model.JobFailed, pending.Status)
	f.store.AssertNumberOfCalls(t, "UpdateContact", 3)
}

func TestProcessPendingJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := testContact("c-good")
	pendingJobs := []model.Job{
		{ID: "j-good", ContactID: "c-good", Status: model.JobPending},
		{ID: "j-bad", ContactID: "c-bad", Status: model.JobPending},
	}

	f.store.On("ListPendingJobs", mock.Anything, pendingBatchLimit).Return(pendingJobs, nil)
	f.store.On("GetJob", mock.Anything, "j-good").
		Return(&model.Job{ID: "j-good", ContactID: "c-good", Status: model.JobPending}, nil)
	f.store.On("GetJob", mock.Anything, "j-bad").
		Return(nil, store.ErrNotFound)
	f.store.On("UpdateJob", mock.Anything, mock.AnythingOfType("*model.Job")).Return(nil)
	f.store.On("UpdateContactStatus", mock.Anything, "c-good", model.ContactProcessing).Return(nil)
	f.store.On("GetContact", mock.Anything, "c-good").Return(good, nil)
	f.source.On("Fetch", mock.Anything, good.BusinessCardURL).Return(jpegImage, nil)
	f.engine.On("Recognize", mock.Anything, jpegImage).Return(testRawResult(), nil)
	f.classifier.On("Classify", mock.Anything, mock.AnythingOfType("model.ClassifyInput")).
		Return(testClassification(), nil)
	f.store.On("UpdateContact", mock.Anything, good).Return(nil)
	f.store.On("InsertActivity", mock.Anything, mock.AnythingOfType("model.Activity")).Return(nil)

	result, err := f.orch.ProcessPendingJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
}

func TestProcessPendingJobs_EmptyBacklog(t *testing.T) {
	f := newFixture(t)

	f.store.On("ListPendingJobs", mock.Anything, pendingBatchLimit).Return([]model.Job{}, nil)

	result, err := f.orch.ProcessPendingJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Failed)
	f.store.AssertNotCalled(t, "InsertActivity", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("JobStats", ctx).Return(&model.JobStats{Total: 5}, nil)
	f.store.On("ContactStats", ctx).Return(&model.ContactStats{Total: 3, NeedsReview: 1}, nil)

	stats, err := f.orch.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Jobs.Total)
	assert.Equal(t, 1, stats.Contacts.NeedsReview)
}

func TestCleanupOldJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("DeleteJobsOlderThan", ctx, mock.AnythingOfType("time.Time")).Return(4, nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	n, err := f.orch.CleanupOldJobs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCleanupOldJobs_ExplicitDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var cutoff time.Time
	f.store.On("DeleteJobsOlderThan", ctx, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { cutoff = args.Get(1).(time.Time) }).
		Return(2, nil)
	f.store.On("InsertActivity", ctx, mock.AnythingOfType("model.Activity")).Return(nil)

	n, err := f.orch.CleanupOldJobs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := time.Now().UTC().AddDate(0, 0, -7)
	assert.WithinDuration(t, want, cutoff, time.Minute)
}
