package audit

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/model"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) InsertActivity(ctx context.Context, entry model.Activity) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func TestRecord(t *testing.T) {
	sink := &mockSink{}
	var captured model.Activity
	sink.On("InsertActivity", mock.Anything, mock.AnythingOfType("model.Activity")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.Activity)
		}).
		Return(nil).Once()

	r := NewRecorder(sink, "leadscan")
	r.Record(context.Background(), "ocr_job_completed", "ocr_job", "job-1", map[string]any{
		"confidence": 0.88,
	})

	sink.AssertExpectations(t)
	assert.Equal(t, "ocr_job_completed", captured.Action)
	assert.Equal(t, "ocr_job", captured.EntityType)
	assert.Equal(t, "job-1", captured.EntityID)
	assert.Equal(t, "leadscan", captured.Actor)
	require.NotNil(t, captured.Metadata)
	assert.JSONEq(t, `{"confidence":0.88}`, string(captured.Metadata))
}

func TestRecord_SinkFailureSwallowed(t *testing.T) {
	sink := &mockSink{}
	sink.On("InsertActivity", mock.Anything, mock.AnythingOfType("model.Activity")).
		Return(eris.New("disk full")).Once()

	r := NewRecorder(sink, "leadscan")
	// Must not panic or propagate the error.
	r.Record(context.Background(), "ocr_job_failed", "ocr_job", "job-2", nil)

	sink.AssertExpectations(t)
}
