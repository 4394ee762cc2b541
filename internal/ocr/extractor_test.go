package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/model"
)

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

func TestExtract_FiltersLowConfidenceTokens(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything).Return(&model.RawResult{
		Text: "Jane Doe\nAcme Corp",
		Tokens: []model.Token{
			{Text: "Jane", Confidence: 0.9},
			{Text: "Doe", Confidence: 0.8},
			{Text: "smudge", Confidence: 0.3}, // below floor
			{Text: "   ", Confidence: 0.95},   // empty after trim
			{Text: "Acme", Confidence: 0.7},
		},
	}, nil)

	ex := NewExtractor(engine)
	raw, err := ex.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)

	assert.Len(t, raw.Tokens, 3)
	assert.InDelta(t, 0.8, raw.Confidence, 0.001) // (0.9+0.8+0.7)/3
	assert.Equal(t, "Jane Doe\nAcme Corp", raw.Text)
	engine.AssertExpectations(t)
}

func TestExtract_NoSurvivingTokens(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything).Return(&model.RawResult{
		Text: "noise",
		Tokens: []model.Token{
			{Text: "a", Confidence: 0.1},
			{Text: "b", Confidence: 0.49},
		},
	}, nil)

	ex := NewExtractor(engine)
	raw, err := ex.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)

	assert.Empty(t, raw.Tokens)
	assert.Equal(t, 0.0, raw.Confidence)
}

func TestExtract_EngineFailure(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything).Return(nil, errors.New("engine crashed"))

	ex := NewExtractor(engine)
	_, err := ex.Extract(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: extract")
}

func TestPreprocess_PassThrough(t *testing.T) {
	ex := NewExtractor(&mockEngine{})
	img := []byte{0x01, 0x02}
	assert.Equal(t, img, ex.Preprocess(img))
}

func TestNewEngine_Unknown(t *testing.T) {
	_, err := NewEngine(configOCR("nope"))
	require.Error(t, err)
}

func TestNewEngine_Tesseract(t *testing.T) {
	eng, err := NewEngine(configOCR(""))
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, eng)
}
