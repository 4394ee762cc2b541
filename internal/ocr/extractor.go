package ocr

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/model"
)

// minTokenConfidence is the floor below which tokens are excluded from the
// overall confidence calculation.
const minTokenConfidence = 0.5

// Extractor runs a card image through the engine and computes the overall
// extraction confidence from the surviving tokens.
type Extractor struct {
	engine Engine
}

// NewExtractor wraps an Engine.
func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine}
}

// Preprocess is a hook for future contrast/rotation correction. It currently
// returns the image unchanged.
func (e *Extractor) Preprocess(image []byte) []byte {
	return image
}

// Extract recognizes the image and returns the immutable raw result. Tokens
// below the confidence floor or with empty text are dropped; the overall
// confidence is the mean of the survivors, 0 if none survive. Engine failure
// is fatal to the caller's job: there is no fallback for missing text.
func (e *Extractor) Extract(ctx context.Context, image []byte) (*model.RawResult, error) {
	raw, err := e.engine.Recognize(ctx, e.Preprocess(image))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: extract")
	}

	kept := make([]model.Token, 0, len(raw.Tokens))
	var sum float64
	for _, tok := range raw.Tokens {
		if tok.Confidence < minTokenConfidence || strings.TrimSpace(tok.Text) == "" {
			continue
		}
		kept = append(kept, tok)
		sum += tok.Confidence
	}

	confidence := 0.0
	if len(kept) > 0 {
		confidence = math.Round(sum/float64(len(kept))*100) / 100
	}

	zap.L().Debug("ocr extraction complete",
		zap.Int("tokens_total", len(raw.Tokens)),
		zap.Int("tokens_kept", len(kept)),
		zap.Float64("confidence", confidence),
	)

	return &model.RawResult{
		Text:       raw.Text,
		Confidence: confidence,
		Tokens:     kept,
	}, nil
}
