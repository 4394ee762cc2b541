// Package ocr wraps the text-recognition engine behind a narrow contract and
// turns its token stream into a RawResult with a filtered overall confidence.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/model"
)

// Engine recognizes text in a card image. Token confidences are in [0,1].
type Engine interface {
	Recognize(ctx context.Context, image []byte) (*model.RawResult, error)
}

// NewEngine creates an Engine based on config.
func NewEngine(cfg config.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "tesseract", "":
		return NewTesseract(cfg.Languages), nil
	default:
		return nil, eris.Errorf("ocr: unknown engine %q", cfg.Engine)
	}
}
