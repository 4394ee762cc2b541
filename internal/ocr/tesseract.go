package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// Tesseract implements Engine using the gosseract client.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a Tesseract-backed engine. Languages are BCP-47
// hints ("eng", "deu"); empty means the engine default.
func NewTesseract(languages []string) *Tesseract {
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs one image through Tesseract and returns the raw token
// stream. Confidence aggregation happens in the Extractor, not here.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (*model.RawResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, eris.Wrap(err, "ocr: set image")
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return nil, eris.Wrap(err, "ocr: set languages")
		}
	}

	text, err := c.Text()
	if err != nil {
		return nil, eris.Wrap(err, "ocr: recognize text")
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: word boxes")
	}

	tokens := make([]model.Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, model.Token{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			BBox: model.BBox{
				X0: b.Box.Min.X,
				Y0: b.Box.Min.Y,
				X1: b.Box.Max.X,
				Y1: b.Box.Max.Y,
			},
		})
	}

	return &model.RawResult{
		Text:   strings.TrimSpace(text),
		Tokens: tokens,
	}, nil
}
