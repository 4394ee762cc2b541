package model

// ParsedFields is the heuristic parser's output: candidate values and a
// parallel per-field confidence map, plus the raw extraction for audit.
type ParsedFields struct {
	Values     map[FieldName]string  `json:"values"`
	Confidence map[FieldName]float64 `json:"confidence"`
	RawText    string                `json:"raw_text"`
	Raw        *RawResult            `json:"raw,omitempty"`
}

// NewParsedFields returns an empty ParsedFields carrying the raw extraction.
func NewParsedFields(raw *RawResult) *ParsedFields {
	pf := &ParsedFields{
		Values:     make(map[FieldName]string),
		Confidence: make(map[FieldName]float64),
		Raw:        raw,
	}
	if raw != nil {
		pf.RawText = raw.Text
	}
	return pf
}

// Set records a candidate value with its confidence.
func (p *ParsedFields) Set(f FieldName, value string, confidence float64) {
	p.Values[f] = value
	p.Confidence[f] = confidence
}

// Value returns the candidate for f, or "" if none was extracted.
func (p *ParsedFields) Value(f FieldName) string {
	return p.Values[f]
}

// ClassifyInput is what the field classifier receives: the raw OCR text, the
// parser's initial guesses, and the extraction's overall confidence.
type ClassifyInput struct {
	RawText       string        `json:"raw_text"`
	Initial       *ParsedFields `json:"initial_extraction"`
	OCRConfidence float64       `json:"ocr_confidence"`
}

// Classification is the corrected field set produced by the classifier,
// either from the language model or from the deterministic fallback.
type Classification struct {
	Fields     map[FieldName]string  `json:"corrected_fields"`
	Confidence map[FieldName]float64 `json:"confidence_scores"`
	Issues     []string              `json:"issues_found"`
	Reasoning  string                `json:"reasoning"`
	Overall    float64               `json:"overall_confidence"`

	// Fallback marks results produced without a model call.
	Fallback bool `json:"fallback,omitempty"`
}

// FieldConfidence returns the classifier's confidence for f, 0 if unscored.
func (c *Classification) FieldConfidence(f FieldName) float64 {
	return c.Confidence[f]
}
