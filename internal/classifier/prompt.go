package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

const classifySystemPrompt = `You are an expert at business card data classification. Respond with valid JSON only.`

const classifyUserPrompt = `You are an expert at analyzing business card OCR data. Your task is to intelligently classify extracted text into the correct contact fields.

**Raw OCR Text:**
"%s"

**Initial Field Extraction:**
- Name: "%s"
- Company: "%s"
- Title: "%s"
- Email: "%s"
- Phone: "%s"
- LinkedIn: "%s"

**OCR Confidence:** %.1f%%

**Classification Rules:**
1. **Names** should be actual person names (first/last), not job titles or company names
2. **Job titles** go in "title" field: "Manager", "CEO", "Real Estate Specialist", etc.
3. **Company names** should be organization names, not job descriptions
4. **Never put the same value** in multiple fields (name, company, title)
5. **If name is unclear**, try extracting from email (john.smith@company.com -> "John Smith")
6. **If extraction failed completely**, use "Contact" as fallback name

**Response Format:**
Respond with valid JSON only. Provide confidence scores (0.0-1.0) for each field based on how certain you are about the classification.

Example response:
{
  "corrected_fields": {
    "full_name": "John Smith",
    "company": "ABC Real Estate",
    "title": "Real Estate Specialist",
    "email": "john@abcrealestate.com",
    "phone": "(555) 123-4567"
  },
  "confidence_scores": {
    "full_name": 0.9,
    "company": 0.8,
    "title": 0.95,
    "email": 0.99,
    "phone": 0.9
  },
  "issues_found": ["Initial name was job title", "Company field was missing"],
  "reasoning": "Corrected 'Real Estate Specialist' from name to title field, extracted company from context",
  "overall_confidence": 0.88
}`

func buildUserPrompt(input model.ClassifyInput) string {
	get := func(f model.FieldName) string {
		if input.Initial == nil {
			return "not detected"
		}
		if v := input.Initial.Value(f); v != "" {
			return v
		}
		return "not detected"
	}
	return fmt.Sprintf(classifyUserPrompt,
		input.RawText,
		get(model.FieldFullName),
		get(model.FieldCompany),
		get(model.FieldTitle),
		get(model.FieldEmail),
		get(model.FieldPhone),
		get(model.FieldLinkedInURL),
		input.OCRConfidence*100,
	)
}

// wireClassification is the JSON shape the model must respond with.
type wireClassification struct {
	CorrectedFields   map[string]string  `json:"corrected_fields"`
	ConfidenceScores  map[string]float64 `json:"confidence_scores"`
	IssuesFound       []string           `json:"issues_found"`
	Reasoning         string             `json:"reasoning"`
	OverallConfidence float64            `json:"overall_confidence"`
}

// parseClassification validates the model's response text. A response that
// is not valid JSON, names an unknown field, or carries an out-of-range
// confidence is rejected so the caller can retry or fall back.
func parseClassification(text string) (*model.Classification, error) {
	text = cleanJSON(text)

	var wire wireClassification
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, eris.Wrap(err, "classifier: response is not valid JSON")
	}
	if wire.OverallConfidence < 0 || wire.OverallConfidence > 1 {
		return nil, eris.Errorf("classifier: overall_confidence %.2f out of range", wire.OverallConfidence)
	}

	cls := &model.Classification{
		Fields:     make(map[model.FieldName]string),
		Confidence: make(map[model.FieldName]float64),
		Issues:     wire.IssuesFound,
		Reasoning:  wire.Reasoning,
		Overall:    wire.OverallConfidence,
	}

	for key, value := range wire.CorrectedFields {
		f, ok := knownField(key)
		if !ok {
			return nil, eris.Errorf("classifier: unknown field %q in corrected_fields", key)
		}
		if v := strings.TrimSpace(value); v != "" {
			cls.Fields[f] = v
		}
	}
	for key, score := range wire.ConfidenceScores {
		f, ok := knownField(key)
		if !ok {
			return nil, eris.Errorf("classifier: unknown field %q in confidence_scores", key)
		}
		if score < 0 || score > 1 {
			return nil, eris.Errorf("classifier: confidence %.2f for %s out of range", score, f)
		}
		cls.Confidence[f] = score
	}
	return cls, nil
}

func knownField(key string) (model.FieldName, bool) {
	f := model.FieldName(key)
	for _, known := range model.ContactFields() {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
