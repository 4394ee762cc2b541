package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/model"
)

func classification(fields map[model.FieldName]string, conf map[model.FieldName]float64, overall float64) *model.Classification {
	return &model.Classification{
		Fields:     fields,
		Confidence: conf,
		Overall:    overall,
	}
}

func TestApply_FillsEmptyField(t *testing.T) {
	contact := &model.Contact{ID: "c1"}
	cls := classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.9},
		0.9,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "Jane Doe", contact.FullName)
	assert.Equal(t, ActionFilled, res.Actions[model.FieldFullName])
}

func TestApply_ProtectsUserModifiedField(t *testing.T) {
	contact := &model.Contact{
		ID:                 "c1",
		FullName:           "Janet Doe",
		UserModifiedFields: map[model.FieldName]bool{model.FieldFullName: true},
	}
	cls := classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.8},
		0.8,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "Janet Doe", contact.FullName)
	assert.Equal(t, ActionProtected, res.Actions[model.FieldFullName])
}

func TestApply_OverridesUserEditAtHighConfidence(t *testing.T) {
	contact := &model.Contact{
		ID:                 "c1",
		Email:              "wrong@example.com",
		UserModifiedFields: map[model.FieldName]bool{model.FieldEmail: true},
	}
	cls := classification(
		map[model.FieldName]string{model.FieldEmail: "jane.doe@acme.com"},
		map[model.FieldName]float64{model.FieldEmail: 0.96},
		0.9,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "jane.doe@acme.com", contact.Email)
	assert.Equal(t, ActionOverrode, res.Actions[model.FieldEmail])
}

func TestApply_PlaceholderTreatedAsEmpty(t *testing.T) {
	contact := &model.Contact{ID: "c1", FullName: model.PlaceholderName}
	cls := classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.55},
		0.55,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "Jane Doe", contact.FullName)
	assert.Equal(t, ActionFilled, res.Actions[model.FieldFullName])
}

func TestApply_LowConfidenceDoesNotFill(t *testing.T) {
	contact := &model.Contact{ID: "c1"}
	cls := classification(
		map[model.FieldName]string{model.FieldCompany: "Acme Corp"},
		map[model.FieldName]float64{model.FieldCompany: 0.4},
		0.4,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Empty(t, contact.Company)
	assert.Equal(t, ActionKept, res.Actions[model.FieldCompany])
}

func TestApply_OverwritesMachineValueAtHighConfidence(t *testing.T) {
	contact := &model.Contact{ID: "c1", Title: "Manger"}
	cls := classification(
		map[model.FieldName]string{model.FieldTitle: "Manager"},
		map[model.FieldName]float64{model.FieldTitle: 0.9},
		0.9,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "Manager", contact.Title)
	assert.Equal(t, ActionOverwrote, res.Actions[model.FieldTitle])
}

func TestApply_KeepsExistingValueBelowOverwriteThreshold(t *testing.T) {
	contact := &model.Contact{ID: "c1", Phone: "(555) 111-2222"}
	cls := classification(
		map[model.FieldName]string{model.FieldPhone: "(555) 333-4444"},
		map[model.FieldName]float64{model.FieldPhone: 0.7},
		0.7,
	)

	res := Apply(contact, model.ClassifyInput{}, cls, time.Now())

	assert.Equal(t, "(555) 111-2222", contact.Phone)
	assert.Equal(t, ActionKept, res.Actions[model.FieldPhone])
}

func TestApply_StatusThreshold(t *testing.T) {
	tests := []struct {
		overall float64
		want    model.ContactStatus
	}{
		{0.9, model.ContactCompleted},
		{0.7, model.ContactCompleted},
		{0.69, model.ContactPendingReview},
		{0.2, model.ContactPendingReview},
	}
	for _, tt := range tests {
		contact := &model.Contact{ID: "c1"}
		cls := classification(nil, nil, tt.overall)
		res := Apply(contact, model.ClassifyInput{}, cls, time.Now())
		assert.Equal(t, tt.want, res.Status, "overall %.2f", tt.overall)
		assert.Equal(t, tt.want, contact.Status)
		assert.InDelta(t, tt.overall, contact.OCRConfidence, 1e-9)
	}
}

func TestApply_StampsProcessedAtAndRawPayload(t *testing.T) {
	contact := &model.Contact{ID: "c1"}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	input := model.ClassifyInput{RawText: "Jane Doe\nAcme Corp", OCRConfidence: 0.82}
	cls := classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.9},
		0.85,
	)

	Apply(contact, input, cls, now)

	require.NotNil(t, contact.ProcessedAt)
	assert.Equal(t, now, *contact.ProcessedAt)

	var payload struct {
		RawText        string                `json:"raw_text"`
		OCRConfidence  float64               `json:"ocr_confidence"`
		Classification *model.Classification `json:"classification"`
	}
	require.NoError(t, json.Unmarshal(contact.OCRRawData, &payload))
	assert.Equal(t, "Jane Doe\nAcme Corp", payload.RawText)
	assert.InDelta(t, 0.82, payload.OCRConfidence, 1e-9)
	require.NotNil(t, payload.Classification)
	assert.InDelta(t, 0.85, payload.Classification.Overall, 1e-9)
}

// The merge is deterministic: an empty field is written at confidence 0.9,
// and the same field left untouched when user-modified at confidence 0.8.
func TestApply_Determinism(t *testing.T) {
	empty := &model.Contact{ID: "c1"}
	cls := classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.9},
		0.9,
	)
	Apply(empty, model.ClassifyInput{}, cls, time.Now())
	assert.Equal(t, "Jane Doe", empty.FullName)

	edited := &model.Contact{
		ID:                 "c1",
		FullName:           "J. Doe",
		UserModifiedFields: map[model.FieldName]bool{model.FieldFullName: true},
	}
	cls = classification(
		map[model.FieldName]string{model.FieldFullName: "Jane Doe"},
		map[model.FieldName]float64{model.FieldFullName: 0.8},
		0.8,
	)
	Apply(edited, model.ClassifyInput{}, cls, time.Now())
	assert.Equal(t, "J. Doe", edited.FullName)
}
