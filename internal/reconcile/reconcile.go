// Package reconcile decides which classified field values get written to
// a contact record. It is pure: callers persist the mutated contact.
package reconcile

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/model"
)

// Policy thresholds. The 0.95 override window is deliberately narrow:
// human edits are trusted over the classifier except at near-certainty.
const (
	UserOverrideThreshold = 0.95
	FillThreshold         = 0.5
	OverwriteThreshold    = 0.85
	ReviewThreshold       = 0.7
)

// FieldAction records what happened to one field during reconciliation.
type FieldAction string

const (
	ActionFilled      FieldAction = "filled"
	ActionOverwrote   FieldAction = "overwrote"
	ActionOverrode    FieldAction = "overrode_user_edit"
	ActionProtected   FieldAction = "protected_user_edit"
	ActionKept        FieldAction = "kept_existing"
	ActionNoCandidate FieldAction = "no_candidate"
)

// Result summarizes a reconciliation for logging and audit.
type Result struct {
	Actions map[model.FieldName]FieldAction
	Status  model.ContactStatus
}

// Written reports whether f was updated on the contact.
func (r Result) Written(f model.FieldName) bool {
	switch r.Actions[f] {
	case ActionFilled, ActionOverwrote, ActionOverrode:
		return true
	}
	return false
}

// rawPayload is what gets persisted in the contact's ocr_raw_data column.
type rawPayload struct {
	RawText        string                `json:"raw_text"`
	OCRConfidence  float64               `json:"ocr_confidence"`
	Classification *model.Classification `json:"classification"`
}

// Apply merges a classification into the contact in place. Per field, in
// precedence order: a user-modified field is overwritten only at
// confidence >= 0.95 and otherwise left byte-for-byte intact; an empty or
// placeholder value is filled at >= 0.5; an existing machine-written value
// is replaced at >= 0.85; anything else keeps the current value. It then
// stamps ocr_confidence, the raw payload, processed_at, and the review
// status: completed at overall >= 0.7, pending_review below.
func Apply(contact *model.Contact, input model.ClassifyInput, cls *model.Classification, now time.Time) Result {
	res := Result{Actions: make(map[model.FieldName]FieldAction)}

	for _, f := range model.ContactFields() {
		res.Actions[f] = decide(contact, f, cls)
		if res.Written(f) {
			contact.SetField(f, cls.Fields[f])
		}
	}

	contact.OCRConfidence = cls.Overall
	if raw, err := json.Marshal(rawPayload{
		RawText:        input.RawText,
		OCRConfidence:  input.OCRConfidence,
		Classification: cls,
	}); err == nil {
		contact.OCRRawData = raw
	}

	if cls.Overall >= ReviewThreshold {
		res.Status = model.ContactCompleted
	} else {
		res.Status = model.ContactPendingReview
	}
	contact.Status = res.Status
	contact.ProcessedAt = &now
	contact.UpdatedAt = now

	zap.L().Debug("reconcile: applied classification",
		zap.String("contact_id", contact.ID),
		zap.Float64("overall_confidence", cls.Overall),
		zap.String("status", string(res.Status)),
	)
	return res
}

func decide(contact *model.Contact, f model.FieldName, cls *model.Classification) FieldAction {
	candidate := cls.Fields[f]
	conf := cls.FieldConfidence(f)

	if candidate == "" {
		return ActionNoCandidate
	}

	if contact.UserModified(f) {
		if conf >= UserOverrideThreshold {
			return ActionOverrode
		}
		return ActionProtected
	}

	current := contact.Field(f)
	if current == "" || current == model.PlaceholderName {
		if conf >= FillThreshold {
			return ActionFilled
		}
		return ActionKept
	}

	if conf >= OverwriteThreshold {
		return ActionOverwrote
	}
	return ActionKept
}
