package model

import (
	"encoding/json"
	"time"
)

// FieldName identifies one of the six contact fields the pipeline owns.
type FieldName string

const (
	FieldFullName    FieldName = "full_name"
	FieldEmail       FieldName = "email"
	FieldCompany     FieldName = "company"
	FieldTitle       FieldName = "title"
	FieldPhone       FieldName = "phone"
	FieldLinkedInURL FieldName = "linkedin_url"
)

// ContactFields returns the six pipeline-owned fields in a stable order.
func ContactFields() []FieldName {
	return []FieldName{
		FieldFullName,
		FieldEmail,
		FieldCompany,
		FieldTitle,
		FieldPhone,
		FieldLinkedInURL,
	}
}

// ContactStatus tracks where a contact sits in the scan/review lifecycle.
type ContactStatus string

const (
	ContactProcessing    ContactStatus = "processing"
	ContactCompleted     ContactStatus = "completed"
	ContactFailed        ContactStatus = "failed"
	ContactPendingReview ContactStatus = "pending_review"
	ContactUserVerified  ContactStatus = "user_verified"
)

// PlaceholderName is the provisional full_name a contact carries between
// card upload and first successful scan. Reconciliation treats it as empty.
const PlaceholderName = "Processing..."

// Contact is the read/write subset of a contact record owned by the
// reconciliation pipeline. Persistence lives in internal/store.
type Contact struct {
	ID              string `json:"id"`
	EventID         string `json:"event_id,omitempty"`
	FullName        string `json:"full_name"`
	Email           string `json:"email,omitempty"`
	Company         string `json:"company,omitempty"`
	Title           string `json:"title,omitempty"`
	Phone           string `json:"phone,omitempty"`
	LinkedInURL     string `json:"linkedin_url,omitempty"`
	BusinessCardURL string `json:"business_card_url,omitempty"`

	OCRConfidence float64         `json:"ocr_confidence"`
	OCRRawData    json.RawMessage `json:"ocr_raw_data,omitempty"`

	// UserModifiedFields marks fields a human has edited by hand. Set by
	// collaborators outside this pipeline; reconciliation only overrides a
	// marked field when classifier confidence clears the override threshold.
	UserModifiedFields map[FieldName]bool `json:"user_modified_fields,omitempty"`

	Status ContactStatus `json:"status"`

	// Revision increments on every write and backs the optimistic
	// concurrency check on reconciliation write-back.
	Revision int64 `json:"revision"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Field returns the current value of a pipeline-owned field.
func (c *Contact) Field(f FieldName) string {
	switch f {
	case FieldFullName:
		return c.FullName
	case FieldEmail:
		return c.Email
	case FieldCompany:
		return c.Company
	case FieldTitle:
		return c.Title
	case FieldPhone:
		return c.Phone
	case FieldLinkedInURL:
		return c.LinkedInURL
	}
	return ""
}

// SetField assigns a pipeline-owned field by name. Unknown names are ignored.
func (c *Contact) SetField(f FieldName, v string) {
	switch f {
	case FieldFullName:
		c.FullName = v
	case FieldEmail:
		c.Email = v
	case FieldCompany:
		c.Company = v
	case FieldTitle:
		c.Title = v
	case FieldPhone:
		c.Phone = v
	case FieldLinkedInURL:
		c.LinkedInURL = v
	}
}

// UserModified reports whether a human has manually edited the field.
func (c *Contact) UserModified(f FieldName) bool {
	return c.UserModifiedFields[f]
}

// ContactStats summarizes contacts for the stats surfaces.
type ContactStats struct {
	Total       int                   `json:"total"`
	ByStatus    map[ContactStatus]int `json:"by_status"`
	NeedsReview int                   `json:"needs_review"`
}
