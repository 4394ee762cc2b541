package classifier

import (
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/parser"
)

const (
	fallbackOverallFloor = 0.1
	fallbackOverallCap   = 0.6
)

var jobTitleWords = []string{
	"specialist", "manager", "director", "ceo", "president", "coordinator",
	"assistant", "analyst", "engineer", "developer", "consultant", "advisor",
	"agent", "representative", "executive", "officer", "supervisor", "lead",
	"senior", "junior", "head", "chief", "principal", "partner", "founder",
	"vice", "real estate", "sales", "marketing", "human resources", "finance",
}

var jobTitleRe = regexp.MustCompile(`(?i)\b(` + strings.Join(jobTitleWords, "|") + `)\b`)

// Fallback produces a Classification without a model call, applying the
// same corrections deterministically: job titles mistaken for names are
// moved, missing names are derived from the email or set to "Contact",
// and a company duplicating the name is cleared. Confidence is scaled
// down so fallback-derived contacts are always routed to human review.
func Fallback(input model.ClassifyInput) *model.Classification {
	fields := make(map[model.FieldName]string)
	if input.Initial != nil {
		for f, v := range input.Initial.Values {
			if v != "" {
				fields[f] = v
			}
		}
	}

	issues := []string{"model classification failed, using basic fallback"}
	overall := input.OCRConfidence * 0.7

	name := fields[model.FieldFullName]
	if name == "" || LooksLikeJobTitle(name) {
		if name != "" && LooksLikeJobTitle(name) {
			fields[model.FieldTitle] = name
			issues = append(issues, "moved job title from name field to title field")
		}

		derived := ""
		if email := fields[model.FieldEmail]; email != "" {
			derived = parser.NameFromEmail(email)
		}
		if derived != "" {
			fields[model.FieldFullName] = derived
			issues = append(issues, "generated name from email address")
		} else {
			fields[model.FieldFullName] = "Contact"
			issues = append(issues, "used fallback name")
		}
		overall *= 0.6
	}

	if fields[model.FieldCompany] != "" && fields[model.FieldCompany] == fields[model.FieldFullName] {
		delete(fields, model.FieldCompany)
		issues = append(issues, "removed duplicate company/name value")
		overall *= 0.8
	}

	confidence := make(map[model.FieldName]float64)
	score := func(f model.FieldName, ceiling, bump float64) {
		if fields[f] != "" {
			confidence[f] = math.Min(ceiling, overall+bump)
		}
	}
	score(model.FieldFullName, 0.7, 0.1)
	score(model.FieldCompany, 0.6, 0)
	score(model.FieldTitle, 0.8, 0.2)
	score(model.FieldEmail, 0.9, 0.3)
	score(model.FieldPhone, 0.8, 0.2)
	score(model.FieldLinkedInURL, 0.7, 0.1)

	return &model.Classification{
		Fields:     fields,
		Confidence: confidence,
		Issues:     issues,
		Reasoning:  "model classification failed, applied basic fallback rules",
		Overall:    math.Max(fallbackOverallFloor, math.Min(fallbackOverallCap, overall)),
		Fallback:   true,
	}
}

// LooksLikeJobTitle reports whether text reads as a job title rather
// than a person's name.
func LooksLikeJobTitle(text string) bool {
	return jobTitleRe.MatchString(text)
}
