// Package parser turns raw OCR output into candidate contact fields with
// per-field confidence. It is deterministic and makes no external calls.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/model"
)

const (
	fieldConfidenceCap = 0.95

	nameBaseScore      = 0.5
	nameAcceptScore    = 0.6
	namePermissiveConf = 0.4
	nameFromEmailConf  = 0.3
	namePlaceholder    = "Contact"
	placeholderConf    = 0.1

	companyKeywordConf = 0.85
	companyAllCapsConf = 0.65

	titleBaseConf      = 0.7
	titleExecutiveBump = 0.15
	titleNamePenalty   = 0.3
	titleFloorConf     = 0.1

	linkedinDefaultConf = 0.7
)

// Parse extracts the six contact fields from one raw OCR result.
func Parse(raw *model.RawResult) *model.ParsedFields {
	pf := model.NewParsedFields(raw)

	lines := splitLines(raw.Text)

	parseEmail(pf, raw)
	parsePhone(pf, raw)
	parseLinkedIn(pf, raw)
	parseName(pf, lines)
	parseCompany(pf, lines)
	parseTitle(pf, lines)

	zap.L().Debug("parsed card text",
		zap.Int("lines", len(lines)),
		zap.Int("fields", len(pf.Values)),
	)

	return pf
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// --- email ---

func parseEmail(pf *model.ParsedFields, raw *model.RawResult) {
	match := emailRe.FindString(raw.Text)
	if match == "" {
		return
	}

	conf := supportConfidence(raw.Tokens, match, raw.Confidence)
	// A subdomain in the address ("jane@mail.acme.com") is a strong signal
	// the whole match is genuine rather than OCR noise.
	domain := match[strings.LastIndex(match, "@")+1:]
	if strings.Count(domain, ".") >= 2 {
		conf += 0.2
	}

	pf.Set(model.FieldEmail, strings.ToLower(match), capConf(conf))
}

// --- phone ---

func parsePhone(pf *model.ParsedFields, raw *model.RawResult) {
	match := phoneRe.FindString(raw.Text)
	if match == "" {
		return
	}

	conf := digitConfidence(raw.Tokens, match, raw.Confidence)
	digits := digitsRe.ReplaceAllString(match, "")
	if len(digits) == 10 || (len(digits) == 11 && digits[0] == '1') {
		conf += 0.1
	}
	pf.Set(model.FieldPhone, formatPhone(match), capConf(conf))
}

// formatPhone normalizes a US number to "(555) 867-5309" or
// "+1 (555) 867-5309". Non-standard digit counts pass through unchanged.
func formatPhone(phone string) string {
	digits := digitsRe.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 10:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	case len(digits) == 11 && digits[0] == '1':
		return "+1 (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:]
	}
	return phone
}

// --- linkedin ---

func parseLinkedIn(pf *model.ParsedFields, raw *model.RawResult) {
	m := linkedinRe.FindStringSubmatch(raw.Text)
	if m == nil {
		return
	}
	handle := m[2]

	conf := supportConfidence(raw.Tokens, handle, linkedinDefaultConf)
	pf.Set(model.FieldLinkedInURL, "https://linkedin.com/in/"+handle, capConf(conf))
}

// --- name ---

func parseName(pf *model.ParsedFields, lines []string) {
	// Pass 1: score every name-shaped line.
	bestScore := 0.0
	bestLine := ""
	for i, line := range lines {
		if !looksLikeName(line) {
			continue
		}
		score := nameBaseScore
		switch i {
		case 0:
			score += 0.3
		case 1:
			score += 0.2
		case 2:
			score += 0.1
		}
		if strictNameRe.MatchString(line) {
			score += 0.2
		}
		if roleKeywordRe.MatchString(line) {
			score -= 0.3
		}
		if score > bestScore {
			bestScore = score
			bestLine = line
		}
	}

	// Pass 2: accept the top candidate if it clears the bar.
	if bestLine != "" && bestScore > nameAcceptScore {
		pf.Set(model.FieldFullName, cleanName(bestLine), capConf(bestScore))
		return
	}

	// Pass 3: permissive scan of the first three lines.
	for i := 0; i < len(lines) && i < 3; i++ {
		if couldBeName(lines[i]) {
			pf.Set(model.FieldFullName, cleanName(lines[i]), namePermissiveConf)
			return
		}
	}

	// Pass 4: derive from the email local part, else the placeholder.
	if email := pf.Value(model.FieldEmail); email != "" {
		if name := NameFromEmail(email); name != "" {
			pf.Set(model.FieldFullName, name, nameFromEmailConf)
			return
		}
	}
	pf.Set(model.FieldFullName, namePlaceholder, placeholderConf)
}

// looksLikeName is the strict name test: 1-4 capitalized words with no
// business, contact, or address markers.
func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 1 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return !nonNameRe.MatchString(line)
}

// couldBeName is the permissive test used by the pass-3 fallback.
func couldBeName(line string) bool {
	if len(line) < 2 || len(line) > 60 {
		return false
	}
	r := []rune(line)
	if !unicode.IsUpper(r[0]) {
		return false
	}
	hasLetter := false
	for _, c := range r {
		if unicode.IsLetter(c) {
			hasLetter = true
			break
		}
	}
	return hasLetter && !nonNameRe.MatchString(line)
}

var nameCharRe = regexp.MustCompile(`[^\w\s'-]`)
var spaceRe = regexp.MustCompile(`\s+`)

func cleanName(name string) string {
	name = nameCharRe.ReplaceAllString(name, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
}

// NameFromEmail turns "jane.doe@acme.com" into "Jane Doe".
func NameFromEmail(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return ""
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_'
	})
	var words []string
	for _, p := range parts {
		if p == "" || !isAlpha(p) {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
	}
	return strings.Join(words, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// --- company ---

func parseCompany(pf *model.ParsedFields, lines []string) {
	for _, line := range lines {
		if companyKeywordRe.MatchString(line) {
			pf.Set(model.FieldCompany, line, companyKeywordConf)
			return
		}
	}

	// All-caps lines are a common typesetting convention for company names.
	name := pf.Value(model.FieldFullName)
	for _, line := range lines {
		if len(line) > 2 && line == strings.ToUpper(line) && line != name && hasLetter(line) {
			pf.Set(model.FieldCompany, line, companyAllCapsConf)
			return
		}
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// --- title ---

func parseTitle(pf *model.ParsedFields, lines []string) {
	for _, line := range lines {
		if !titleKeywordRe.MatchString(line) {
			continue
		}
		conf := titleBaseConf
		if executiveKeywordRe.MatchString(line) {
			conf += titleExecutiveBump
		}
		// A title line that also passes the name heuristic is ambiguous;
		// dampen it so reconciliation treats it with suspicion.
		if looksLikeName(line) {
			conf -= titleNamePenalty
		}
		if conf < titleFloorConf {
			conf = titleFloorConf
		}
		pf.Set(model.FieldTitle, line, capConf(conf))
		return
	}
}

// --- token support ---

// supportConfidence averages confidences of tokens overlapping the match,
// falling back when no token lines up with it.
func supportConfidence(tokens []model.Token, match string, fallback float64) float64 {
	var sum float64
	n := 0
	for _, tok := range tokens {
		text := strings.Trim(tok.Text, ".,;:")
		if text == "" {
			continue
		}
		if strings.Contains(match, text) || strings.Contains(text, match) {
			sum += tok.Confidence
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

// digitConfidence averages confidences of tokens whose digits appear in the
// matched number.
func digitConfidence(tokens []model.Token, match string, fallback float64) float64 {
	matchDigits := digitsRe.ReplaceAllString(match, "")
	var sum float64
	n := 0
	for _, tok := range tokens {
		tokDigits := digitsRe.ReplaceAllString(tok.Text, "")
		if tokDigits == "" {
			continue
		}
		if strings.Contains(matchDigits, tokDigits) {
			sum += tok.Confidence
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

func capConf(c float64) float64 {
	if c > fieldConfidenceCap {
		return fieldConfidenceCap
	}
	if c < 0 {
		return 0
	}
	return c
}
