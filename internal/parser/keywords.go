package parser

import "regexp"

// companyKeywordRe matches organization markers. Word-bounded so that
// "Lincoln" does not trip on "inc".
var companyKeywordRe = regexp.MustCompile(`(?i)\b(inc|corp|llc|ltd|company|co\.|technologies|solutions|group|enterprises|partners|associates|agency|consulting)\b`)

// titleKeywordRe matches job-title markers.
var titleKeywordRe = regexp.MustCompile(`(?i)\b(director|manager|ceo|cto|cfo|coo|president|vice president|senior|lead|head|chief|coordinator|specialist|analyst|engineer|developer|consultant|advisor|founder|owner|agent|representative|executive|officer|supervisor|principal|partner)\b`)

// executiveKeywordRe matches executive-level titles that bump title confidence.
var executiveKeywordRe = regexp.MustCompile(`(?i)\b(ceo|cto|cfo|coo|president|chief|founder|owner|executive|partner)\b`)

// roleKeywordRe matches role words that penalize a name candidate: a line
// like "Senior Manager" is shaped like a name but almost never is one.
var roleKeywordRe = regexp.MustCompile(`(?i)\b(manager|director|specialist|sales|marketing|engineer|consultant|coordinator|analyst|agent|representative|supervisor|officer|assistant|estate)\b`)

// nonNameRe matches business/contact/address markers that disqualify a line
// from being a person's name.
var nonNameRe = regexp.MustCompile(`(?i)(\binc\b|\bcorp\b|\bllc\b|\bltd\b|\bcompany\b|@|www\.|\.com|\bphone\b|\btel\b|\bfax\b|\bemail\b|\bstreet\b|\bsuite\b|\bfloor\b|\bave\b|\bblvd\b)`)

// strictNameRe matches "First Last", "First M. Last", and title-prefixed
// forms like "Dr. Jane Doe".
var strictNameRe = regexp.MustCompile(`^(?:(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+)?[A-Z][a-z]+(?:\s+[A-Z]\.?)?\s+[A-Z][a-z]+$`)

var (
	emailRe    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe    = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
	linkedinRe = regexp.MustCompile(`(?i)linkedin\.com/(in|pub)/([\w\-]+)`)
	digitsRe   = regexp.MustCompile(`\D`)
)
