package services

import (
	"regexp"
	"strings"
)

var bannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"scam", "scammer", "phishing", "malware",
}

var filterMessages = map[string]string{
	"inappropriate_language":   "Your response contains inappropriate language.",
	"url_not_allowed":          "URLs and web links are not allowed.",
	"contact_info_not_allowed": "Contact information is not allowed.",
	"spam_detected":            "Your response appears to be spam.",
	"excessive_caps":           "Please avoid using excessive capital letters.",
}

// ContentFilter screens free-text responses. Patterns are compiled once and
// the filter is safe for concurrent use.
type ContentFilter struct {
	bannedWord   *regexp.Regexp
	url          *regexp.Regexp
	email        *regexp.Regexp
	phone        *regexp.Regexp
	repeatedChar *regexp.Regexp // RE2 has no backreferences, so runs are listed per character
	allCaps      *regexp.Regexp
}

func NewContentFilter() *ContentFilter {
	quoted := make([]string, len(bannedWords))
	for i, w := range bannedWords {
		quoted[i] = regexp.QuoteMeta(w)
	}

	return &ContentFilter{
		bannedWord:   regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`),
		url:          regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`),
		email:        regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
		phone:        regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
		repeatedChar: regexp.MustCompile(`(?i)(a{5,}|b{5,}|c{5,}|d{5,}|e{5,}|f{5,}|g{5,}|h{5,}|i{5,}|j{5,}|k{5,}|l{5,}|m{5,}|n{5,}|o{5,}|p{5,}|q{5,}|r{5,}|s{5,}|t{5,}|u{5,}|v{5,}|w{5,}|x{5,}|y{5,}|z{5,}|!{5,}|\?{5,}|\.{5,})`),
		allCaps:      regexp.MustCompile(`[A-Z]{5,}`),
	}
}

// Check returns ok=false and a reason code when text breaks a content rule.
func (f *ContentFilter) Check(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	if f.bannedWord.MatchString(text) {
		return false, "inappropriate_language"
	}
	if f.url.MatchString(text) {
		return false, "url_not_allowed"
	}
	if f.email.MatchString(text) || f.phone.MatchString(text) {
		return false, "contact_info_not_allowed"
	}
	if f.repeatedChar.MatchString(text) {
		return false, "spam_detected"
	}
	if len(f.allCaps.FindAllString(text, -1)) > 2 {
		return false, "excessive_caps"
	}
	return true, ""
}

// RejectionMessage maps a reason code from Check to user-facing text.
func RejectionMessage(reason string) string {
	if msg, ok := filterMessages[reason]; ok {
		return msg
	}
	return "Your response does not meet our content guidelines."
}
