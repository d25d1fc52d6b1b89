package matcher

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	minPhoneDigits = 8
	minNameLength  = 3
)

// PhoneExtractor returns raw phone-shaped substrings found in text.
type PhoneExtractor func(text string) []string

// NameExtractor returns raw name candidates from an event title and description.
type NameExtractor func(title, description string) []string

var (
	// Malaysian mobile numbers: +60 / 60 / 0 followed by 1x.
	countryPhonePattern = regexp.MustCompile(`(?:\+?60|\b0)1\d[\s-]?\d{3,4}[\s-]?\d{4}`)
	// Any "+" followed by 8 to 15 digits.
	internationalPhonePattern = regexp.MustCompile(`\+\d{8,15}`)
	// Grouped numbers such as "(012) 345 6789" or "+60 12-345 6789".
	formattedPhonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{2,4}\)?[\s.\-]\d{3,4}[\s.\-]\d{3,4}`)

	// "Name +60123456789" at the end of an appointment title.
	trailingPhonePattern = regexp.MustCompile(`^(.*?)\s*(\+?\d[\d\s\-]{6,}\d)\s*$`)

	contactWithDetailPattern = regexp.MustCompile(`(?i)contact:\s*([^\n(]+?)\s*\(`)
	contactLabelPattern      = regexp.MustCompile(`(?i)contact:\s*([^\n]+)`)
	dashSuffixPattern        = regexp.MustCompile(`-\s*(\p{L}[\p{L} .']*)$`)
	nameBeforePhonePattern   = regexp.MustCompile(`(\p{L}[\p{L} .']*?)\s*[+\d]`)
)

func regexpPhones(re *regexp.Regexp) PhoneExtractor {
	return func(text string) []string {
		return re.FindAllString(text, -1)
	}
}

// CountryPhones matches Malaysian mobile numbers in any of their usual forms.
var CountryPhones = regexpPhones(countryPhonePattern)

// InternationalPhones matches "+" prefixed digit runs.
var InternationalPhones = regexpPhones(internationalPhonePattern)

// FormattedPhones matches numbers split by spaces, dots, dashes or parentheses.
var FormattedPhones = regexpPhones(formattedPhonePattern)

// OwnSystemSuffix reads the name this service writes after the last " - " of
// an event title ("Consultation - Jane Doe").
func OwnSystemSuffix(title, _ string) []string {
	i := strings.LastIndex(title, " - ")
	if i < 0 {
		return nil
	}
	name, _ := SplitTrailingPhone(title[i+3:])
	return []string{name}
}

func labelExtractor(re *regexp.Regexp, anchored bool) NameExtractor {
	return func(title, description string) []string {
		var out []string
		for _, text := range []string{title, description} {
			if anchored {
				text = strings.TrimSpace(text)
			}
			if m := re.FindStringSubmatch(text); m != nil {
				out = append(out, m[1])
			}
		}
		return out
	}
}

// ContactWithDetail matches "Contact: Name (...)".
var ContactWithDetail = labelExtractor(contactWithDetailPattern, false)

// ContactLabel matches "Contact: Name".
var ContactLabel = labelExtractor(contactLabelPattern, false)

// DashSuffix matches "- Name" at the end of the text.
var DashSuffix = labelExtractor(dashSuffixPattern, true)

// NameBeforePhone matches a name directly followed by "+" or a digit.
var NameBeforePhone = labelExtractor(nameBeforePhonePattern, false)

// FirstOf tries each extractor in order and returns the output of the first
// one that yields a usable name.
func FirstOf(extractors ...NameExtractor) NameExtractor {
	return func(title, description string) []string {
		for _, ex := range extractors {
			got := ex(title, description)
			for _, n := range got {
				if len([]rune(NormalizeName(n))) >= minNameLength {
					return got
				}
			}
		}
		return nil
	}
}

// SplitTrailingPhone separates "Name +60123456789" into its name and phone.
// phone is empty when the text has no trailing phone token.
func SplitTrailingPhone(text string) (name, phone string) {
	m := trailingPhonePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

// NormalizePhone strips everything but digits. ok is false for strings too
// short to be a phone number.
func NormalizePhone(raw string) (digits string, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits = b.String()
	return digits, len(digits) >= minPhoneDigits
}

// NormalizeName lower-cases and keeps letters only.
func NormalizeName(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func appendPhone(out []string, seen map[string]bool, raw string) []string {
	digits, ok := NormalizePhone(raw)
	if !ok || seen[digits] {
		return out
	}
	seen[digits] = true
	return append(out, digits)
}

func appendName(out []string, seen map[string]bool, raw string) []string {
	name := NormalizeName(raw)
	if len([]rune(name)) < minNameLength || seen[name] {
		return out
	}
	seen[name] = true
	return append(out, name)
}
