package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	digitsRe   = regexp.MustCompile(`\d+`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

func capWord(w string) string {
	if w == "" {
		return w
	}
	r, size := utf8.DecodeRuneInString(w)
	return strings.ToUpper(string(r)) + strings.ToLower(w[size:])
}

func smartTitle(s string) string {
	parts := spacesRe.Split(strings.TrimSpace(s), -1)
	for i, p := range parts {
		sub := strings.Split(p, "-")
		for j := range sub {
			sub[j] = capWord(sub[j])
		}
		parts[i] = strings.Join(sub, "-")
	}
	return strings.Join(parts, " ")
}

// FormatFullName keeps the first and last word, title-cased.
// "олена петрівна ШЕВЧЕНКО" becomes "Олена Шевченко".
func FormatFullName(name string) string {
	tokens := strings.Fields(name)
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return smartTitle(tokens[0])
	default:
		return smartTitle(tokens[0]) + " " + smartTitle(tokens[len(tokens)-1])
	}
}

// FormatPhone renders Ukrainian numbers as "099 123 4567"; anything else is
// returned trimmed.
func FormatPhone(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) == 12 && strings.HasPrefix(digits, "380") {
		digits = "0" + digits[3:]
	}
	if len(digits) == 10 {
		return digits[0:3] + " " + digits[3:6] + " " + digits[6:10]
	}
	return strings.TrimSpace(phone)
}

// FormatBranch extracts the branch number from inputs like "відділення №30".
func FormatBranch(branch string) string {
	s := strings.TrimSpace(branch)
	if m := digitsRe.FindString(s); m != "" {
		return m
	}
	return s
}

func FormatCity(city string) string {
	return strings.TrimSpace(city)
}
