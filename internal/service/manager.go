package service

import (
	"regexp"
	"strings"
)

var (
	priceSegmentRe = regexp.MustCompile(`— (?:\d+ грн|` + Negotiable + `)`)
	totalLineRe    = regexp.MustCompile(`^\s*` + TotalPrefix + ` \d+ грн`)
)

// StaffEdit is the outcome of a manager reply to an order in the staff chat.
type StaffEdit struct {
	Text    string
	Changed bool
	Paid    bool
}

// EditStaffOrder applies a manager command to the text of an already posted
// staff order. Commands are tried in order: paid, operator, note; only the
// first that applies is used.
func EditStaffOrder(original, command string) StaffEdit {
	switch {
	case PaidHintRe.MatchString(command):
		return StaffEdit{Text: MarkPaid(original), Changed: true, Paid: true}
	case FindOperator(command) != "":
		text := AddOperator(original, FindOperator(command))
		return StaffEdit{Text: text, Changed: text != original}
	}
	if m := NoteReplyRe.FindStringSubmatch(command); m != nil {
		if note := strings.TrimSpace(m[1]); note != "" {
			return StaffEdit{Text: AppendNote(original, note), Changed: true}
		}
	}
	return StaffEdit{Text: original}
}

// MarkPaid replaces every amount with the paid marker and drops the total.
func MarkPaid(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if totalLineRe.MatchString(l) {
			continue
		}
		lines = append(lines, priceSegmentRe.ReplaceAllString(l, "— "+PaidMarker))
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// AddOperator annotates the UK line that has no operator yet.
func AddOperator(text, operator string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if (strings.Contains(l, "ВЕЛИКОБРИТАНІЯ") || strings.Contains(l, "Англія")) && !strings.Contains(l, "оператор") {
			lines[i] = strings.Replace(l, ",", " (оператор "+operator+"),", 1)
		}
	}
	return strings.Join(lines, "\n")
}

func AppendNote(text, note string) string {
	return strings.TrimSpace(text) + "\n\n" + NotePrefix + " " + strings.TrimSpace(note)
}

// SplitNote separates a free-text manager order from its trailing
// "примітка: ..." part.
func SplitNote(text string) (order, note string) {
	parts := noteSplitRe.Split(text, 2)
	if len(parts) < 2 {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
