package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"simbot/internal/domain"
)

// Mention is a country found in free text; Offset counts runes.
type Mention struct {
	Country string
	Offset  int
}

func sortMentions(m []Mention) {
	sort.SliceStable(m, func(i, j int) bool { return m[i].Offset < m[j].Offset })
}

const mentionDistance = 20

var (
	qtyOnlyRe   = regexp.MustCompile(`(?i)(\d{1,4})\s*(?:штук[аи]?|шт\.?|с[иі]м(?:-?карт[аиуок]*)?|sim-?cards?|sim|pieces?|pcs)(?:[^\p{L}\p{N}]|$)`)
	numberRe    = regexp.MustCompile(`\d+`)
	poQtyRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}])по\s*(\d{1,4})(?:[^\p{N}]|$)`)
	phoneRe     = regexp.MustCompile(`(?:^|[^\d+])((?:\+?38[ \-]?)?\(?0[ \-]?\d{2}\)?[ \-]?\d{3}[ \-]?\d{2}[ \-]?\d{2})(?:\D|$)`)
	nameLineRe  = regexp.MustCompile(`^[\p{L}'’` + "`" + `\-]{2,}(?:\s+[\p{L}'’` + "`" + `\-]{2,}){1,2}$`)
	branchRe    = regexp.MustCompile(`(?i)^\s*(?:м\.\s*|місто\s+)?([\p{L}][\p{L}\-' ]*?)\s*[,.]?\s*(?:нова\s+пошта|нп|відділення|відд\.?|поштомат|№)\s*(?:нова\s+пошта|нп|відділення|відд\.?|поштомат|№|\s)*(\d{1,5})`)
	missPointRe = regexp.MustCompile(`^\s*([1-4])\.\s`)
	branchNumRe = regexp.MustCompile(`(?i)(?:нова\s+пошта|нп|відділення|відд\.?|поштомат|№)\s*№?\s*(\d{1,5})`)

	PaidHintRe  = regexp.MustCompile(`(?i)(?:без\s*нал|безнал|оплачено|передоплат|оплата\s*на\s*карт[уі])`)
	NoteReplyRe = regexp.MustCompile(`(?is)^\s*примітка[:\s]*(.+)`)
	noteSplitRe = regexp.MustCompile(`(?i)примітка[:\s]*`)
)

// words that never appear in a customer's name line
var nameStopWords = map[string]bool{
	"привіт": true, "вітаю": true, "добрий": true, "доброго": true, "день": true,
	"дня": true, "вечір": true, "ранку": true, "здравствуйте": true, "hello": true,
	"хочу": true, "хотів": true, "хотіла": true, "хотілось": true, "замовити": true,
	"замовлення": true, "замовляю": true, "оформити": true, "потрібно": true,
	"потрібна": true, "потрібні": true, "треба": true, "дякую": true, "будь": true,
	"ласка": true, "мені": true, "прошу": true, "скільки": true, "ціна": true,
	"дані": true, "мої": true, "ось": true, "телефон": true, "номер": true,
}

func nameCandidate(line string) bool {
	if !nameLineRe.MatchString(line) {
		return false
	}
	for _, w := range strings.Fields(strings.ToLower(line)) {
		if nameStopWords[w] {
			return false
		}
	}
	return true
}

var ackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(?:ок(?:ей)?|добре|чудово|гарно|дякую!?|спасибі|спасибо|жду|чекаю|ок,?\s*жду|ок,?\s*чекаю|ого|ух\s*ты|супер|зрозуміло|ясно|прийнято|клас|круто|ладно|хорошо|понятно|понял|зрозумів|got\s*it|ok|okay|thanks|thx)\s*[.!,]*\s*$`),
	regexp.MustCompile(`^\s*[👍🙏✅👌🔥💪👏😊🤝]+\s*$`),
	regexp.MustCompile(`^\s*\+\s*$`),
}

// IsAck reports short acknowledgements such as "ок", "дякую" or "👍".
func IsAck(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || utf8.RuneCountInString(t) > 40 {
		return false
	}
	for _, re := range ackPatterns {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// DetectQtyOnly finds "5 шт" style quantities.
func DetectQtyOnly(text string) int {
	m := qtyOnlyRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

type numberPos struct {
	value  int
	offset int
}

// numbersWithPos lists the small numbers of text with their rune offsets,
// leaving out Nova Poshta branch numbers.
func numbersWithPos(text string) []numberPos {
	branches := map[int]bool{}
	for _, loc := range branchNumRe.FindAllStringSubmatchIndex(text, -1) {
		branches[loc[2]] = true
	}

	var out []numberPos
	for _, loc := range numberRe.FindAllStringIndex(text, -1) {
		if branches[loc[0]] {
			continue
		}
		digits := text[loc[0]:loc[1]]
		if len(digits) > 4 {
			continue
		}
		v, err := strconv.Atoi(digits)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, numberPos{value: v, offset: utf8.RuneCountInString(text[:loc[0]])})
	}
	return out
}

// DetectItems pairs each mentioned country with the nearest unused number
// within a few characters. Countries left without a number take the "по N"
// quantity when the text has one.
func DetectItems(n Normalizer, text string) []domain.OrderItem {
	mentions := n.Mentions(text)
	if len(mentions) == 0 {
		return nil
	}

	folded := fold(text)
	nums := numbersWithPos(folded)
	usedNum := map[int]bool{}
	paired := map[int]bool{}

	var items []domain.OrderItem
	for ci, m := range mentions {
		best, bestDist := -1, mentionDistance+1
		for ni, num := range nums {
			if usedNum[ni] {
				continue
			}
			dist := num.offset - m.Offset
			if dist < 0 {
				dist = -dist
			}
			if dist <= mentionDistance && dist < bestDist {
				best, bestDist = ni, dist
			}
		}
		if best >= 0 {
			usedNum[best] = true
			paired[ci] = true
			items = append(items, domain.OrderItem{Country: m.Country, Quantity: nums[best].value})
		}
	}

	if len(items) < len(mentions) {
		if po := poQtyRe.FindStringSubmatch(folded); po != nil {
			if q, err := strconv.Atoi(po[1]); err == nil && q > 0 {
				for ci, m := range mentions {
					if !paired[ci] {
						items = append(items, domain.OrderItem{Country: m.Country, Quantity: q})
					}
				}
			}
		}
	}

	return items
}

// ParseContact picks name, phone and branch delivery out of a contact block.
// The name is only taken when the same message carries a phone number, so a
// plain two-word reply is never mistaken for a name. Greeting and intent
// lines are never names.
func ParseContact(text string) domain.OrderDraft {
	var out domain.OrderDraft

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if m := phoneRe.FindStringSubmatch(text); m != nil {
		out.Phone = strings.TrimSpace(m[1])
	}

	for _, l := range lines {
		if m := branchRe.FindStringSubmatch(l); m != nil {
			out.Delivery.City = strings.TrimSpace(m[1])
			out.Delivery.Branch = m[2]
			break
		}
	}

	if out.Phone != "" {
		for _, l := range lines {
			if nameCandidate(l) && !strings.EqualFold(l, out.Delivery.City) {
				out.FullName = l
				break
			}
		}
	}

	return out
}

// MissingFromReply reads which numbered points an oracle reply still asks
// for ("📝 Залишилось вказати: 1. ... 3. ...").
func MissingFromReply(text string) []domain.Field {
	if !strings.Contains(text, "Залишилось вказати") {
		return nil
	}
	var out []domain.Field
	seen := map[int]bool{}
	for _, ln := range strings.Split(text, "\n") {
		m := missPointRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		p, _ := strconv.Atoi(m[1])
		if !seen[p] {
			seen[p] = true
			out = append(out, domain.RequiredFields[p-1])
		}
	}
	return out
}

// ExtractQuoted returns the trimmed text of a replied-to message.
func ExtractQuoted(text, caption string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return strings.TrimSpace(caption)
}
