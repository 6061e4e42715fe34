package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer maps free-form country and operator names to canonical keys.
type Normalizer interface {
	// Country returns the canonical key, or the uppercased input when nothing
	// matches.
	Country(raw string) string
	// Operator recognises the UK operators shown on order lines.
	Operator(raw string) string
	// LookupOperator recognises every operator that has a number lookup code.
	LookupOperator(raw string) string
	// Mentions finds every country named in free text.
	Mentions(text string) []Mention
}

type countryKeywords struct {
	key      string
	keywords []string
}

// KeywordNormalizer is a best-effort matcher over the catalog's aliases and
// keywords. Overlapping keywords resolve to the first country in catalog
// order.
type KeywordNormalizer struct {
	catalog  *Catalog
	aliases  map[string]string
	keywords []countryKeywords
}

func NewKeywordNormalizer(catalog *Catalog) *KeywordNormalizer {
	n := &KeywordNormalizer{
		catalog: catalog,
		aliases: map[string]string{},
	}

	for _, country := range catalog.Countries() {
		for _, alias := range append([]string{country.Display}, country.Aliases...) {
			f := fold(alias)
			if _, taken := n.aliases[f]; !taken {
				n.aliases[f] = country.Key
			}
		}

		kw := countryKeywords{key: country.Key}
		if country.Flag != "" {
			kw.keywords = append(kw.keywords, country.Flag)
		}
		for _, k := range country.Keywords {
			kw.keywords = append(kw.keywords, fold(k))
		}
		n.keywords = append(n.keywords, kw)
	}

	return n
}

func (n *KeywordNormalizer) Country(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return ""
	}
	if n.catalog.Has(upper) {
		return upper
	}

	f := fold(raw)
	if key, ok := n.aliases[f]; ok {
		return key
	}

	for _, ck := range n.keywords {
		for _, k := range ck.keywords {
			if strings.Contains(f, k) || strings.Contains(raw, k) {
				return ck.key
			}
		}
	}

	return upper
}

// Mentions returns every country mentioned in text together with the rune
// offset of its earliest keyword in the folded text, ordered by offset.
func (n *KeywordNormalizer) Mentions(text string) []Mention {
	f := fold(text)
	var out []Mention
	for _, ck := range n.keywords {
		best := -1
		for _, k := range ck.keywords {
			if i := strings.Index(f, k); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		if best >= 0 {
			out = append(out, Mention{Country: ck.key, Offset: utf8.RuneCountInString(f[:best])})
		}
	}
	sortMentions(out)
	return out
}

var ukOperators = map[string][]string{
	"O2":       {"o2", "о2"},
	"Vodafone": {"vodafone", "водафон", "водофон"},
	"Three":    {"three", "трі", "три", "3"},
}

var lookupOperators = []struct {
	name  string
	forms []string
}{
	{"O2", []string{"o2", "о2"}},
	{"Lebara", []string{"lebara", "лебара"}},
	{"Vodafone", []string{"vodafone", "водафон", "водофон"}},
	{"Three", []string{"three", "трі", "три"}},
	{"Movistar", []string{"movistar", "мовістар", "мовистар"}},
	{"Lycamobile", []string{"lycamobile", "lyca", "lyka", "лайкамобайл", "лайка"}},
	{"T-mobile", []string{"t-mobile", "t mobile", "т-мобайл", "т мобайл", "tmobile", "tмобайл"}},
	{"Kaktus", []string{"kaktus", "кактус"}},
}

func (n *KeywordNormalizer) Operator(raw string) string {
	o := strings.ToLower(strings.TrimSpace(raw))
	if o == "" {
		return ""
	}
	for canon, forms := range ukOperators {
		for _, form := range forms {
			if o == form {
				return canon
			}
		}
	}
	return ""
}

func (n *KeywordNormalizer) LookupOperator(raw string) string {
	o := strings.ToLower(strings.TrimSpace(raw))
	if o == "" {
		return ""
	}
	for _, op := range lookupOperators {
		for _, form := range op.forms {
			if o == form {
				return op.name
			}
		}
	}
	return ""
}

// FindOperator scans free text for a UK operator name, used for manager
// commands like "оператор Vodafone".
func FindOperator(text string) string {
	low := strings.ToLower(text)
	for _, word := range strings.FieldsFunc(low, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if word == "3" {
			continue
		}
		for canon, forms := range ukOperators {
			for _, form := range forms {
				if word == form {
					return canon
				}
			}
		}
	}
	return ""
}

// fold lowercases s and strips combining marks, so "Україна" and "Украіна"
// compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
