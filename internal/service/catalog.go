package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"simbot/internal/domain"
)

var (
	ErrEmptyTiers      = errors.New("country has no price tiers")
	ErrTierGap         = errors.New("price tiers must start at quantity 1")
	ErrDuplicateTier   = errors.New("duplicate tier minimum quantity")
	ErrDuplicateKey    = errors.New("duplicate country key")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Catalog is the static price list. Countries keep their declaration order,
// which is also the precedence order of keyword matching.
type Catalog struct {
	countries []domain.Country
	byKey     map[string]int
}

// NewCatalog validates and indexes the given countries. Tiers are copied and
// sorted by descending minimum quantity.
func NewCatalog(countries []domain.Country) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(countries))}

	for _, country := range countries {
		key := strings.ToUpper(strings.TrimSpace(country.Key))
		if _, ok := c.byKey[key]; ok {
			return nil, fmt.Errorf("%s: %w", key, ErrDuplicateKey)
		}
		if len(country.Tiers) == 0 {
			return nil, fmt.Errorf("%s: %w", key, ErrEmptyTiers)
		}

		tiers := append([]domain.PriceTier(nil), country.Tiers...)
		sort.SliceStable(tiers, func(i, j int) bool {
			return tiers[i].MinQuantity > tiers[j].MinQuantity
		})
		for i := 1; i < len(tiers); i++ {
			if tiers[i].MinQuantity == tiers[i-1].MinQuantity {
				return nil, fmt.Errorf("%s: %w: %d", key, ErrDuplicateTier, tiers[i].MinQuantity)
			}
		}
		if tiers[len(tiers)-1].MinQuantity != 1 {
			return nil, fmt.Errorf("%s: %w", key, ErrTierGap)
		}

		country.Key = key
		country.Tiers = tiers
		if country.Availability.Status == "" {
			country.Availability.Status = domain.StatusAvailable
		}
		c.byKey[key] = len(c.countries)
		c.countries = append(c.countries, country)
	}

	return c, nil
}

// Country returns the catalog entry for a canonical key.
func (c *Catalog) Country(key string) (domain.Country, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return domain.Country{}, false
	}
	return c.countries[i], true
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Countries returns all entries in declaration order.
func (c *Catalog) Countries() []domain.Country {
	return append([]domain.Country(nil), c.countries...)
}

func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.countries))
	for _, country := range c.countries {
		keys = append(keys, country.Key)
	}
	return keys
}

// Display returns the customer-facing name, falling back to the raw key.
func (c *Catalog) Display(key string) string {
	if country, ok := c.Country(key); ok {
		return country.Display
	}
	return key
}

func (c *Catalog) Flag(key string) string {
	if country, ok := c.Country(key); ok {
		return country.Flag
	}
	return ""
}

// AvailableDisplayNames lists the names of all countries currently in stock.
func (c *Catalog) AvailableDisplayNames() []string {
	var names []string
	for _, country := range c.countries {
		if country.Available() {
			names = append(names, country.Display)
		}
	}
	return names
}

// DefaultCatalog is the shop's price list.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultCountries())
	if err != nil {
		panic(err)
	}
	return c
}

func tiers(pairs ...int) []domain.PriceTier {
	out := make([]domain.PriceTier, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceTier{MinQuantity: pairs[i], UnitPrice: domain.Price(pairs[i+1])})
	}
	return out
}

func defaultCountries() []domain.Country {
	gbTiers := append([]domain.PriceTier{{MinQuantity: 1000}}, tiers(100, 210, 20, 250, 10, 275, 4, 300, 2, 325, 1, 350)...)

	return []domain.Country{
		{
			Key: "GB", Display: "ВЕЛИКОБРИТАНІЯ", Flag: "🇬🇧", DialCode: "+44",
			Tiers:    gbTiers,
			Aliases:  []string{"АНГЛІЯ", "БРИТАНІЯ", "UK", "U.K.", "UNITED KINGDOM", "ВБ", "GREAT BRITAIN", "+44", "ЮК", "У.К.", "АНГЛИЯ", "ВЕЛИКОБРИТАНИЯ"},
			Keywords: []string{"англ", "британ", "великобритан", "uk", "u.k", "great britain", "+44"},
			LookupCodes: []domain.LookupCode{
				{Operator: "O2", Code: "*#100#"},
				{Operator: "Vodafone", Code: "*#1001#"},
				{Operator: "Three", Code: "*#100#"},
				{Operator: "Lebara", Code: "*#100#"},
			},
			PostOrderCode: "*#100#",
		},
		{
			Key: "US", Display: "США", Flag: "🇺🇸", DialCode: "+1",
			Tiers:    tiers(10, 1000, 4, 1300, 1, 1400),
			Aliases:  []string{"USA", "U.S.A.", "UNITED STATES", "UNITED STATES OF AMERICA", "ШТАТИ", "АМЕРИКА", "US", "U.S."},
			Keywords: []string{"сша", "usa", "америк", "штат"},
			Note:     "Для активації потрібне поповнення.",
		},
		{
			Key: "NL", Display: "НІДЕРЛАНДИ", Flag: "🇳🇱", DialCode: "+31",
			Tiers:    tiers(20, 700, 4, 750, 1, 800),
			Aliases:  []string{"ГОЛЛАНДІЯ", "ГОЛЛАНДИЯ", "HOLLAND", "NETHERLANDS", "+31"},
			Keywords: []string{"нідерлан", "голланд", "holland", "nether", "+31"},
			LookupCodes: []domain.LookupCode{
				{Operator: "Lebara", Code: "*102#"},
				{Operator: "Lycamobile", Code: "*102#"},
			},
			PostOrderCode: "*102#",
		},
		{
			Key: "DE", Display: "НІМЕЧЧИНА", Flag: "🇩🇪", DialCode: "+49",
			Tiers:    tiers(10, 900, 4, 1000, 1, 1100),
			Aliases:  []string{"ГЕРМАНІЯ", "ГЕРМАНИЯ", "GERMANY", "DEUTSCHLAND", "+49"},
			Keywords: []string{"німеч", "герман", "german", "+49", "deutsch"},
			LookupCodes: []domain.LookupCode{
				{Operator: "Vodafone", Code: "*135#"},
				{Operator: "T-mobile", Code: "*135#"},
				{Operator: "Lebara", Code: "*135#"},
			},
		},
		{
			Key: "FR", Display: "ФРАНЦІЯ", Flag: "🇫🇷", DialCode: "+33",
			Tiers:    tiers(10, 1100, 4, 1200, 1, 1400),
			Aliases:  []string{"ФРАНЦИЯ", "FRANCE", "+33"},
			Keywords: []string{"франц", "france", "+33"},
		},
		{
			Key: "ES", Display: "ІСПАНІЯ", Flag: "🇪🇸", DialCode: "+34",
			Tiers:    tiers(10, 800, 4, 850, 1, 900),
			Aliases:  []string{"ИСПАНІЯ", "ИСПАНИЯ", "SPAIN", "+34"},
			Keywords: []string{"іспан", "испан", "spain", "+34"},
			LookupCodes: []domain.LookupCode{
				{Operator: "Movistar", Code: "*133#"},
				{Operator: "Lycamobile", Code: "*321#"},
			},
		},
		{
			Key: "CZ", Display: "ЧЕХІЯ", Flag: "🇨🇿", DialCode: "+420",
			Tiers:    tiers(10, 650, 4, 700, 1, 750),
			Aliases:  []string{"ЧЕХИЯ", "CZECH", "CZECH REPUBLIC", "CZECHIA", "+420"},
			Keywords: []string{"чех", "czech", "+420"},
		},
		{
			Key: "PL", Display: "ПОЛЬЩА", Flag: "🇵🇱", DialCode: "+48",
			Tiers:    tiers(10, 400, 4, 450, 1, 500),
			Aliases:  []string{"POLAND", "ПОЛЬША"},
			Keywords: []string{"польщ", "польш", "poland"},
			LookupCodes: []domain.LookupCode{
				{Operator: "Kaktus", Code: "*101#"},
			},
		},
		{
			Key: "LT", Display: "ЛИТВА", Flag: "🇱🇹", DialCode: "+370",
			Tiers:    tiers(10, 650, 4, 700, 1, 750),
			Aliases:  []string{"LITHUANIA"},
			Keywords: []string{"литв", "lithuan"},
		},
		{
			Key: "LV", Display: "ЛАТВІЯ", Flag: "🇱🇻", DialCode: "+371",
			Tiers:    tiers(10, 650, 4, 700, 1, 750),
			Aliases:  []string{"LATVIA", "ЛАТВИЯ"},
			Keywords: []string{"латв", "latvia"},
		},
		{
			Key: "KZ", Display: "КАЗАХСТАН", Flag: "🇰🇿", DialCode: "+7",
			Tiers:    tiers(10, 900, 4, 1000, 2, 1100, 1, 1200),
			Aliases:  []string{"KAZAKHSTAN", "+7"},
			Keywords: []string{"казах", "kazakh", "+7"},
		},
		{
			Key: "MA", Display: "МАРОККО", Flag: "🇲🇦", DialCode: "+212",
			Tiers:    tiers(10, 750, 4, 800, 2, 900, 1, 1000),
			Aliases:  []string{"MOROCCO"},
			Keywords: []string{"марок", "morocc"},
		},
		{
			Key: "IT", Display: "ІТАЛІЯ", Flag: "🇮🇹", DialCode: "+39",
			Tiers:        tiers(10, 1000, 4, 1100, 1, 1200),
			Availability: domain.Availability{Status: domain.StatusUnavailable, Reason: "Наразі немає в наявності."},
			Aliases:      []string{"ITALY", "ИТАЛИЯ", "ITALIA", "+39"},
			Keywords:     []string{"італ", "итал", "ital", "+39"},
		},
		{
			Key: "MD", Display: "МОЛДОВА", Flag: "🇲🇩", DialCode: "+373",
			Tiers:        tiers(10, 600, 4, 650, 1, 700),
			Availability: domain.Availability{Status: domain.StatusUnavailable, Reason: "Очікуємо нову поставку."},
			Aliases:      []string{"MOLDOVA", "+373"},
			Keywords:     []string{"молдов", "moldov", "+373"},
		},
	}
}
