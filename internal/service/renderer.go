package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"simbot/internal/domain"
)

const (
	ThanksMessage          = "Дякуємо за замовлення, воно буде відправлено протягом 24 годин. 😊"
	ApologyMessage         = "Вибачте, сталася помилка. Спробуйте, будь ласка, ще раз трохи згодом."
	AlreadyReceivedMessage = "Ваше замовлення вже прийняте, дякуємо! 😊"
	ChooseAlternative      = "Можливо, вас зацікавить якась інша країна з нашого асортименту?"
	AllSoldOutMessage      = "На жаль, наразі всі SIM-карти відсутні."
	AskLookupCountry       = "Будь ласка, уточніть, для якої країни вам потрібна USSD-комбінація?"
	PlasticFallback        = "Номер вказаний на пластику сім-карти"
	MissingHeading         = "📝 Залишилось вказати:"
	Negotiable             = "договірна"
	PaidMarker             = "(замовлення оплачене)"
	TotalPrefix            = "Загальна сума:"
	AddressPrefix          = "⚠️ Адресна доставка:"
	NotePrefix             = "⚠️ Примітка:"
)

const activationText = `🇺🇸 Активація SIM-карти США

1. Вставте SIM-карту в телефон і дочекайтеся появи мережі.
2. Поповніть рахунок на будь-яку суму через ding.com (оплата PayPal або картою).
3. Після зарахування коштів перезавантажте телефон.
4. Перевірте номер комбінацією з пластику сім-карти.

Без поповнення SIM-карта США не активується.`

var missingLabels = map[domain.Field]string{
	domain.FieldName:     "Ім'я та прізвище.",
	domain.FieldPhone:    "Номер телефону.",
	domain.FieldDelivery: "Місто та № відділення Нової Пошти (або адреса для кур'єра).",
	domain.FieldItems:    "Країна та кількість SIM-карт.",
}

// Renderer produces every customer and staff facing text.
type Renderer struct {
	catalog    *Catalog
	normalizer Normalizer
}

func NewRenderer(catalog *Catalog, normalizer Normalizer) *Renderer {
	return &Renderer{catalog: catalog, normalizer: normalizer}
}

func (r *Renderer) countryLabel(key string) string {
	flag := r.catalog.Flag(key)
	disp := r.catalog.Display(key)
	if flag == "" {
		return disp
	}
	return flag + " " + disp
}

func (r *Renderer) itemPrefix(item domain.OrderItem) string {
	label := r.countryLabel(item.Country)
	if item.Operator != "" {
		label += " (оператор " + item.Operator + ")"
	}
	return fmt.Sprintf("%s, %d шт — ", label, item.Quantity)
}

func (r *Renderer) header(order domain.OrderDraft) string {
	var b strings.Builder
	b.WriteString(FormatFullName(order.FullName))
	b.WriteString("\n")
	b.WriteString(FormatPhone(order.Phone))
	b.WriteString("\n")
	b.WriteString(r.DeliveryLine(order.Delivery))
	b.WriteString("\n\n")
	return b.String()
}

// DeliveryLine renders the branch form when both forms are present.
func (r *Renderer) DeliveryLine(d domain.Delivery) string {
	if d.HasBranch() {
		return FormatCity(d.City) + " № " + FormatBranch(d.Branch)
	}
	if d.HasAddress() {
		line := AddressPrefix + " " + strings.TrimSpace(d.Address)
		if city := FormatCity(d.City); city != "" && !strings.Contains(d.Address, city) {
			line = AddressPrefix + " " + city + ", " + strings.TrimSpace(d.Address)
		}
		return line
	}
	return ""
}

// Customer renders the order summary sent back to the buyer. The grand total
// line appears only when at least two countries have a concrete price.
func (r *Renderer) Customer(order domain.OrderDraft) string {
	return r.render(order, false)
}

// Staff renders the notification for the staff chat. A paid order hides every
// amount and the total.
func (r *Renderer) Staff(order domain.OrderDraft, paid bool) string {
	return r.render(order, paid)
}

func (r *Renderer) render(order domain.OrderDraft, paid bool) string {
	var b strings.Builder
	b.WriteString(r.header(order))

	sum, priced := 0, 0
	for _, item := range order.Items {
		b.WriteString(r.itemPrefix(item))
		switch {
		case paid:
			b.WriteString(PaidMarker)
		default:
			line, q, err := r.catalog.LineTotal(item)
			if err == nil && q.Priced() {
				sum += line
				priced++
				b.WriteString(strconv.Itoa(line) + " грн")
			} else {
				b.WriteString(Negotiable)
			}
		}
		b.WriteString("\n")
	}

	if !paid && priced >= 2 {
		b.WriteString(fmt.Sprintf("\n%s %d грн\n", TotalPrefix, sum))
	}

	return strings.TrimRight(b.String(), "\n")
}

// MissingPrompt asks for every missing field in one message, numbered the
// same way the oracle numbers them.
func (r *Renderer) MissingPrompt(missing []domain.Field) string {
	if len(missing) == 0 {
		return ""
	}
	lines := []string{MissingHeading, ""}
	for _, f := range missing {
		lines = append(lines, fmt.Sprintf("%d. %s", f.Point(), missingLabels[f]))
	}
	return strings.Join(lines, "\n")
}

// PriceBlock renders the tier table of one country.
func (r *Renderer) PriceBlock(key string) string {
	country, ok := r.catalog.Country(key)
	if !ok {
		return ""
	}

	var b strings.Builder
	if country.Flag != "" {
		fmt.Fprintf(&b, "%s %s %s\n\n", country.Flag, country.Display, country.Flag)
	} else {
		fmt.Fprintf(&b, "%s\n\n", country.Display)
	}

	if !country.Available() {
		reason := country.Availability.Reason
		if reason == "" {
			reason = "Наразі немає в наявності."
		}
		b.WriteString("❌ " + reason)
		return b.String()
	}

	ascending := make([]domain.PriceTier, len(country.Tiers))
	for i, t := range country.Tiers {
		ascending[len(country.Tiers)-1-i] = t
	}

	gap := false
	for i, t := range ascending {
		if !gap && i > 0 && t.MinQuantity >= 100 {
			b.WriteString("\n")
			gap = true
		}

		var qty string
		switch {
		case i == len(ascending)-1:
			qty = fmt.Sprintf("%d+ шт.", t.MinQuantity)
		case ascending[i+1].MinQuantity-1 == t.MinQuantity:
			qty = fmt.Sprintf("%d шт.", t.MinQuantity)
		default:
			qty = fmt.Sprintf("%d-%d шт.", t.MinQuantity, ascending[i+1].MinQuantity-1)
		}

		price := Negotiable
		if t.UnitPrice != nil {
			price = strconv.Itoa(*t.UnitPrice) + " грн"
		}
		fmt.Fprintf(&b, "%s — %s\n", qty, price)
	}

	if country.Note != "" {
		fmt.Fprintf(&b, "\nПримітка: %s\n", country.Note)
	}

	return strings.TrimRight(b.String(), "\n")
}

// Prices joins the blocks of the given canonical keys.
func (r *Renderer) Prices(keys []string) string {
	var blocks []string
	for _, k := range keys {
		if block := r.PriceBlock(k); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// OutOfStock lists known countries that cannot be sold right now, in catalog
// order.
func (r *Renderer) OutOfStock(unavailable map[string]string) string {
	keys := r.orderedKeys(unavailable)
	if len(keys) == 0 {
		return ""
	}

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		reason := unavailable[k]
		if reason == "" {
			reason = "Наразі немає в наявності."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", r.catalog.Display(k), reason))
	}

	if len(lines) == 1 {
		return "На жаль, " + lines[0]
	}
	for i := range lines {
		lines[i] = "❌ " + lines[i]
	}
	return "На жаль, ці позиції наразі недоступні:\n" + strings.Join(lines, "\n")
}

func (r *Renderer) orderedKeys(m map[string]string) []string {
	var keys []string
	for _, k := range r.catalog.Keys() {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var unknown []string
	for k := range m {
		if !r.catalog.Has(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return append(keys, unknown...)
}

// Unavailable answers a price request for countries the shop does not sell.
func (r *Renderer) Unavailable(names []string) string {
	var clean []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return fmt.Sprintf("На жаль, %s наразі недоступні.\nУ наявності: %s.", strings.Join(clean, ", "), r.availableList())
}

func (r *Renderer) availableList() string {
	names := r.catalog.AvailableDisplayNames()
	switch len(names) {
	case 0:
		return "наразі нічого немає"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " та " + names[len(names)-1]
	}
}

// LookupTargets renders how to find the SIM's own number for each target.
func (r *Renderer) LookupTargets(targets []domain.LookupTarget) string {
	var blocks []string
	for _, t := range targets {
		key := r.normalizer.Country(t.Country)
		if key == "" {
			continue
		}
		op := r.normalizer.LookupOperator(t.Operator)

		country, known := r.catalog.Country(key)
		base := strings.TrimSpace(fmt.Sprintf("%s %s %s", country.DialCode, country.Flag, r.catalog.Display(key)))
		if !known {
			base = r.catalog.Display(key)
		}

		var codes []domain.LookupCode
		for _, lc := range country.LookupCodes {
			if op == "" || r.normalizer.LookupOperator(lc.Operator) == op {
				codes = append(codes, lc)
			}
		}

		var lines []string
		if len(codes) == 0 {
			if op != "" {
				lines = append(lines, fmt.Sprintf("%s (оператор %s) — %s", base, op, PlasticFallback))
			} else {
				lines = append(lines, fmt.Sprintf("%s — %s", base, PlasticFallback))
			}
		}
		for _, lc := range codes {
			if lc.Operator != "" {
				lines = append(lines, fmt.Sprintf("%s (оператор %s) — %s", base, lc.Operator, lc.Code))
			} else {
				lines = append(lines, fmt.Sprintf("%s — %s", base, lc.Code))
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// PostOrderInfo lists the number lookup combination for each ordered country
// that has one. Empty when none does.
func (r *Renderer) PostOrderInfo(order domain.OrderDraft) string {
	seen := map[string]bool{}
	var lines []string
	for _, it := range order.Items {
		if seen[it.Country] {
			continue
		}
		seen[it.Country] = true
		country, ok := r.catalog.Country(it.Country)
		if !ok || country.PostOrderCode == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s — комбінація щоб дізнатись номер", country.Flag, country.PostOrderCode))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) Activation() string {
	return activationText
}

// CryptoAmount converts a hryvnia total to USDT, rounding up, plus a flat fee.
func CryptoAmount(totalUAH int, rate float64, feeUSD int) int {
	if rate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalUAH)/rate)) + feeUSD
}

func (r *Renderer) CryptoPayment(totalUAH int, wallet string, rate float64, feeUSD int) string {
	return fmt.Sprintf("💰 Оплата USDT (TRC-20):\n\nСума: %d USDT\n\nАдреса гаманця:\n`%s`\n\nПісля оплати надішліть, будь ласка, скріншот підтвердження.",
		CryptoAmount(totalUAH, rate, feeUSD), wallet)
}
