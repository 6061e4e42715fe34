package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"simbot/internal/service"
)

const postedOrder = `@jane
Jane Doe
099 123 4567
Kyiv № 30

🇬🇧 ВЕЛИКОБРИТАНІЯ, 2 шт — 650 грн
🇺🇸 США, 1 шт — 1400 грн
🇬🇧 ВЕЛИКОБРИТАНІЯ, 1500 шт — договірна

Загальна сума: 2050 грн`

func TestEditStaffOrderPaid(t *testing.T) {
	edit := service.EditStaffOrder(postedOrder, "оплачено")

	assert.True(t, edit.Changed)
	assert.True(t, edit.Paid)
	assert.Contains(t, edit.Text, "🇬🇧 ВЕЛИКОБРИТАНІЯ, 2 шт — (замовлення оплачене)")
	assert.Contains(t, edit.Text, "🇺🇸 США, 1 шт — (замовлення оплачене)")
	assert.Contains(t, edit.Text, "1500 шт — (замовлення оплачене)")
	assert.NotContains(t, edit.Text, "грн")
	assert.NotContains(t, edit.Text, service.TotalPrefix)
}

func TestEditStaffOrderOperator(t *testing.T) {
	edit := service.EditStaffOrder(postedOrder, "оператор водафон")

	assert.True(t, edit.Changed)
	assert.Contains(t, edit.Text, "🇬🇧 ВЕЛИКОБРИТАНІЯ (оператор Vodafone), 2 шт — 650 грн")
	assert.Contains(t, edit.Text, "🇺🇸 США, 1 шт — 1400 грн")

	again := service.EditStaffOrder(edit.Text, "оператор O2")
	assert.False(t, again.Changed)
}

func TestEditStaffOrderNote(t *testing.T) {
	edit := service.EditStaffOrder(postedOrder, "Примітка: передзвонити після 18:00")

	assert.True(t, edit.Changed)
	assert.False(t, edit.Paid)
	assert.Equal(t, postedOrder+"\n\n⚠️ Примітка: передзвонити після 18:00", edit.Text)
}

func TestEditStaffOrderUnknownCommand(t *testing.T) {
	edit := service.EditStaffOrder(postedOrder, "гарне замовлення")
	assert.False(t, edit.Changed)
	assert.Equal(t, postedOrder, edit.Text)
}

func TestSplitNote(t *testing.T) {
	order, note := service.SplitNote("Іван 0991234567 Київ 5, Англія 2. Примітка: терміново")
	assert.Equal(t, "Іван 0991234567 Київ 5, Англія 2.", order)
	assert.Equal(t, "терміново", note)

	order, note = service.SplitNote("без примітки")
	assert.Equal(t, "без примітки", order)
	assert.Empty(t, note)
}
