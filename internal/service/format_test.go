package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"simbot/internal/service"
)

func TestFormatFullName(t *testing.T) {
	tests := map[string]string{
		"олена петрівна ШЕВЧЕНКО": "Олена Шевченко",
		"jane doe":                "Jane Doe",
		"  іван  ":                "Іван",
		"анна-марія коваль":       "Анна-Марія Коваль",
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, service.FormatFullName(in), in)
	}
}

func TestFormatPhone(t *testing.T) {
	tests := map[string]string{
		"0991234567":          "099 123 4567",
		"+380991234567":       "099 123 4567",
		"+38 (099) 123-45-67": "099 123 4567",
		"+44 7700 900123":     "+44 7700 900123",
	}
	for in, want := range tests {
		assert.Equal(t, want, service.FormatPhone(in), in)
	}
}

func TestFormatBranch(t *testing.T) {
	assert.Equal(t, "30", service.FormatBranch("відділення №30"))
	assert.Equal(t, "12", service.FormatBranch(" 12 "))
	assert.Equal(t, "поштомат", service.FormatBranch("поштомат"))
}
