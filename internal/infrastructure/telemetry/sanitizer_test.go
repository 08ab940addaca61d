package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePIILevel(t *testing.T) {
	assert.Equal(t, PIILevelNone, ParsePIILevel("NONE"))
	assert.Equal(t, PIILevelFull, ParsePIILevel(" full "))
	assert.Equal(t, PIILevelHashed, ParsePIILevel("hashed"))
	assert.Equal(t, PIILevelHashed, ParsePIILevel("bogus"))
	assert.Equal(t, PIILevelHashed, ParsePIILevel(""))
}

func TestTextHashed(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "concierge")

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{name: "email", input: "пишите на ivan@example.com", contains: "[EMAIL:", absent: "ivan@example.com"},
		{name: "russian phone", input: "мой номер +7 (912) 345-67-89", contains: "[PHONE:", absent: "345-67-89"},
		{name: "card", input: "карта 4111 1111 1111 1111", contains: "[CARD:REDACTED]", absent: "4111"},
		{name: "plain text kept", input: "хочу курс по Python", contains: "хочу курс по Python"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Text(tt.input)
			assert.Contains(t, out, tt.contains)
			if tt.absent != "" {
				assert.NotContains(t, out, tt.absent)
			}
		})
	}
}

func TestHashIsStableAndSalted(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "a")
	b := NewSanitizer(PIILevelHashed, "b")

	assert.Equal(t, a.Contact("ivan@example.com"), a.Contact("ivan@example.com"))
	assert.NotEqual(t, a.Contact("ivan@example.com"), b.Contact("ivan@example.com"))
	assert.Len(t, a.UserID("42"), 8)
}

func TestLevels(t *testing.T) {
	none := NewSanitizer(PIILevelNone, "")
	assert.Equal(t, "[REDACTED]", none.Text("hello"))
	assert.Equal(t, "", none.Text(""))
	assert.Equal(t, "[REDACTED]", none.Contact("ivan@example.com"))
	assert.Equal(t, "[REDACTED]", none.UserID("42"))

	full := NewSanitizer(PIILevelFull, "")
	assert.Equal(t, "ivan@example.com", full.Text("ivan@example.com"))
	assert.Equal(t, "ivan@example.com", full.Contact("ivan@example.com"))
	assert.Equal(t, "42", full.UserID("42"))

	assert.Equal(t, "", NewSanitizer(PIILevelHashed, "").Contact(""))
}
