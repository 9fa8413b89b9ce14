package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"010-1234-5678":    "010-1234-5678",
		"01012345678":      "010-1234-5678",
		"010 1234 5678":    "010-1234-5678",
		"0311234567":       "031-123-4567",
		"+82 10 1234 5678": "821012345678",
		"1234":             "1234",
		"":                 "",
		"없음":               "",
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	inputs := []string{"01012345678", "010.1234.5678", "0311234567", "02-123-4567", "12345", "abc"}

	for _, in := range inputs {
		once := NormalizePhone(in)
		assert.Equal(t, once, NormalizePhone(once), in)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "0101234", Digits("010-12(34)"))
	assert.Empty(t, Digits("---"))
}
