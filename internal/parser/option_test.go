package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOption_Empty(t *testing.T) {
	assert.Equal(t, Option{}, ParseOption(""))
}

func TestParseOption_BirthDate(t *testing.T) {
	opt := ParseOption("생년월일: 19900101")
	assert.Equal(t, "19900101", opt.BirthDate)
	assert.Empty(t, opt.Phone)
	assert.Empty(t, opt.TshirtSize)
}

func TestParseOption_ShirtSizeBilingual(t *testing.T) {
	opt := ParseOption("티셔츠 사이즈 (T-shirts size): L")
	assert.Equal(t, "L", opt.TshirtSize)
}

func TestParseOption_BilingualLabels(t *testing.T) {
	raw := "연락처(Phone): 010-1234-5678 / 비상연락처 Emergency Contact: 010-9876-5432 / " +
		"비상연락처 관계 Relationship: 배우자 / 생년월일(Birth): 19850315 / " +
		"티셔츠 사이즈 (T-shirts size): xl / 성별(Gender): m"

	opt := ParseOption(raw)

	assert.Equal(t, Option{
		Phone:             "01012345678",
		EmergencyContact:  "01098765432",
		EmergencyRelation: "배우자",
		BirthDate:         "19850315",
		TshirtSize:        "XL",
		Gender:            "M",
	}, opt)
}

func TestParseOption_LegacyContactWithRelation(t *testing.T) {
	opt := ParseOption("연락처: 01011112222 / 비상연락처/관계: 010-3333-4444 / 부모 / 사이즈: M")

	assert.Equal(t, "01011112222", opt.Phone)
	assert.Equal(t, "01033334444", opt.EmergencyContact)
	assert.Equal(t, "부모", opt.EmergencyRelation)
	assert.Equal(t, "M", opt.TshirtSize)
	assert.Empty(t, opt.Gender)
}

func TestParseOption_LabeledRelationBeatsLooseLabel(t *testing.T) {
	raw := "관계: 형제 / 비상연락처 관계 Relationship: 친구"

	assert.Equal(t, "친구", ParseOption(raw).EmergencyRelation)

	// the loose rule on its own would pick the earlier label
	v, _, ok := RelationRules[len(RelationRules)-1].Match(raw)
	assert.True(t, ok)
	assert.Equal(t, "형제", v)
}

func TestParseOption_BareEmergencyLabelAlsoFillsPhone(t *testing.T) {
	opt := ParseOption("비상연락처: 010-1111-2222")

	assert.Equal(t, "01011112222", opt.EmergencyContact)
	assert.Equal(t, "01011112222", opt.Phone)
}

func TestParseOption_BirthDateLengths(t *testing.T) {
	assert.Equal(t, "900101", ParseOption("생년월일: 900101").BirthDate)
	assert.Empty(t, ParseOption("생년월일: 90010").BirthDate)
}

func TestParseOption_GenderOnlyMF(t *testing.T) {
	assert.Equal(t, "F", ParseOption("성별: f").Gender)
	assert.Empty(t, ParseOption("성별: 남").Gender)
}

func TestRuleMatch_SideCapture(t *testing.T) {
	v, side, ok := EmergencyRules[1].Match("비상연락처 / 관계: 010-2222-3333 / 자녀")
	assert.True(t, ok)
	assert.Equal(t, "010-2222-3333", v)
	assert.Equal(t, "자녀", side)

	_, side, ok = EmergencyRules[2].Match("비상연락처: 010-2222-3333")
	assert.True(t, ok)
	assert.Empty(t, side)
}

func TestFirstMatch_NoRuleMatches(t *testing.T) {
	_, _, ok := FirstMatch(GenderRules, "no labels here")
	assert.False(t, ok)
}
