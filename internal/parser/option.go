// Package parser extracts structured participant fields from the free-text
// option column of the purchase export, classifies product names into
// courses and normalizes phone numbers.
package parser

import (
	"regexp"
	"strings"
)

// Field names a value that can be pulled out of an option string.
type Field string

const (
	FieldPhone             Field = "phone"
	FieldEmergencyContact  Field = "emergency_contact"
	FieldEmergencyRelation Field = "emergency_relation"
	FieldBirthDate         Field = "birth_date"
	FieldTshirtSize        Field = "tshirt_size"
	FieldGender            Field = "gender"
)

// Rule is one labeled pattern of a field's fallback chain. The first capture
// group is the value; a second group, when the pattern has one, is a side
// value captured in the same match (the relation of an emergency contact).
type Rule struct {
	Field   Field
	Label   string
	Pattern *regexp.Regexp
}

// Match applies the rule to s.
func (r Rule) Match(s string) (value, side string, ok bool) {
	m := r.Pattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	value = m[1]
	if len(m) > 2 {
		side = strings.TrimSpace(m[2])
	}
	return value, side, true
}

func rule(field Field, label, pattern string) Rule {
	return Rule{Field: field, Label: label, Pattern: regexp.MustCompile(pattern)}
}

// Rule chains in priority order. Labeled bilingual forms come before the
// looser bare-label forms so the loose ones cannot shadow them.
var (
	PhoneRules = []Rule{
		rule(FieldPhone, "phone-annotated", `연락처\s*\([^)]*\)\s*:\s*([\d\-]+)`),
		rule(FieldPhone, "phone", `연락처\s*:\s*([\d\-]+)`),
	}

	EmergencyRules = []Rule{
		rule(FieldEmergencyContact, "emergency-bilingual", `(?i)비상연락처\s*Emergency[^:]*:\s*([\d\-]+)`),
		rule(FieldEmergencyContact, "emergency-with-relation", `비상연락처\s*/?\s*관계[^:]*:\s*([\d\-]+)\s*/\s*([^\s/]+)`),
		rule(FieldEmergencyContact, "emergency", `비상연락처[^:]*:\s*([\d\-]+)`),
	}

	RelationRules = []Rule{
		rule(FieldEmergencyRelation, "relation-bilingual", `(?i)비상연락처\s*관계\s*Relationship[^:]*:\s*([^\s/]+)`),
		rule(FieldEmergencyRelation, "relation", `관계[^:]*:\s*([^\s/]+)`),
	}

	BirthDateRules = []Rule{
		rule(FieldBirthDate, "birth-annotated", `생년월일\s*\([^)]*\)\s*:\s*(\d{6,8})`),
		rule(FieldBirthDate, "birth", `생년월일\s*:\s*(\d{6,8})`),
	}

	TshirtSizeRules = []Rule{
		rule(FieldTshirtSize, "size-bilingual", `(?i)티셔츠\s*사이즈\s*\(T-shirts[^)]*\)[^:]*:\s*([A-Z0-9]{1,3})`),
		rule(FieldTshirtSize, "size-korean", `(?i)티셔츠\s*사이즈[^:]*:\s*([A-Z0-9]{1,3})`),
		rule(FieldTshirtSize, "size-english", `(?i)T-shirts\s*size[^:]*:\s*([A-Z0-9]{1,3})`),
		rule(FieldTshirtSize, "size", `(?i)사이즈[^:]*:\s*([A-Z0-9]{1,3})`),
	}

	GenderRules = []Rule{
		rule(FieldGender, "gender-annotated", `(?i)성별\s*\([^)]*\)\s*:\s*([MF])`),
		rule(FieldGender, "gender", `(?i)성별\s*:\s*([MF])`),
	}
)

// FirstMatch walks a chain and stops at the first rule that matches.
func FirstMatch(rules []Rule, s string) (value, side string, ok bool) {
	for _, r := range rules {
		if value, side, ok = r.Match(s); ok {
			return value, side, true
		}
	}
	return "", "", false
}

// Option holds the fields found in one option string. Empty means absent.
type Option struct {
	Phone             string `json:"phone,omitempty"`
	EmergencyContact  string `json:"emergency_contact,omitempty"`
	EmergencyRelation string `json:"emergency_relation,omitempty"`
	BirthDate         string `json:"birth_date,omitempty"`
	TshirtSize        string `json:"tshirt_size,omitempty"`
	Gender            string `json:"gender,omitempty"`
}

// ParseOption extracts every known field from raw. It never fails; a field
// without a matching rule is left empty.
func ParseOption(raw string) Option {
	var opt Option
	if raw == "" {
		return opt
	}

	if v, _, ok := FirstMatch(PhoneRules, raw); ok {
		opt.Phone = Digits(v)
	}

	if v, relation, ok := FirstMatch(EmergencyRules, raw); ok {
		opt.EmergencyContact = Digits(v)
		opt.EmergencyRelation = relation
	}

	if opt.EmergencyRelation == "" {
		if v, _, ok := FirstMatch(RelationRules, raw); ok {
			opt.EmergencyRelation = strings.TrimSpace(v)
		}
	}

	if v, _, ok := FirstMatch(BirthDateRules, raw); ok {
		opt.BirthDate = v
	}

	if v, _, ok := FirstMatch(TshirtSizeRules, raw); ok {
		opt.TshirtSize = strings.ToUpper(v)
	}

	if v, _, ok := FirstMatch(GenderRules, raw); ok {
		opt.Gender = strings.ToUpper(v)
	}

	return opt
}
