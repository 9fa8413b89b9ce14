package ingest

import (
	"fmt"
	"strings"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/parser"
	"registration-service/internal/store"
)

// CompletionPolicy decides whether a freshly materialized slot already
// holds real answers.
type CompletionPolicy func(p models.Participant) bool

// PrimaryHasAnswers marks only the primary slot complete, and only when it
// carries an emergency contact or a shirt size.
func PrimaryHasAnswers(p models.Participant) bool {
	return p.IsPrimary && (present(p.EmergencyContact) || present(p.TshirtSize))
}

// BirthDatePolicy filters an extracted birth date. An empty result drops it.
type BirthDatePolicy func(raw string) string

// BirthDateAcceptAny keeps 6 and 8 digit values as they were written.
func BirthDateAcceptAny(raw string) string { return raw }

// BirthDateRequire8 keeps only YYYYMMDD values.
func BirthDateRequire8(raw string) string {
	if len(raw) == 8 {
		return raw
	}
	return ""
}

// ParseBirthDatePolicy resolves a policy name: "any" (default) or "require8".
func ParseBirthDatePolicy(name string) (BirthDatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return BirthDateAcceptAny, nil
	case "require8":
		return BirthDateRequire8, nil
	}
	return nil, fmt.Errorf("unknown birth date policy %q", name)
}

// Materializer turns order groups into order drafts.
type Materializer struct {
	Genders   GenderLookup
	Complete  CompletionPolicy
	BirthDate BirthDatePolicy
	Now       func() time.Time
}

func NewMaterializer(genders GenderLookup) *Materializer {
	return &Materializer{
		Genders:   genders,
		Complete:  PrimaryHasAnswers,
		BirthDate: BirthDateAcceptAny,
		Now:       time.Now,
	}
}

// Materialize builds the order and its TotalParticipants slots. Every slot
// produced by a row shares that row's extracted option fields; slot 0 is the
// primary and also gets the buyer name and a looked-up gender fallback.
func (m *Materializer) Materialize(g OrderGroup) models.OrderDraft {
	now := m.Now().UTC().Truncate(time.Second)
	p := g.Primary

	buyerPhone := p.BuyerPhone
	if parser.Digits(buyerPhone) == "" {
		buyerPhone = p.RecipientPhone
	}
	recipientPhone := p.RecipientPhone
	if parser.Digits(recipientPhone) == "" {
		recipientPhone = p.BuyerPhone
	}
	buyerGender := m.Genders.Lookup(p.BuyerEmail)

	order := models.Order{
		BuyerID:           store.CanonicalBuyerID(p.BuyerEmail),
		BuyerEmail:        strings.TrimSpace(p.BuyerEmail),
		BuyerName:         p.BuyerName,
		BuyerPhone:        parser.NormalizePhone(buyerPhone),
		BuyerGender:       buyerGender,
		TotalParticipants: g.TotalParticipants,
		ProductName:       p.ProductName,
		Course:            parser.ClassifyCourse(p.ProductName),
		OptionRaw:         p.OptionText,
		RecipientName:     p.RecipientName,
		RecipientPhone:    parser.NormalizePhone(recipientPhone),
		Zipcode:           normalizeZipcode(p.Zipcode),
		Address:           p.Address,
		AddressDetail:     p.AddressDetail,
		TotalAmount:       p.AmountValue(),
		CreatedAt:         now,
	}

	participants := make([]models.Participant, 0, g.TotalParticipants)
	for _, gr := range g.Rows {
		opt := parser.ParseOption(gr.Row.OptionText)
		for i := 0; i < gr.Quantity; i++ {
			idx := len(participants)
			part := models.Participant{
				ParticipantIndex:  idx,
				Gender:            optional(opt.Gender),
				BirthDate:         optional(m.birthDate(opt.BirthDate)),
				Phone:             optional(opt.Phone),
				Course:            gr.Course,
				TshirtSize:        optional(opt.TshirtSize),
				EmergencyContact:  optional(opt.EmergencyContact),
				EmergencyRelation: optional(opt.EmergencyRelation),
				OptionRaw:         gr.Row.OptionText,
				IsPrimary:         idx == 0,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if part.IsPrimary {
				part.Name = optional(p.BuyerName)
				if part.Gender == nil && buyerGender != nil {
					bg := *buyerGender
					part.Gender = &bg
				}
			}
			part.IsCompleted = m.complete(part)
			participants = append(participants, part)
		}
	}

	return models.OrderDraft{Order: order, Participants: participants}
}

func (m *Materializer) birthDate(raw string) string {
	if raw == "" || m.BirthDate == nil {
		return raw
	}
	return m.BirthDate(raw)
}

func (m *Materializer) complete(p models.Participant) bool {
	if m.Complete == nil {
		return PrimaryHasAnswers(p)
	}
	return m.Complete(p)
}

// normalizeZipcode keeps leading zeros and drops the ".0" a spreadsheet adds
// to numeric cells.
func normalizeZipcode(z string) string {
	z = strings.TrimSpace(z)
	if strings.HasSuffix(z, ".0") && parser.Digits(z[:len(z)-2]) == z[:len(z)-2] {
		return z[:len(z)-2]
	}
	return z
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func present(s *string) bool {
	return s != nil && *s != ""
}
