package proposal

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/brasmat/proposal-api/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NumberPrefix prefixes every human-readable proposal number
const NumberPrefix = "PROP"

// FormatNumber returns the human-readable proposal number, e.g. PROP-2026-0042
func FormatNumber(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%04d", NumberPrefix, year, sequence)
}

// foldAccents removes combining marks, so "Construção" becomes "Construcao"
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns a client name into a URL slug: lower case ASCII words joined by dashes
func Slugify(name string) string {
	folded := strings.ToLower(foldAccents(name))

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// NameFromSlug is the display form of a slug. Accents dropped by Slugify are not restored.
func NameFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	// Casers keep state, so one per call
	return cases.Title(language.BrazilianPortuguese).String(strings.Join(words, " "))
}

// StatusLabel returns the Portuguese label shown on status badges
func StatusLabel(status domain.ProposalStatus) string {
	switch status {
	case domain.ProposalStatusDraft:
		return "Rascunho"
	case domain.ProposalStatusSent:
		return "Enviada"
	case domain.ProposalStatusViewed:
		return "Visualizada"
	case domain.ProposalStatusAccepted:
		return "Aceita"
	case domain.ProposalStatusRejected:
		return "Recusada"
	case domain.ProposalStatusExpired:
		return "Expirada"
	}
	return "Desconhecido"
}

// StatusColor returns the badge color for a status
func StatusColor(status domain.ProposalStatus) string {
	switch status {
	case domain.ProposalStatusDraft:
		return "gray"
	case domain.ProposalStatusSent:
		return "blue"
	case domain.ProposalStatusViewed:
		return "purple"
	case domain.ProposalStatusAccepted:
		return "green"
	case domain.ProposalStatusRejected:
		return "red"
	case domain.ProposalStatusExpired:
		return "orange"
	}
	return "gray"
}
