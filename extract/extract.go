/*
Package extract proposes lease fields from rental contract text.

PURPOSE:
  Applies deterministic regex heuristics to the text of a Uruguayan
  rental contract (already extracted from the PDF upstream) and proposes
  values for the lease form: tenant document, rent amount, due day, and
  guarantee type. The output is a proposal for a human to confirm, never
  an authoritative record.

HEURISTICS:
  Tuned for Spanish-language Uruguay contracts:
  - "C.I. Nro 4.567.890-1"            -> tenant document id
  - "$ 25.000"                        -> monthly rent (thousands dots)
  - "del 1 al 10 de cada mes"         -> due day = upper bound
  - "5 de cada mes"                   -> due day, fixed form
  - ANDA / Contaduría (CGN) / insurer names / Depósito -> guarantee
    type, checked in that order

  Unmatched fields keep their defaults (due day 5, currency UYU,
  guarantee OTHER). PDF binary parsing is out of scope; callers hand in
  plain text.

SEE ALSO:
  - api: the /api/extract endpoint wrapping this package
*/
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// GuaranteeType classifies the lease guarantee found in the contract.
type GuaranteeType string

const (
	GuaranteeANDA      GuaranteeType = "ANDA"
	GuaranteeInsurance GuaranteeType = "INSURANCE"
	GuaranteeDeposit   GuaranteeType = "DEPOSIT"
	GuaranteeOther     GuaranteeType = "OTHER"
)

// ProposedFields is the set of lease fields proposed from contract text.
// RentAmount is nil when no amount was found.
type ProposedFields struct {
	TenantName       string        `json:"tenantName"`
	TenantDocumentID string        `json:"tenantDocumentId"`
	RentAmount       *int64        `json:"rentAmount"`
	Currency         string        `json:"currency"`
	DueDayOfMonth    int           `json:"dueDayOfMonth"`
	GuaranteeType    GuaranteeType `json:"guaranteeType"`
}

var (
	// The capture must end on a digit so a sentence-ending period is
	// not swallowed into the document id
	ciPattern       = regexp.MustCompile(`(?i)C\.?I\.?\s?(?:N°|Nro)?\s?[:.]?\s*([\d.\-]*\d)`)
	rentPattern     = regexp.MustCompile(`\$\s?([\d.]+)`)
	dueRangePattern = regexp.MustCompile(`(?i)del\s?(\d+)\s?al\s?(\d+)\s?de cada mes`)
	dueFixedPattern = regexp.MustCompile(`(?i)(\d+)\s?de cada mes`)
	cgnPattern      = regexp.MustCompile(`(?i)Contaduría|CGN`)
	insurerPattern  = regexp.MustCompile(`(?i)Porto|Sura|Mapfre|Seguro`)
	depositPattern  = regexp.MustCompile(`(?i)Depósito`)
	andaPattern     = regexp.MustCompile(`(?i)ANDA`)
)

const defaultDueDay = 5

// Propose extracts lease fields from contract text.
func Propose(text string) ProposedFields {
	fields := ProposedFields{
		TenantName:    "Por confirmar",
		Currency:      "UYU",
		DueDayOfMonth: defaultDueDay,
		GuaranteeType: GuaranteeOther,
	}

	if m := ciPattern.FindStringSubmatch(text); m != nil {
		fields.TenantDocumentID = m[1]
	}

	if m := rentPattern.FindStringSubmatch(text); m != nil {
		// Thousands separators are dots in Uruguayan notation
		raw := strings.ReplaceAll(m[1], ".", "")
		if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fields.RentAmount = &amount
		}
	}

	if m := dueRangePattern.FindStringSubmatch(text); m != nil {
		if day, err := strconv.Atoi(m[2]); err == nil {
			fields.DueDayOfMonth = day
		}
	} else if m := dueFixedPattern.FindStringSubmatch(text); m != nil {
		if day, err := strconv.Atoi(m[1]); err == nil {
			fields.DueDayOfMonth = day
		}
	}

	switch {
	case andaPattern.MatchString(text):
		fields.GuaranteeType = GuaranteeANDA
	case cgnPattern.MatchString(text):
		// A Contaduría (CGN) retention is its own arrangement; it must
		// not fall through to the insurer keywords
		fields.GuaranteeType = GuaranteeOther
	case insurerPattern.MatchString(text):
		fields.GuaranteeType = GuaranteeInsurance
	case depositPattern.MatchString(text):
		fields.GuaranteeType = GuaranteeDeposit
	}

	return fields
}
