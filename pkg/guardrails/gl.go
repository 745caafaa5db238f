package guardrails

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	SideDebit  = "DR"
	SideCredit = "CR"

	// DefaultCurrency is used for GL lines that name no currency.
	DefaultCurrency = "DOC"

	glMarker = ".GL."
)

// BalanceTolerance is the absolute per-currency difference allowed between debits and credits.
var BalanceTolerance = decimal.New(1, -2)

// Line is the guardrail view of a transaction line.
type Line struct {
	SmartCode               string
	LineAmount              decimal.Decimal
	Side                    string
	TransactionCurrencyCode string
	Currency                string
}

// IsGL reports whether the line is general-ledger relevant.
func (l Line) IsGL() bool {
	return strings.Contains(l.SmartCode, glMarker)
}

// CurrencyCode resolves the currency the line is balanced under.
func (l Line) CurrencyCode() string {
	if l.TransactionCurrencyCode != "" {
		return l.TransactionCurrencyCode
	}
	if l.Currency != "" {
		return l.Currency
	}
	return DefaultCurrency
}

type sideTotals struct {
	debit  decimal.Decimal
	credit decimal.Decimal
}

// ValidateGLBalance enforces double entry across the GL lines of a transaction.
// Structural line failures stop the scan before any balance is computed.
func ValidateGLBalance(lines []Line) error {
	totals := map[string]*sideTotals{}
	var order []string

	for i, line := range lines {
		if !line.IsGL() {
			continue
		}
		if line.Side != SideDebit && line.Side != SideCredit {
			v := newViolation(ReasonGLSideRequired, "GL line side must be DR or CR")
			v.LineIndex = i
			return v
		}
		if line.LineAmount.IsNegative() {
			v := newViolation(ReasonNegativeGLAmount, "GL line amount must not be negative")
			v.LineIndex = i
			return v
		}

		currency := line.CurrencyCode()
		t, ok := totals[currency]
		if !ok {
			t = &sideTotals{}
			totals[currency] = t
			order = append(order, currency)
		}
		if line.Side == SideDebit {
			t.debit = t.debit.Add(line.LineAmount)
		} else {
			t.credit = t.credit.Add(line.LineAmount)
		}
	}

	for _, currency := range order {
		t := totals[currency]
		diff := t.debit.Sub(t.credit).Abs()
		if diff.GreaterThan(BalanceTolerance) {
			v := newViolation(ReasonGLNotBalanced, "GL lines are not balanced for "+currency)
			v.Imbalance = &Imbalance{
				Currency:   currency,
				Debit:      t.debit,
				Credit:     t.credit,
				Difference: diff,
			}
			return v
		}
	}
	return nil
}
