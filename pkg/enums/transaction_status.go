package enums

import "fmt"

// TransactionStatus maps to universal_transactions.transaction_status.
type TransactionStatus string

const (
	TransactionStatusDraft  TransactionStatus = "draft"
	TransactionStatusPosted TransactionStatus = "posted"
	TransactionStatusVoided TransactionStatus = "voided"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusDraft,
	TransactionStatusPosted,
	TransactionStatusVoided,
}

// IsValid reports whether the value matches a known transaction status.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
