package models

import (
	"fmt"
	"time"
)

// TransactionType is the direction of a wallet movement
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// WalletTransaction records a movement on a user's wallet balance
type WalletTransaction struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	Amount      Money           `json:"amount" db:"amount_cents"`
	Type        TransactionType `json:"type" db:"type"`
	Description string          `json:"description" db:"description"`
	ReferenceID string          `json:"reference_id" db:"reference_id"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// RefundReference is the unique wallet reference of a complaint refund
func RefundReference(complaintID int64) string {
	return fmt.Sprintf("refund-complaint-%d", complaintID)
}
