package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindDeposit  TransactionKind = "deposit"
)

// Transaction is an immutable ledger record. SenderID is empty for deposits.
type Transaction struct {
	ID           string          `json:"id"`
	Kind         TransactionKind `json:"kind"`
	SenderID     string          `json:"sender_id,omitempty"`
	ReceiverID   string          `json:"receiver_id"`
	SenderName   string          `json:"sender,omitempty"`
	ReceiverName string          `json:"receiver"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}
