package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a positive value with at most two decimal places")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownReceiver   = errors.New("receiver not found")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
	ErrStorageFailure    = errors.New("ledger storage failure")
)

func storageFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// unitError keeps business rejections from a unit of work as they are and
// reports everything else as a storage failure.
func unitError(op string, err error) error {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, ErrInvalidAmount):
		return ErrInvalidAmount
	default:
		return storageFailure(op, err)
	}
}

// Reason returns a stable label for err, used in metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrUnknownReceiver):
		return "unknown_receiver"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	default:
		return "storage_failure"
	}
}
