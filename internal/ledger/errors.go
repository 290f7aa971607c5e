package ledger

import "errors"

var (
	// ErrAccessDenied is returned for functions outside the identity's allow-list.
	// Such calls are logged as security events and never reach the ledger.
	ErrAccessDenied = errors.New("ledger access denied")
	// ErrLedgerUnavailable means no usable connection; callers may retry later.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrLedgerTimeout means the bounded call timeout elapsed; callers may retry.
	ErrLedgerTimeout = errors.New("ledger timeout")
	// ErrLedgerRejected means the ledger evaluated and refused the transaction.
	ErrLedgerRejected = errors.New("ledger rejected transaction")
	// ErrIdentityNotFound is returned by the wallet for an unknown label.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Retryable reports whether err is a transient ledger condition.
func Retryable(err error) bool {
	return errors.Is(err, ErrLedgerTimeout) || errors.Is(err, ErrLedgerUnavailable)
}
