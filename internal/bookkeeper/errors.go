package bookkeeper

import "errors"

var (
	// ErrInsufficientBalance is returned when a debit or lock exceeds
	// the account's available funds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnsupportedAsset is returned when no balance row exists for
	// the user/asset pair.
	ErrUnsupportedAsset = errors.New("unsupported asset")

	// ErrInsufficientLocked is returned when an unlock or locked-fill
	// exceeds the account's locked funds.
	ErrInsufficientLocked = errors.New("insufficient locked balance")
)
