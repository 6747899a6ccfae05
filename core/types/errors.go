package types

import "errors"

// ErrInsufficientFunds is the ledger's single failure mode: a transfer that
// would overdraw the sender. It is shared between the state manager and the
// engines so balance prechecks and failed transfers surface the same kind.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")
