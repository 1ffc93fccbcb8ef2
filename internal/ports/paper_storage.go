package ports

import "github.com/alejandrodnm/spikebot/internal/domain"

// LedgerStorage persists the paper ledger state.
type LedgerStorage interface {
	// LoadLedger returns the saved state. found=false when nothing was saved yet.
	LoadLedger() (state domain.LedgerState, found bool, err error)

	// SaveLedger atomically replaces the saved state.
	SaveLedger(state domain.LedgerState) error
}
