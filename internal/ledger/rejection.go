package ledger

import (
	"fmt"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// Rejection reasons reported by Open and Close.
const (
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonDuplicatePosition = "duplicate_position"
	ReasonDailyExposure     = "daily_exposure_limit"
	ReasonExposureLimit     = "exposure_limit"
	ReasonNotAccepting      = "not_accepting_orders"
	ReasonInvalidOrder      = "invalid_price"
	ReasonInvalidExit       = "invalid_exit_price"
)

// RejectionError is a refused open or close. It is a normal outcome, not a
// failure: the ledger is untouched and the cycle reports it and carries on.
type RejectionError struct {
	Op       string // "open" or "close"; empty means open
	MarketID string
	Reason   string
	Detail   string
}

func (e *RejectionError) Error() string {
	op := e.Op
	if op == "" {
		op = "open"
	}
	return fmt.Sprintf("%s %s rejected: %s (%s)", op, e.MarketID, e.Reason, e.Detail)
}

// Rejection converts the error into the value journaled with the cycle.
func (e *RejectionError) Rejection() domain.Rejection {
	return domain.Rejection{MarketID: e.MarketID, Reason: e.Reason, Detail: e.Detail}
}
