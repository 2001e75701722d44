package enums

import "slices"

// EarningStatus tracks a teacher earning through settlement.
type EarningStatus string

const (
	EarningStatusPending    EarningStatus = "pending"
	EarningStatusHeld       EarningStatus = "held"
	EarningStatusCleared    EarningStatus = "cleared"
	EarningStatusProcessing EarningStatus = "processing"
	EarningStatusPaid       EarningStatus = "paid"
	EarningStatusRefunded   EarningStatus = "refunded"
)

var validEarningStatuses = []EarningStatus{
	EarningStatusPending,
	EarningStatusHeld,
	EarningStatusCleared,
	EarningStatusProcessing,
	EarningStatusPaid,
	EarningStatusRefunded,
}

var earningTransitions = map[EarningStatus][]EarningStatus{
	EarningStatusPending:    {EarningStatusHeld, EarningStatusRefunded},
	EarningStatusHeld:       {EarningStatusCleared, EarningStatusRefunded},
	EarningStatusCleared:    {EarningStatusProcessing, EarningStatusRefunded},
	EarningStatusProcessing: {EarningStatusPaid},
}

func (s EarningStatus) String() string {
	return string(s)
}

func (s EarningStatus) IsValid() bool {
	return slices.Contains(validEarningStatuses, s)
}

// IsTerminal reports whether no further transition is possible.
func (s EarningStatus) IsTerminal() bool {
	return s == EarningStatusPaid || s == EarningStatusRefunded
}

// CanTransitionTo reports whether next is a legal forward step from s.
func (s EarningStatus) CanTransitionTo(next EarningStatus) bool {
	return slices.Contains(earningTransitions[s], next)
}

// Refundable lists the statuses a refund may override.
func RefundableEarningStatuses() []EarningStatus {
	return []EarningStatus{EarningStatusPending, EarningStatusHeld, EarningStatusCleared}
}

func ParseEarningStatus(value string) (EarningStatus, error) {
	return parseOneOf(validEarningStatuses, value, "earning status")
}
