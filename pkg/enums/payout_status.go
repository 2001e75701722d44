package enums

import "slices"

type PayoutStatus string

const (
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusProcessing,
	PayoutStatusCompleted,
}

func (s PayoutStatus) IsValid() bool {
	return slices.Contains(validPayoutStatuses, s)
}

func ParsePayoutStatus(value string) (PayoutStatus, error) {
	return parseOneOf(validPayoutStatuses, value, "payout status")
}
