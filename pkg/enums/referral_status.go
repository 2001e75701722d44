package enums

// ReferralStatus maps to the referral_status enum in Postgres.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

func (s ReferralStatus) IsValid() bool {
	return s == ReferralStatusPending || s == ReferralStatusCompleted
}

func ParseReferralStatus(value string) (ReferralStatus, error) {
	return parseOneOf([]ReferralStatus{ReferralStatusPending, ReferralStatusCompleted}, value, "referral status")
}
