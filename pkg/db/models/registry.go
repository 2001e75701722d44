package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&User{},
		&Balance{},
		&LedgerEntry{},
		&CreditTransfer{},
		&SadaqahPool{},
		&SadaqahDonation{},
		&SadaqahAllocation{},
		&ReferralAccount{},
		&Referral{},
		&TeacherStats{},
		&LessonCompletion{},
		&TeacherTierApplication{},
		&TeacherTierHistory{},
		&TeacherPayout{},
		&TeacherEarning{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
