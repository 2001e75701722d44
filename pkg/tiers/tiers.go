// Package tiers holds the two reward ladders: referral tiers keyed on
// completed referrals and teacher tiers keyed on hours taught and retention.
package tiers

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// Benefit is a typed perk attached to a referral tier.
type Benefit struct {
	Kind   enums.BenefitKind `toml:"kind" json:"kind"`
	Amount decimal.Decimal   `toml:"amount" json:"amount,omitempty"`
	Label  string            `toml:"label" json:"label,omitempty"`
}

type ReferralTier struct {
	Level              int             `toml:"level" json:"level"`
	Name               string          `toml:"name" json:"name"`
	MinReferrals       int             `toml:"min_referrals" json:"min_referrals"`
	MaxReferrals       *int            `toml:"max_referrals" json:"max_referrals"`
	InitialRewardHours decimal.Decimal `toml:"initial_reward_hours" json:"initial_reward_hours"`
	OngoingRewardRate  decimal.Decimal `toml:"ongoing_reward_rate" json:"ongoing_reward_rate"`
	Benefits           []Benefit       `toml:"benefits" json:"benefits"`
}

type TeacherTier struct {
	Level                   int             `toml:"level" json:"level"`
	Name                    string          `toml:"name" json:"name"`
	HourlyRate              decimal.Decimal `toml:"hourly_rate" json:"hourly_rate"`
	MinHoursTaught          decimal.Decimal `toml:"min_hours_taught" json:"min_hours_taught"`
	MinRetentionRate        decimal.Decimal `toml:"min_retention_rate" json:"min_retention_rate"`
	MinStudentsForRetention int             `toml:"min_students_for_retention" json:"min_students_for_retention"`
	RequiresManualApproval  bool            `toml:"requires_manual_approval" json:"requires_manual_approval"`
}

// ReferralLadder is ordered by ascending MinReferrals.
type ReferralLadder []ReferralTier

// TeacherLadder is ordered by ascending Level.
type TeacherLadder []TeacherTier

// ForCount returns the highest tier whose floor is at or below completed.
func (l ReferralLadder) ForCount(completed int) ReferralTier {
	current := l[0]
	for _, tier := range l {
		if tier.MinReferrals <= completed {
			current = tier
		}
	}
	return current
}

// Next returns the tier after t, or nil at the top.
func (l ReferralLadder) Next(t ReferralTier) *ReferralTier {
	for i := range l {
		if l[i].Level == t.Level && i+1 < len(l) {
			next := l[i+1]
			return &next
		}
	}
	return nil
}

func (l ReferralLadder) ByLevel(level int) (ReferralTier, bool) {
	for _, tier := range l {
		if tier.Level == level {
			return tier, true
		}
	}
	return ReferralTier{}, false
}

func (l TeacherLadder) ByLevel(level int) (TeacherTier, bool) {
	for _, tier := range l {
		if tier.Level == level {
			return tier, true
		}
	}
	return TeacherTier{}, false
}

// Entry is the tier every teacher starts at.
func (l TeacherLadder) Entry() TeacherTier {
	return l[0]
}

// AutoAbove lists the non-manual tiers above level, lowest first.
func (l TeacherLadder) AutoAbove(level int) []TeacherTier {
	out := make([]TeacherTier, 0, len(l))
	for _, tier := range l {
		if tier.Level > level && !tier.RequiresManualApproval {
			out = append(out, tier)
		}
	}
	return out
}

func (l ReferralLadder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("referral ladder is empty")
	}
	if !sort.SliceIsSorted(l, func(i, j int) bool { return l[i].MinReferrals < l[j].MinReferrals }) {
		return fmt.Errorf("referral ladder must be ordered by min_referrals")
	}
	if l[0].MinReferrals != 0 {
		return fmt.Errorf("referral ladder must start at min_referrals 0")
	}
	for i, tier := range l {
		if i > 0 {
			if tier.Level <= l[i-1].Level {
				return fmt.Errorf("referral tier %q: levels must ascend", tier.Name)
			}
			if tier.MinReferrals == l[i-1].MinReferrals {
				return fmt.Errorf("referral tier %q: duplicate floor %d", tier.Name, tier.MinReferrals)
			}
		}
		if tier.Name == "" {
			return fmt.Errorf("referral tier level %d: name is required", tier.Level)
		}
		if tier.InitialRewardHours.IsNegative() || tier.OngoingRewardRate.IsNegative() {
			return fmt.Errorf("referral tier %q: rewards must not be negative", tier.Name)
		}
		if tier.MaxReferrals != nil && *tier.MaxReferrals < tier.MinReferrals {
			return fmt.Errorf("referral tier %q: max below min", tier.Name)
		}
		for _, b := range tier.Benefits {
			if !b.Kind.IsValid() {
				return fmt.Errorf("referral tier %q: unknown benefit %q", tier.Name, b.Kind)
			}
			if b.Kind.HasAmount() && !b.Amount.IsPositive() {
				return fmt.Errorf("referral tier %q: benefit %s needs a positive amount", tier.Name, b.Kind)
			}
		}
	}
	return nil
}

func (l TeacherLadder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("teacher ladder is empty")
	}
	if l[0].RequiresManualApproval || !l[0].MinHoursTaught.IsZero() {
		return fmt.Errorf("teacher ladder entry tier must be automatic with zero hours")
	}
	one := decimal.NewFromInt(1)
	for i, tier := range l {
		if i > 0 && tier.Level <= l[i-1].Level {
			return fmt.Errorf("teacher tier %q: levels must ascend", tier.Name)
		}
		if tier.Name == "" {
			return fmt.Errorf("teacher tier level %d: name is required", tier.Level)
		}
		if !tier.HourlyRate.IsPositive() {
			return fmt.Errorf("teacher tier %q: hourly_rate must be positive", tier.Name)
		}
		if tier.MinHoursTaught.IsNegative() || tier.MinStudentsForRetention < 0 {
			return fmt.Errorf("teacher tier %q: thresholds must not be negative", tier.Name)
		}
		if tier.MinRetentionRate.IsNegative() || tier.MinRetentionRate.GreaterThan(one) {
			return fmt.Errorf("teacher tier %q: min_retention_rate must be within [0,1]", tier.Name)
		}
	}
	return nil
}
