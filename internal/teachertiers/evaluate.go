package teachertiers

import (
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/tiers"
)

// Metrics is the input to tier placement.
type Metrics struct {
	HoursTaught       decimal.Decimal `json:"hours_taught"`
	UniqueStudents    int             `json:"unique_students"`
	ReturningStudents int             `json:"returning_students"`
}

// RetentionRate is returning/unique, or nil with no students.
func (m Metrics) RetentionRate() *decimal.Decimal {
	if m.UniqueStudents <= 0 {
		return nil
	}
	rate := decimal.NewFromInt(int64(m.ReturningStudents)).
		Div(decimal.NewFromInt(int64(m.UniqueStudents))).
		Round(4)
	return &rate
}

// Evaluation is a teacher's standing on the compensation ladder.
type Evaluation struct {
	Tier              tiers.TeacherTier  `json:"tier"`
	NextAutoTier      *tiers.TeacherTier `json:"next_auto_tier"`
	HoursTaught       decimal.Decimal    `json:"hours_taught"`
	HoursNeeded       decimal.Decimal    `json:"hours_needed"`
	UniqueStudents    int                `json:"unique_students"`
	ReturningStudents int                `json:"returning_students"`
	StudentsNeeded    int                `json:"students_needed"`
	RetentionRate     *decimal.Decimal   `json:"retention_rate"`
	RetentionNeeded   *decimal.Decimal   `json:"retention_needed"`
	Eligible          bool               `json:"eligible_for_promotion"`
}

// Qualifies reports whether m meets every automatic gate of tier. The
// retention gate only opens once the student floor is met; below it the
// teacher does not qualify yet.
func Qualifies(tier tiers.TeacherTier, m Metrics) bool {
	if m.HoursTaught.LessThan(tier.MinHoursTaught) {
		return false
	}
	if m.UniqueStudents < tier.MinStudentsForRetention {
		return false
	}
	if !tier.MinRetentionRate.IsPositive() {
		return true
	}
	rate := m.RetentionRate()
	return rate != nil && rate.GreaterThanOrEqual(tier.MinRetentionRate)
}

// PromotionTarget returns the highest automatic tier above currentLevel that
// m qualifies for, or nil.
func PromotionTarget(ladder tiers.TeacherLadder, currentLevel int, m Metrics) *tiers.TeacherTier {
	var target *tiers.TeacherTier
	for _, tier := range ladder.AutoAbove(currentLevel) {
		if Qualifies(tier, m) {
			t := tier
			target = &t
		}
	}
	return target
}

// Evaluate places a teacher holding currentLevel with metrics m.
//
// NextAutoTier is the lowest automatic tier above the current one whose hour
// floor is still ahead. StudentsNeeded and RetentionNeeded describe the
// lowest automatic tier whose hours are already met but whose other gates are
// not; when nothing is blocked that way they describe NextAutoTier. Retention
// is only reported once the first student floor above the current tier is met.
func Evaluate(ladder tiers.TeacherLadder, currentLevel int, m Metrics) Evaluation {
	tier, ok := ladder.ByLevel(currentLevel)
	if !ok {
		tier = ladder.Entry()
	}
	eval := Evaluation{
		Tier:              tier,
		HoursTaught:       m.HoursTaught,
		HoursNeeded:       decimal.Zero,
		UniqueStudents:    m.UniqueStudents,
		ReturningStudents: m.ReturningStudents,
	}

	above := ladder.AutoAbove(tier.Level)
	var blocked *tiers.TeacherTier
	floor := tier.MinStudentsForRetention
	floorSet := false
	for i := range above {
		candidate := above[i]
		if !floorSet && candidate.MinStudentsForRetention > 0 {
			floor, floorSet = candidate.MinStudentsForRetention, true
		}
		if candidate.MinHoursTaught.GreaterThan(m.HoursTaught) {
			if eval.NextAutoTier == nil {
				eval.NextAutoTier = &candidate
				eval.HoursNeeded = candidate.MinHoursTaught.Sub(m.HoursTaught)
			}
			continue
		}
		if blocked == nil && !Qualifies(candidate, m) {
			blocked = &candidate
		}
	}

	eval.Eligible = PromotionTarget(ladder, tier.Level, m) != nil

	if m.UniqueStudents > 0 && m.UniqueStudents >= floor {
		eval.RetentionRate = m.RetentionRate()
	}

	gate := blocked
	if gate == nil {
		gate = eval.NextAutoTier
	}
	if gate == nil {
		return eval
	}
	if gap := gate.MinStudentsForRetention - m.UniqueStudents; gap > 0 {
		eval.StudentsNeeded = gap
	}
	if gate.MinRetentionRate.IsPositive() {
		rate := m.RetentionRate()
		if rate == nil || rate.LessThan(gate.MinRetentionRate) {
			needed := gate.MinRetentionRate
			eval.RetentionNeeded = &needed
		}
	}
	return eval
}
