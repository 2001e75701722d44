package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// Maturity is an amount that becomes transferable at a known instant.
type Maturity struct {
	Amount    decimal.Decimal `json:"amount"`
	MaturesAt time.Time       `json:"matures_at"`
}

// MaturityReport splits an account's balance into what may move between
// users right now and what is still inside its maturity window.
type MaturityReport struct {
	Balance       decimal.Decimal `json:"balance"`
	Transferable  decimal.Decimal `json:"transferable"`
	Immature      decimal.Decimal `json:"immature"`
	NextMaturesAt *time.Time      `json:"next_matures_at,omitempty"`
	Upcoming      []Maturity      `json:"upcoming"`
}

type lot struct {
	seq       int64
	maturesAt time.Time
	remaining decimal.Decimal
}

// TransferableBalance replays one account's entries and returns the amount
// held in lots that are mature at now. Entries must belong to a single
// (user, currency) account.
func TransferableBalance(entries []models.LedgerEntry, now time.Time) decimal.Decimal {
	return Replay(entries, now).Transferable
}

// Replay rebuilds the remaining lots of an account oldest-first. A credit
// opens a lot maturing at its MaturesAt (or immediately when unset). A debit
// drains lots that were already mature when it was posted, oldest first, and
// only then reaches into immature lots.
func Replay(entries []models.LedgerEntry, now time.Time) MaturityReport {
	ordered := make([]models.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	lots := make([]*lot, 0, len(ordered))
	for _, entry := range ordered {
		switch {
		case entry.Delta.IsPositive():
			maturesAt := entry.CreatedAt
			if entry.MaturesAt != nil {
				maturesAt = *entry.MaturesAt
			}
			lots = append(lots, &lot{seq: entry.Sequence, maturesAt: maturesAt, remaining: entry.Delta})
			sortLots(lots)
		case entry.Delta.IsNegative():
			consume(lots, entry.Delta.Neg(), entry.CreatedAt)
		}
	}

	report := MaturityReport{
		Balance:      decimal.Zero,
		Transferable: decimal.Zero,
		Immature:     decimal.Zero,
		Upcoming:     []Maturity{},
	}
	for _, l := range lots {
		if !l.remaining.IsPositive() {
			continue
		}
		report.Balance = report.Balance.Add(l.remaining)
		if !l.maturesAt.After(now) {
			report.Transferable = report.Transferable.Add(l.remaining)
			continue
		}
		report.Immature = report.Immature.Add(l.remaining)
		if n := len(report.Upcoming); n > 0 && report.Upcoming[n-1].MaturesAt.Equal(l.maturesAt) {
			report.Upcoming[n-1].Amount = report.Upcoming[n-1].Amount.Add(l.remaining)
			continue
		}
		report.Upcoming = append(report.Upcoming, Maturity{Amount: l.remaining, MaturesAt: l.maturesAt})
	}
	if len(report.Upcoming) > 0 {
		next := report.Upcoming[0].MaturesAt
		report.NextMaturesAt = &next
	}
	return report
}

func sortLots(lots []*lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].maturesAt.Equal(lots[j].maturesAt) {
			return lots[i].seq < lots[j].seq
		}
		return lots[i].maturesAt.Before(lots[j].maturesAt)
	})
}

func consume(lots []*lot, amount decimal.Decimal, at time.Time) {
	need := amount
	// mature lots first, then whatever is left
	for _, matureOnly := range []bool{true, false} {
		for _, l := range lots {
			if !need.IsPositive() {
				return
			}
			if !l.remaining.IsPositive() {
				continue
			}
			if matureOnly && l.maturesAt.After(at) {
				continue
			}
			take := decimal.Min(need, l.remaining)
			l.remaining = l.remaining.Sub(take)
			need = need.Sub(take)
		}
	}
}
