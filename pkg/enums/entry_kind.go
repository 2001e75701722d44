package enums

import "slices"

// EntryKind maps to the ledger_entry_kind enum in Postgres.
type EntryKind string

const (
	EntryKindPurchase    EntryKind = "purchase"
	EntryKindSpend       EntryKind = "spend"
	EntryKindTransferOut EntryKind = "transfer_out"
	EntryKindTransferIn  EntryKind = "transfer_in"
	EntryKindDonation    EntryKind = "donation"
	EntryKindBonus       EntryKind = "bonus"
	EntryKindRefund      EntryKind = "refund"
)

var validEntryKinds = []EntryKind{
	EntryKindPurchase,
	EntryKindSpend,
	EntryKindTransferOut,
	EntryKindTransferIn,
	EntryKindDonation,
	EntryKindBonus,
	EntryKindRefund,
}

// IsValid reports whether the value matches the canonical entry kind enum.
func (k EntryKind) IsValid() bool {
	return slices.Contains(validEntryKinds, k)
}

// IsDebit reports whether entries of this kind always carry a negative delta.
// Refunds may go either way.
func (k EntryKind) IsDebit() bool {
	switch k {
	case EntryKindSpend, EntryKindTransferOut, EntryKindDonation:
		return true
	}
	return false
}

// MaturesImmediately reports whether positive entries of this kind are
// transferable as soon as they land.
func (k EntryKind) MaturesImmediately() bool {
	switch k {
	case EntryKindBonus, EntryKindTransferIn:
		return true
	}
	return false
}

// ParseEntryKind converts raw input into EntryKind.
func ParseEntryKind(value string) (EntryKind, error) {
	return parseOneOf(validEntryKinds, value, "entry kind")
}
