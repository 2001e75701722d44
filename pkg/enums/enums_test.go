package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTripsKnownValues(t *testing.T) {
	c, err := ParseCurrency("tokens")
	require.NoError(t, err)
	require.Equal(t, CurrencyTokens, c)

	_, err = ParseCurrency("Tokens")
	require.EqualError(t, err, `invalid currency "Tokens"`)

	d, err := ParseTierDecision("reject")
	require.NoError(t, err)
	require.Equal(t, TierDecisionReject, d)

	_, err = ParseReferralStatus("expired")
	require.Error(t, err)
}

func TestActorRoleNormalizes(t *testing.T) {
	role, err := ParseActorRole(" Service ")
	require.NoError(t, err)
	require.True(t, role.IsPrivileged())
	require.False(t, ActorRoleUser.IsPrivileged())
}

func TestEarningTransitions(t *testing.T) {
	require.True(t, EarningStatusHeld.CanTransitionTo(EarningStatusCleared))
	require.True(t, EarningStatusCleared.CanTransitionTo(EarningStatusRefunded))
	require.False(t, EarningStatusProcessing.CanTransitionTo(EarningStatusRefunded))
	require.False(t, EarningStatusPaid.CanTransitionTo(EarningStatusPending))
	require.True(t, EarningStatusRefunded.IsTerminal())
}

func TestEntryKindSigns(t *testing.T) {
	require.True(t, EntryKindDonation.IsDebit())
	require.False(t, EntryKindRefund.IsDebit())
	require.True(t, EntryKindTransferIn.MaturesImmediately())
	require.False(t, EntryKindPurchase.MaturesImmediately())
	require.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	require.False(t, OutboxDLQErrorReason("gave_up").IsValid())
}
