package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"noor", "ledger-events", "projects/noor/topics/ledger-events"},
		{"noor", " tier-events ", "projects/noor/topics/tier-events"},
		{"noor", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "ledger-events", ""},
		{"noor", "", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TopicResourceName(tc.project, tc.name), tc.name)
	}
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := TopicNames(config.PubSubConfig{
		LedgerTopic:   "events",
		TiersTopic:    "events",
		EarningsTopic: "earnings-events",
	})
	require.Equal(t, []string{"events", "earnings-events"}, names)

	require.Empty(t, TopicNames(config.PubSubConfig{}))
}

func TestUnconfiguredClientHasNoPublishers(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("ledger-events"))
	require.Nil(t, c.OrderedPublisher("ledger-events"))
	require.Error(t, c.Ping(t.Context()))
	require.NoError(t, c.Close())
}
