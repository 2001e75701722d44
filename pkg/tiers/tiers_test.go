package tiers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDefaultLaddersValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Referral.Validate())
	require.NoError(t, cfg.Teacher.Validate())
}

func TestReferralLadderForCount(t *testing.T) {
	ladder := DefaultReferralLadder()
	cases := map[int]string{0: "Bronze", 4: "Bronze", 5: "Silver", 14: "Silver", 15: "Gold", 30: "Platinum", 500: "Platinum"}
	for completed, want := range cases {
		require.Equal(t, want, ladder.ForCount(completed).Name, "completed=%d", completed)
	}
}

func TestReferralLadderNext(t *testing.T) {
	ladder := DefaultReferralLadder()
	next := ladder.Next(ladder[0])
	require.NotNil(t, next)
	require.Equal(t, "Silver", next.Name)
	require.Nil(t, ladder.Next(ladder[len(ladder)-1]))
}

func TestTeacherLadderAutoAboveSkipsManual(t *testing.T) {
	ladder := DefaultTeacherLadder()
	above := ladder.AutoAbove(3)
	require.Len(t, above, 1)
	require.Equal(t, "Expert", above[0].Name)
	require.Empty(t, ladder.AutoAbove(4))
}

func TestParseOverridesTeacherLadderOnly(t *testing.T) {
	cfg, err := Parse(`
[[teacher_tiers]]
level = 1
name = "Starter"
hourly_rate = "12.50"
min_hours_taught = 0
min_retention_rate = 0

[[teacher_tiers]]
level = 2
name = "Pro"
hourly_rate = 18
min_hours_taught = 40
min_retention_rate = 0.5
min_students_for_retention = 4
`)
	require.NoError(t, err)
	require.Len(t, cfg.Teacher, 2)
	require.True(t, cfg.Teacher[0].HourlyRate.Equal(decimal.RequireFromString("12.5")))
	require.True(t, cfg.Teacher[1].MinRetentionRate.Equal(decimal.RequireFromString("0.5")))
	require.Equal(t, DefaultReferralLadder()[1].Name, cfg.Referral[1].Name)
}

func TestLoadFromFileWithBenefits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[referral_tiers]]
level = 1
name = "Seed"
min_referrals = 0
initial_reward_hours = 1
ongoing_reward_rate = 1

[[referral_tiers]]
level = 2
name = "Tree"
min_referrals = 3
initial_reward_hours = 2
ongoing_reward_rate = 2

  [[referral_tiers.benefits]]
  kind = "token_discount_pct"
  amount = 15
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Referral, 2)
	require.Len(t, cfg.Referral[1].Benefits, 1)
	require.True(t, cfg.Referral[1].Benefits[0].Amount.Equal(decimal.NewFromInt(15)))
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Referral, 4)
	require.Len(t, cfg.Teacher, 5)
}

func TestValidateRejectsBadLadders(t *testing.T) {
	_, err := Parse(`
[[referral_tiers]]
level = 1
name = "Late"
min_referrals = 2
`)
	require.Error(t, err)

	_, err = Parse(`
[[teacher_tiers]]
level = 1
name = "Starter"
hourly_rate = 10
min_hours_taught = 0
min_retention_rate = 1.5
`)
	require.Error(t, err)

	_, err = Parse(`
[[referral_tiers]]
level = 1
name = "Seed"
min_referrals = 0
  [[referral_tiers.benefits]]
  kind = "free_lunch"
`)
	require.Error(t, err)
}
