package tiers

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config bundles both ladders.
type Config struct {
	Referral ReferralLadder `toml:"referral_tiers"`
	Teacher  TeacherLadder  `toml:"teacher_tiers"`
}

// Default returns the built-in ladders.
func Default() Config {
	return Config{Referral: DefaultReferralLadder(), Teacher: DefaultTeacherLadder()}
}

// Load reads ladders from a TOML file. An empty path yields the defaults;
// a file may override either ladder and leave the other at its default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var file Config
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Config{}, fmt.Errorf("decode tiers file %q: %w", path, err)
	}
	return merge(cfg, file)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var file Config
	if _, err := toml.Decode(data, &file); err != nil {
		return Config{}, fmt.Errorf("decode tiers: %w", err)
	}
	return merge(Default(), file)
}

func merge(base, override Config) (Config, error) {
	if len(override.Referral) > 0 {
		base.Referral = override.Referral
	}
	if len(override.Teacher) > 0 {
		base.Teacher = override.Teacher
	}
	if err := base.Referral.Validate(); err != nil {
		return Config{}, err
	}
	if err := base.Teacher.Validate(); err != nil {
		return Config{}, err
	}
	return base, nil
}
