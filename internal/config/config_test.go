package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Hygiene.RequiredProperties) != 6 {
		t.Fatalf("required properties = %d", len(cfg.Hygiene.RequiredProperties))
	}
	if cfg.Aging.NoActivityDays != 14 {
		t.Fatalf("no_activity_days = %d", cfg.Aging.NoActivityDays)
	}
	if cfg.FlagThreshold() != 1 {
		t.Fatalf("default flag threshold = %d", cfg.FlagThreshold())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no required properties", func(c *Config) { c.Hygiene.RequiredProperties = nil }, "required_properties"},
		{"empty property name", func(c *Config) { c.Hygiene.RequiredProperties[0].Name = "" }, "empty property name"},
		{"unknown flag policy", func(c *Config) { c.Hygiene.FlagPolicy = "strict" }, "flag_policy"},
		{"negative no-activity days", func(c *Config) { c.Aging.NoActivityDays = -1 }, "no_activity_days"},
		{"duplicate aging stage", func(c *Config) {
			c.Aging.Stages = append(c.Aging.Stages, c.Aging.Stages[0])
		}, "duplicate stage_id"},
		{"zero threshold", func(c *Config) { c.Aging.Stages[0].ThresholdDays = 0 }, "threshold_days"},
		{"weight above one", func(c *Config) { c.Forecast.StageWeights[0].Weight = 1.5 }, "in [0,1]"},
		{"duplicate bucket", func(c *Config) {
			c.Forecast.StageWeights = append(c.Forecast.StageWeights, c.Forecast.StageWeights[0])
		}, "duplicate bucket"},
		{"bucket without keywords", func(c *Config) { c.Forecast.StageWeights[0].Keywords = nil }, "no keywords"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFromYAMLRejectsGarbage(t *testing.T) {
	if _, err := FromYAML([]byte("hygiene: [not a map]")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Portal.TokenEnv != "DEALSCOPE_CRM_TOKEN" {
		t.Fatalf("token env = %q", cfg.Portal.TokenEnv)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config")
	}
	cfg, err := LoadOptional(t.TempDir())
	if err != nil || cfg != nil {
		t.Fatalf("optional load = %v, %v", cfg, err)
	}
}

func TestEntryPrefixDefaults(t *testing.T) {
	var cfg Config
	v2, legacy := cfg.EntryPrefixes()
	if v2 != "hs_v2_date_entered_" || legacy != "hs_date_entered_" {
		t.Fatalf("prefixes = %q %q", v2, legacy)
	}
}

func TestPath(t *testing.T) {
	if got := Path(""); got != filepath.Join(".", "dealscope.yml") {
		t.Fatalf("path = %q", got)
	}
}
