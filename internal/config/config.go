package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Flag policies for the hygiene summary.
const (
	FlagPolicyAny      = "any"      // missing >= 1 property
	FlagPolicyCritical = "critical" // missing >= 3 properties
)

// Config models dealscope.yml. All analysis tables are plain data handed to
// the engine; nothing here reaches the network.
type Config struct {
	Portal struct {
		BaseURL    string `yaml:"base_url"`
		TokenEnv   string `yaml:"token_env"`
		PipelineID string `yaml:"pipeline_id"`
	} `yaml:"portal"`

	Hygiene struct {
		// ZeroAmountMissing controls whether a numeric zero amount counts
		// as a missing property. Forecasting has its own fixed policy.
		ZeroAmountMissing  bool               `yaml:"zero_amount_missing"`
		FlagPolicy         string             `yaml:"flag_policy"`
		RequiredProperties []RequiredProperty `yaml:"required_properties"`
	} `yaml:"hygiene"`

	Aging struct {
		NoActivityDays    int              `yaml:"no_activity_days"`
		EntryPrefixV2     string           `yaml:"entry_prefix_v2"`
		EntryPrefixLegacy string           `yaml:"entry_prefix_legacy"`
		Stages            []StageAgingRule `yaml:"stages"`
	} `yaml:"aging"`

	Forecast struct {
		StageWeights []StageWeight `yaml:"stage_weights"`
	} `yaml:"forecast"`

	Narration struct {
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
		TokenEnv string `yaml:"token_env"`
	} `yaml:"narration"`
}

// RequiredProperty defines one field a complete deal must carry. Order is
// significant for display, not for scoring.
type RequiredProperty struct {
	Label string `yaml:"label"`
	Name  string `yaml:"name"`
}

// StageAgingRule sets the residency threshold and flag message for one
// monitored stage. Deals in stages without a rule are skipped.
type StageAgingRule struct {
	StageID       string `yaml:"stage_id"`
	Label         string `yaml:"label"`
	ThresholdDays int    `yaml:"threshold_days"`
	Flag          string `yaml:"flag"`
}

// StageWeight maps stage labels onto a forecast bucket by keyword match.
// Each entry of Keywords is an alternative; every token inside an
// alternative must appear (case-insensitively) in the stage label. Bucket
// output order follows the order of this table.
type StageWeight struct {
	Bucket   string     `yaml:"bucket"`
	Weight   float64    `yaml:"weight"`
	Keywords [][]string `yaml:"keywords"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ds config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate fails fast on configuration mistakes; these indicate a config
// error, not bad CRM data, so a run must not start with them.
func (c *Config) Validate() error {
	if len(c.Hygiene.RequiredProperties) == 0 {
		return fmt.Errorf("config.hygiene.required_properties must not be empty")
	}
	for i, rp := range c.Hygiene.RequiredProperties {
		if rp.Name == "" {
			return fmt.Errorf("config.hygiene.required_properties[%d] has empty property name", i)
		}
		if rp.Label == "" {
			return fmt.Errorf("required property %s has empty label", rp.Name)
		}
	}
	switch c.Hygiene.FlagPolicy {
	case "", FlagPolicyAny, FlagPolicyCritical:
	default:
		return fmt.Errorf("config.hygiene.flag_policy must be %q or %q, got %q", FlagPolicyAny, FlagPolicyCritical, c.Hygiene.FlagPolicy)
	}
	if c.Aging.NoActivityDays < 0 {
		return fmt.Errorf("config.aging.no_activity_days must not be negative")
	}
	seen := map[string]bool{}
	for _, rule := range c.Aging.Stages {
		if rule.StageID == "" {
			return fmt.Errorf("config.aging.stages contains empty stage_id")
		}
		if seen[rule.StageID] {
			return fmt.Errorf("config.aging.stages has duplicate stage_id %s", rule.StageID)
		}
		seen[rule.StageID] = true
		if rule.ThresholdDays <= 0 {
			return fmt.Errorf("aging rule for stage %s must have threshold_days > 0", rule.StageID)
		}
		if rule.Flag == "" {
			return fmt.Errorf("aging rule for stage %s has empty flag message", rule.StageID)
		}
	}
	buckets := map[string]bool{}
	for _, sw := range c.Forecast.StageWeights {
		if sw.Bucket == "" {
			return fmt.Errorf("config.forecast.stage_weights contains empty bucket label")
		}
		if buckets[sw.Bucket] {
			return fmt.Errorf("config.forecast.stage_weights has duplicate bucket %s", sw.Bucket)
		}
		buckets[sw.Bucket] = true
		if sw.Weight < 0 || sw.Weight > 1 {
			return fmt.Errorf("stage weight for bucket %s must be in [0,1], got %v", sw.Bucket, sw.Weight)
		}
		if len(sw.Keywords) == 0 {
			return fmt.Errorf("stage weight bucket %s has no keywords", sw.Bucket)
		}
		for _, alt := range sw.Keywords {
			if len(alt) == 0 {
				return fmt.Errorf("stage weight bucket %s has an empty keyword alternative", sw.Bucket)
			}
		}
	}
	return nil
}

// FlagThreshold returns the missing-property count at which a deal is
// flagged under the configured policy.
func (c *Config) FlagThreshold() int {
	if c.Hygiene.FlagPolicy == FlagPolicyCritical {
		return 3
	}
	return 1
}

// EntryPrefixes returns the versioned and legacy stage-entry property
// prefixes, with portal defaults.
func (c *Config) EntryPrefixes() (v2, legacy string) {
	v2, legacy = c.Aging.EntryPrefixV2, c.Aging.EntryPrefixLegacy
	if v2 == "" {
		v2 = "hs_v2_date_entered_"
	}
	if legacy == "" {
		legacy = "hs_date_entered_"
	}
	return v2, legacy
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dealscope.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `portal:
  base_url: https://api.hubapi.com
  token_env: DEALSCOPE_CRM_TOKEN
  pipeline_id: default

hygiene:
  zero_amount_missing: false
  flag_policy: any
  required_properties:
    - label: Deal Name
      name: dealname
    - label: Amount
      name: amount
    - label: Close Date
      name: closedate
    - label: Stage
      name: dealstage
    - label: Owner
      name: hubspot_owner_id
    - label: Next Step
      name: hs_next_step

aging:
  no_activity_days: 14
  entry_prefix_v2: hs_v2_date_entered_
  entry_prefix_legacy: hs_date_entered_
  stages:
    - stage_id: qualifiedtobuy
      label: SQL
      threshold_days: 14
      flag: "Stalled in SQL"
    - stage_id: presentationscheduled
      label: Demo Completed
      threshold_days: 21
      flag: "Stalled in Demo Completed"
    - stage_id: decisionmakerboughtin
      label: Proposal
      threshold_days: 30
      flag: "Stalled in Proposal"

forecast:
  stage_weights:
    - bucket: SQL
      weight: 0.25
      keywords:
        - [sql]
    - bucket: Demo Completed
      weight: 0.5
      keywords:
        - [demo, complet]
    - bucket: Proposal
      weight: 0.8
      keywords:
        - [proposal]

narration:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  token_env: DEALSCOPE_AI_TOKEN
`
