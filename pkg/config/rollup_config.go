// Copyright 2025 Alpen Labs
//
// Rollup Domain Configuration Loader
//
// This file provides configuration loading for the rollup node's
// consensus-kernel parameters from YAML files with environment
// variable substitution.

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"gopkg.in/yaml.v3"

	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

func toHeight(h uint64) rtypes.Height { return rtypes.Height(h) }

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// RollupConfig holds all rollup-node-specific configuration.
type RollupConfig struct {
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	Genesis    GenesisSettings    `yaml:"genesis"`
	Store      StoreSettings      `yaml:"store"`
	Admin      AdminSettings      `yaml:"admin"`
	Prover     ProverSettings     `yaml:"prover"`
	ForkChoice ForkChoiceSettings `yaml:"fork_choice"`
}

// GenesisSettings fixes the L1 anchor point and signer rule the chain
// was launched with.
type GenesisSettings struct {
	L1Height         uint64 `yaml:"l1_height"`
	L1ReorgSafeDepth uint64 `yaml:"l1_reorg_safe_depth"`
	// SequencerPubKeyHex is the 33-byte compressed secp256k1 public key
	// of the lone block-proposing sequencer, hex-encoded. Empty means
	// the chain runs with an Unchecked credential rule (test networks
	// only).
	SequencerPubKeyHex string `yaml:"sequencer_pubkey"`
}

// StoreSettings configures the persistence layer's retry policy.
type StoreSettings struct {
	DataDir          string   `yaml:"data_dir"`
	RetryMaxAttempts int      `yaml:"retry_max_attempts"`
	RetryBaseBackoff Duration `yaml:"retry_base_backoff"`
	RetryExponential bool     `yaml:"retry_exponential"`
}

// AdminSettings configures the confirmation depth governance updates
// must clear before activating.
type AdminSettings struct {
	ConfirmationDepth uint64 `yaml:"confirmation_depth"`
}

// ProverSettings lists the configured zkVM backends and retry policy.
type ProverSettings struct {
	Backends []string `yaml:"backends"`
	MaxRetry int      `yaml:"max_retry"`
}

// ForkChoiceSettings bounds the depth of reorgs the node will accept.
type ForkChoiceSettings struct {
	LimitDepth int `yaml:"limit_depth"`
}

// LoadRollupConfig loads the rollup configuration from a YAML file,
// substituting ${VAR_NAME} environment references first.
func LoadRollupConfig(path string) (*RollupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg RollupConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *RollupConfig) applyDefaults() {
	if c.Store.RetryMaxAttempts == 0 {
		c.Store.RetryMaxAttempts = 5
	}
	if c.Store.RetryBaseBackoff == 0 {
		c.Store.RetryBaseBackoff = Duration(10_000_000) // 10ms
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "./data"
	}
	if c.Prover.MaxRetry == 0 {
		c.Prover.MaxRetry = 3
	}
	if len(c.Prover.Backends) == 0 {
		c.Prover.Backends = []string{"native"}
	}
	if c.ForkChoice.LimitDepth == 0 {
		c.ForkChoice.LimitDepth = 2000
	}
}

// CredRule builds the credrule.CredRule this config's genesis settings
// describe, parsing the configured sequencer public key if present.
func (g GenesisSettings) CredRule() (credrule.CredRule, error) {
	if g.SequencerPubKeyHex == "" {
		return credrule.Unchecked(), nil
	}
	raw, err := hex.DecodeString(g.SequencerPubKeyHex)
	if err != nil {
		return credrule.CredRule{}, fmt.Errorf("config: invalid sequencer_pubkey hex: %w", err)
	}
	pubkey, err := btcec.ParsePubKey(raw)
	if err != nil {
		return credrule.CredRule{}, fmt.Errorf("config: invalid sequencer_pubkey: %w", err)
	}
	return credrule.SchnorrKey(pubkey), nil
}

// RollupParams builds the csm.RollupParams this configuration describes.
func (c *RollupConfig) RollupParams() (csm.RollupParams, error) {
	rule, err := c.Genesis.CredRule()
	if err != nil {
		return csm.RollupParams{}, err
	}
	return csm.RollupParams{
		GenesisL1Height:  toHeight(c.Genesis.L1Height),
		L1ReorgSafeDepth: toHeight(c.Genesis.L1ReorgSafeDepth),
		CredRule:         rule,
	}, nil
}
