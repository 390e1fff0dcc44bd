package ethusb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const coinsFileName = "coins.yaml"

// CoinsConfig lists the coin names the connector derives addresses for.
type CoinsConfig struct {
	Coins []CoinConfig `yaml:"coins"`
}

// CoinConfig is one accepted coin name. Matching is case-insensitive.
type CoinConfig struct {
	// Symbol is the name callers pass as "coin", e.g. "eth" or "sepolia".
	Symbol string `yaml:"symbol"`
	// Name defaults to Symbol.
	Name     string `yaml:"name"`
	Disabled bool   `yaml:"disabled"`
}

// DefaultCoins is used when no coins.yaml exists.
func DefaultCoins() CoinsConfig {
	return CoinsConfig{Coins: []CoinConfig{
		{Symbol: "eth", Name: "Ethereum"},
		{Symbol: "ethereum", Name: "Ethereum"},
		{Symbol: "teth", Name: "Ethereum Testnet"},
		{Symbol: "sepolia", Name: "Sepolia"},
		{Symbol: "holesky", Name: "Holesky"},
		{Symbol: "hoodi", Name: "Hoodi"},
	}}
}

// LoadCoins reads <configDirPath>/coins.yaml. A missing file yields
// DefaultCoins.
func LoadCoins(configDirPath string) (CoinsConfig, error) {
	coinsPath := filepath.Join(configDirPath, coinsFileName)
	f, err := os.Open(coinsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCoins(), nil
	}
	if err != nil {
		return CoinsConfig{}, err
	}
	defer f.Close()

	var cfg CoinsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return CoinsConfig{}, fmt.Errorf("decode %s: %w", coinsPath, err)
	}
	if err := cfg.verifyVariables(); err != nil {
		return CoinsConfig{}, fmt.Errorf("invalid %s: %w", coinsPath, err)
	}
	return cfg, nil
}

func (cfg *CoinsConfig) verifyVariables() error {
	for i, coin := range cfg.Coins {
		if coin.Symbol == "" {
			return fmt.Errorf("missing symbol for coin[%d]", i)
		}
		if coin.Name == "" {
			cfg.Coins[i].Name = coin.Symbol
		}
	}
	return nil
}

// Supports reports whether coin names an enabled entry.
func (cfg CoinsConfig) Supports(coin string) bool {
	for _, c := range cfg.Coins {
		if !c.Disabled && strings.EqualFold(c.Symbol, coin) {
			return true
		}
	}
	return false
}
