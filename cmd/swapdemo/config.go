// config.go - Configuration management for the swap demo
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	// Swap scenario
	SellToken   string `json:"sell_token"`
	SellAmount  uint64 `json:"sell_amount"`
	BuyToken    string `json:"buy_token"`
	BuyAmount   uint64 `json:"buy_amount"`
	OfferAmount uint64 `json:"offer_amount"`

	// File paths
	LedgerPath string `json:"ledger_path"`
	KeyDir     string `json:"key_dir"`

	// Logging
	LogLevel string `json:"log_level"`
	Pretty   bool   `json:"pretty"`
}

// DefaultConfig returns the default configuration: Alice sells 2 BTC
// asking 10 ETH, the solver fills 5 ETH and returns 1 BTC.
func DefaultConfig() *Config {
	return &Config{
		SellToken:   "btc",
		SellAmount:  2,
		BuyToken:    "eth",
		BuyAmount:   10,
		OfferAmount: 5,
		LedgerPath:  "swapdemo.db",
		KeyDir:      "keys",
		LogLevel:    "info",
		Pretty:      true,
	}
}

// Validate rejects scenarios the intent predicate would refuse anyway.
func (c *Config) Validate() error {
	if c.SellAmount == 0 || c.BuyAmount == 0 {
		return fmt.Errorf("sell and buy amounts must be positive")
	}
	if c.OfferAmount == 0 || c.OfferAmount > c.BuyAmount {
		return fmt.Errorf("offer amount must be in 1..%d", c.BuyAmount)
	}
	if (c.OfferAmount*c.SellAmount)%c.BuyAmount != 0 {
		return fmt.Errorf("offer %d does not divide the terms evenly", c.OfferAmount)
	}
	return nil
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig writes the configuration to disk
func SaveConfig(config *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(config)
}
