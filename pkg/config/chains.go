package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Chain holds the staking contract addresses deployed on one chain
type Chain struct {
	ChainID       int64  `yaml:"chain_id"`
	Name          string `yaml:"name"`
	Token         string `yaml:"token"`
	Propulsor     string `yaml:"propulsor"`
	PropulsorV1   string `yaml:"propulsor_v1"`
	TokenDecimals int    `yaml:"token_decimals"`
}

// TokenAddress returns the staking token address
func (c *Chain) TokenAddress() common.Address {
	return common.HexToAddress(c.Token)
}

// PropulsorAddress returns the current staking contract address
func (c *Chain) PropulsorAddress() common.Address {
	return common.HexToAddress(c.Propulsor)
}

// PropulsorV1Address returns the legacy staking contract address, if deployed
func (c *Chain) PropulsorV1Address() (common.Address, bool) {
	if c.PropulsorV1 == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.PropulsorV1), true
}

// ChainsConfig holds all supported chains
type ChainsConfig struct {
	Chains []Chain `yaml:"chains"`

	byChainID map[int64]*Chain
}

// LoadChainsConfig loads chain configuration from a YAML file
func LoadChainsConfig(path string) (*ChainsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains config file: %w", err)
	}
	return ParseChainsConfig(data)
}

// ParseChainsConfig parses and validates chain configuration
func ParseChainsConfig(data []byte) (*ChainsConfig, error) {
	var config ChainsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse chains config: %w", err)
	}

	config.byChainID = make(map[int64]*Chain, len(config.Chains))
	for i := range config.Chains {
		chain := &config.Chains[i]
		if chain.TokenDecimals == 0 {
			chain.TokenDecimals = 18
		}
		config.byChainID[chain.ChainID] = chain
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the chains configuration
func (c *ChainsConfig) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	seen := make(map[int64]bool)
	for _, chain := range c.Chains {
		if chain.ChainID <= 0 {
			return fmt.Errorf("invalid chain_id for chain %s", chain.Name)
		}
		if chain.Name == "" {
			return fmt.Errorf("chain name is required for chain_id %d", chain.ChainID)
		}
		if !common.IsHexAddress(chain.Token) {
			return fmt.Errorf("invalid token address for chain %s", chain.Name)
		}
		if !common.IsHexAddress(chain.Propulsor) {
			return fmt.Errorf("invalid propulsor address for chain %s", chain.Name)
		}
		if chain.PropulsorV1 != "" && !common.IsHexAddress(chain.PropulsorV1) {
			return fmt.Errorf("invalid propulsor_v1 address for chain %s", chain.Name)
		}
		if chain.TokenDecimals < 0 {
			return fmt.Errorf("token_decimals must not be negative for chain %s", chain.Name)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}

	return nil
}

// GetChain returns the chain configuration for a given chain ID
func (c *ChainsConfig) GetChain(chainID int64) (*Chain, bool) {
	chain, ok := c.byChainID[chainID]
	return chain, ok
}

// GetChainIDs returns all supported chain IDs
func (c *ChainsConfig) GetChainIDs() []int64 {
	ids := make([]int64, 0, len(c.Chains))
	for _, chain := range c.Chains {
		ids = append(ids, chain.ChainID)
	}
	return ids
}

// IsSupported checks if a chain ID is supported
func (c *ChainsConfig) IsSupported(chainID int64) bool {
	_, ok := c.byChainID[chainID]
	return ok
}
