package ledger

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConnectionProfile describes the network topology a gateway connects to.
type ConnectionProfile struct {
	Name          string            `mapstructure:"name"`
	Channel       string            `mapstructure:"channel"`
	Contracts     map[string]string `mapstructure:"contracts"`
	Organizations map[string]string `mapstructure:"organizations"`
	Peers         []Peer            `mapstructure:"peers"`
}

type Peer struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
	Org  string `mapstructure:"org"`
}

// LoadConnectionProfile reads a YAML, JSON or TOML profile; the format follows the extension.
func LoadConnectionProfile(path string) (ConnectionProfile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return ConnectionProfile{}, fmt.Errorf("read connection profile %s: %w", path, err)
	}
	var p ConnectionProfile
	if err := v.Unmarshal(&p); err != nil {
		return ConnectionProfile{}, fmt.Errorf("decode connection profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return ConnectionProfile{}, err
	}
	return p, nil
}

func (p ConnectionProfile) Validate() error {
	if strings.TrimSpace(p.Channel) == "" {
		return fmt.Errorf("connection profile: channel is required")
	}
	if p.ContractName(ContractExport) == "" {
		return fmt.Errorf("connection profile: contracts.%s is required", ContractExport)
	}
	if len(p.Peers) == 0 {
		return fmt.Errorf("connection profile: at least one peer is required")
	}
	for _, peer := range p.Peers {
		if strings.TrimSpace(peer.URL) == "" {
			return fmt.Errorf("connection profile: peer %q has no url", peer.Name)
		}
	}
	return nil
}

// ContractName resolves a logical contract name to its deployed name.
// Viper lower-cases map keys, so lookups are case-insensitive.
func (p ConnectionProfile) ContractName(logical string) string {
	return lookupFold(p.Contracts, logical)
}

func (p ConnectionProfile) MSPID(org string) string {
	return lookupFold(p.Organizations, org)
}

// HostsPeer reports whether org runs at least one peer of the network.
func (p ConnectionProfile) HostsPeer(org string) bool {
	for _, peer := range p.Peers {
		if strings.EqualFold(peer.Org, org) {
			return true
		}
	}
	return false
}

// Endpoint picks the org's own peer when it hosts one, else the first peer.
func (p ConnectionProfile) Endpoint(org string) Peer {
	for _, peer := range p.Peers {
		if strings.EqualFold(peer.Org, org) {
			return peer
		}
	}
	return p.Peers[0]
}

func lookupFold(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
