package wallet

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bitfsorg/libkaspa-go/txscript"
)

// NetworkParams defines the parameters of a Kaspa network.
type NetworkParams struct {
	Name          string `json:"name"`
	AddressPrefix string `json:"address_prefix"`
	APIURL        string `json:"api_url"`
}

// Predefined networks.
var (
	MainNet = NetworkParams{
		Name:          "mainnet",
		AddressPrefix: txscript.PrefixMainnet,
		APIURL:        "https://api.kaspa.org",
	}

	TestNet10 = NetworkParams{
		Name:          "testnet-10",
		AddressPrefix: txscript.PrefixTestnet,
		APIURL:        "https://api-tn10.kaspa.org",
	}

	TestNet11 = NetworkParams{
		Name:          "testnet-11",
		AddressPrefix: txscript.PrefixTestnet,
		APIURL:        "https://api-tn11.kaspa.org",
	}
)

// predefined maps network names to their params.
var predefined = map[string]*NetworkParams{
	"mainnet":    &MainNet,
	"testnet-10": &TestNet10,
	"testnet-11": &TestNet11,
}

// GetNetwork returns a predefined network by name.
// If the name is not predefined, it returns ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkParams, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// LoadCustomNetwork loads NetworkParams from a JSON file, e.g. for a devnet.
func LoadCustomNetwork(path string) (*NetworkParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to read network config: %w", err)
	}

	var params NetworkParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("wallet: failed to parse network config: %w", err)
	}

	if params.Name == "" {
		return nil, fmt.Errorf("wallet: network config must have a name")
	}
	if _, err := txscript.NewAddress(params.AddressPrefix, txscript.KindPubKey, make([]byte, txscript.SchnorrPubKeyLen)); err != nil {
		return nil, fmt.Errorf("wallet: network config: %w", err)
	}

	return &params, nil
}
