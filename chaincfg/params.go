package chaincfg

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/runestake/settlement/errors"
)

// Params couples the btcd network parameters with the address prefixes the
// settlement engine accepts as counterparties.
type Params struct {
	*btcchaincfg.Params
	AddressPrefixes []string
}

var (
	MainNetParams = Params{
		Params:          &btcchaincfg.MainNetParams,
		AddressPrefixes: []string{"bc1p", "bc1q", "1", "3"},
	}

	TestNet3Params = Params{
		Params:          &btcchaincfg.TestNet3Params,
		AddressPrefixes: []string{"tb1p", "tb1q", "m", "n", "2"},
	}

	SigNetParams = Params{
		Params:          &btcchaincfg.SigNetParams,
		AddressPrefixes: []string{"tb1p", "tb1q", "m", "n", "2"},
	}

	RegressionNetParams = Params{
		Params:          &btcchaincfg.RegressionNetParams,
		AddressPrefixes: []string{"bcrt1p", "bcrt1q", "m", "n", "2"},
	}
)

func GetChainParams(network string) (*Params, error) {
	switch network {
	case "mainnet":
		return &MainNetParams, nil
	case "testnet":
		return &TestNet3Params, nil
	case "signet":
		return &SigNetParams, nil
	case "regtest":
		return &RegressionNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %s", network)
	}
}

// HasRecognizedPrefix reports whether the address starts with one of the network's prefixes.
func (p *Params) HasRecognizedPrefix(address string) bool {
	for _, prefix := range p.AddressPrefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}

	return false
}

// DecodeAddress decodes and network-checks an address.
func (p *Params) DecodeAddress(address string) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(address, p.Params)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid address %s", address, err)
	}

	if !addr.IsForNet(p.Params) {
		return nil, errors.NewInvalidArgumentError("address %s is not for %s", address, p.Name)
	}

	return addr, nil
}

// PkScript returns the output script paying to address.
func (p *Params) PkScript(address string) ([]byte, error) {
	addr, err := p.DecodeAddress(address)
	if err != nil {
		return nil, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("cannot build script for %s", address, err)
	}

	return script, nil
}

// AddressOf extracts the single address an output script pays to, or "" for
// non-standard and OP_RETURN scripts.
func (p *Params) AddressOf(pkScript []byte) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, p.Params)
	if err != nil || len(addrs) != 1 {
		return ""
	}

	return addrs[0].EncodeAddress()
}
