package custodian

import (
	"bytes"
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
)

// LocalSigner plays the custodian in-process with a single taproot key. It is
// used in development and tests.
type LocalSigner struct {
	logger           ulogger.Logger
	key              *btcec.PrivateKey
	address          string
	retentionAddress string
	pkScript         []byte

	mu         sync.RWMutex
	components Components
}

func NewLocalSigner(logger ulogger.Logger, tSettings *settings.Settings) (*LocalSigner, error) {
	initPrometheusMetrics()

	cs := tSettings.Custodian
	params := tSettings.ChainCfgParams

	var key *btcec.PrivateKey

	if cs.PrivateKeyWIF != "" {
		wif, err := btcutil.DecodeWIF(cs.PrivateKeyWIF)
		if err != nil {
			return nil, errors.NewConfigurationError("invalid custodian_privateKey", err)
		}

		key = wif.PrivKey
	} else {
		if params.Params.Net == wire.MainNet {
			return nil, errors.NewConfigurationError("custodian_privateKey is required on %s", params.Params.Name)
		}

		seed := sha256.Sum256([]byte(tSettings.ClientName + "/custodian"))
		key, _ = btcec.PrivKeyFromBytes(seed[:])

		logger.Warnf("[Custodian] no custodian_privateKey set, using a key derived from the client name")
	}

	tweaked := txscript.ComputeTaprootKeyNoScript(key.PubKey())

	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(tweaked), params.Params)
	if err != nil {
		return nil, errors.NewConfigurationError("could not derive custodian address", err)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.NewConfigurationError("could not derive custodian script", err)
	}

	address := addr.EncodeAddress()

	if cs.Address != "" && cs.Address != address {
		return nil, errors.NewConfigurationError("custodian_address %s does not match key address %s", cs.Address, address)
	}

	retention := cs.RetentionAddress
	if retention == "" {
		retention = address
	}

	components, err := parseComponents(cs.Circulating, cs.Balance)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid custodian exchange rate components", err)
	}

	return &LocalSigner{
		logger:           logger.New("custodian"),
		key:              key,
		address:          address,
		retentionAddress: retention,
		pkScript:         pkScript,
		components:       *components,
	}, nil
}

func (s *LocalSigner) Address() string {
	return s.address
}

func (s *LocalSigner) RetentionAddress() string {
	return s.retentionAddress
}

func (s *LocalSigner) PubKey() *btcec.PublicKey {
	return s.key.PubKey()
}

func (s *LocalSigner) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "OK", nil
}

// SetComponents replaces the exchange rate components reported by the signer.
func (s *LocalSigner) SetComponents(circulating, balance string) error {
	c, err := parseComponents(circulating, balance)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.components = *c
	s.mu.Unlock()

	return nil
}

func (s *LocalSigner) ExchangeRateComponents(_ context.Context) (*Components, error) {
	prometheusCustodianCalls.WithLabelValues("exchange_rate_components").Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Components{
		Circulating: s.components.Circulating.Clone(),
		Balance:     s.components.Balance.Clone(),
	}, nil
}

// CoSign requires every foreign input to be finalized already, then signs the
// inputs spending the custodian's own outputs.
func (s *LocalSigner) CoSign(_ context.Context, op model.Operation, psbtB64 string) (string, error) {
	prometheusCustodianCalls.WithLabelValues("cosign").Inc()

	if !op.Valid() {
		return "", errors.NewInvalidArgumentError("unknown operation %q", op)
	}

	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		prometheusCustodianErrors.WithLabelValues("cosign").Inc()
		return "", errors.NewServiceError("Validation failed: invalid psbt", err)
	}

	owned := 0

	for i, in := range p.Inputs {
		if in.WitnessUtxo == nil {
			prometheusCustodianErrors.WithLabelValues("cosign").Inc()
			return "", errors.NewServiceError("Validation failed: input %d has no witness utxo", i)
		}

		if bytes.Equal(in.WitnessUtxo.PkScript, s.pkScript) {
			owned++
			continue
		}

		if in.FinalScriptWitness == nil && in.FinalScriptSig == nil {
			prometheusCustodianErrors.WithLabelValues("cosign").Inc()
			return "", errors.NewServiceError("Validation failed: input %d is not signed", i)
		}
	}

	if owned == 0 && op != model.OperationUnstake {
		prometheusCustodianErrors.WithLabelValues("cosign").Inc()
		return "", errors.NewServiceError("Validation failed: no custodian inputs")
	}

	if _, err = SignKeySpend(p, s.key, s.pkScript); err != nil {
		prometheusCustodianErrors.WithLabelValues("cosign").Inc()
		return "", errors.NewServiceError("signing failed", err)
	}

	s.logger.Debugf("[Custodian] co-signed %s %s (%d inputs)", op, p.UnsignedTx.TxHash(), owned)

	return p.B64Encode()
}
