// Package keys owns each role's signing identity: a secp256k1 private key
// and the account address derived from it. The pair is stable for the
// process lifetime; rotation is out of scope.
package keys

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	derrors "credrelay/pkg/domain-errors"
)

type KeyPair struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// Load parses a hex-encoded private key (0x prefix optional).
func Load(hexKey string) (*KeyPair, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	priv, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "invalid private key")
	}
	return fromKey(priv), nil
}

// Generate creates a fresh keypair. Used for development wiring when no key
// is configured.
func Generate() (*KeyPair, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "key generation failed")
	}
	return fromKey(priv), nil
}

// LoadOrGenerate loads hexKey when non-empty, otherwise generates.
func LoadOrGenerate(hexKey string) (*KeyPair, error) {
	if hexKey == "" {
		return Generate()
	}
	return Load(hexKey)
}

func fromKey(priv *ecdsa.PrivateKey) *KeyPair {
	return &KeyPair{
		privateKey: priv,
		address:    crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address returns the public account address.
func (k *KeyPair) Address() common.Address { return k.address }

// ID returns the address as the party's wire identifier.
func (k *KeyPair) ID() string { return k.address.Hex() }

// SignDigest produces a hex-encoded recoverable signature over a 32-byte
// digest.
func (k *KeyPair) SignDigest(digest []byte) (string, error) {
	sig, err := crypto.Sign(digest, k.privateKey)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "signing failed")
	}
	return hexutil.Encode(sig), nil
}
