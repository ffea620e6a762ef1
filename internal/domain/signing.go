package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signatures are 65-byte recoverable secp256k1 signatures ([R || S || V])
// over a 32-byte digest, hex-encoded on the wire. Identity is established by
// recovering the signer's public key and deriving its account address; no
// key distribution is needed beyond the address itself.

// RecoverSigner recovers the account address that produced sigHex over
// digest. digest must be exactly 32 bytes.
func RecoverSigner(digest []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SameIdentifier compares two account identifiers case-insensitively. EIP-55
// checksum casing varies between producers, so byte equality is wrong here.
func SameIdentifier(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NormalizeHash parses a hex digest into a fixed-width 32-byte hash,
// stripping any 0x prefix and left-zero-padding short digests, as the
// registry boundary requires.
func NormalizeHash(hexDigest string) common.Hash {
	return common.HexToHash(hexDigest)
}
