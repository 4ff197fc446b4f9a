package adapter

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/sha3"
)

// Signer is the connected wallet that authorizes network operations
type Signer interface {
	// Address returns the EIP-55 checksummed wallet address
	Address() string
	// SignMessage returns an EIP-191 personal_sign signature (r || s || v)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

type localWallet struct {
	key     *secp256k1.PrivateKey
	address string
}

// NewLocalWallet creates a Signer from a hex encoded secp256k1 private key
func NewLocalWallet(hexKey string) (Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, goerr.Wrap(err, "wallet key is not hex")
	}
	if len(raw) != 32 {
		return nil, goerr.New("wallet key must be 32 bytes", goerr.V("length", len(raw)))
	}

	key := secp256k1.PrivKeyFromBytes(raw)
	return &localWallet{
		key:     key,
		address: PubKeyToAddress(key.PubKey()),
	}, nil
}

func (w *localWallet) Address() string {
	return w.address
}

func (w *localWallet) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "signing cancelled")
	}

	// compact form is v || r || s with v = 27 + recovery id
	compact := ecdsa.SignCompact(w.key, PersonalMessageHash(message), false)
	sig := make([]byte, 0, 65)
	sig = append(sig, compact[1:]...)
	sig = append(sig, compact[0])
	return sig, nil
}

// PersonalMessageHash returns keccak256("\x19Ethereum Signed Message:\n" + len + message)
func PersonalMessageHash(message []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	return keccak256([]byte(prefix), message)
}

// RecoverAddress returns the address that produced an r || s || v signature
func RecoverAddress(message, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", goerr.New("signature must be 65 bytes", goerr.V("length", len(sig)))
	}
	compact := make([]byte, 0, 65)
	compact = append(compact, sig[64])
	compact = append(compact, sig[:64]...)

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash(message))
	if err != nil {
		return "", goerr.Wrap(err, "failed to recover signer")
	}
	return PubKeyToAddress(pub), nil
}

// PubKeyToAddress derives the checksummed account address of a public key
func PubKeyToAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	return checksumAddress(hex.EncodeToString(digest[12:]))
}

// checksumAddress applies EIP-55 mixed-case encoding to a lowercase hex address
func checksumAddress(lowerHex string) string {
	hash := hex.EncodeToString(keccak256([]byte(lowerHex)))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range lowerHex {
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			b.WriteRune(c - 'a' + 'A')
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// SignatureHex formats a signature the way the Lens API expects it
func SignatureHex(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

func keccak256(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}
