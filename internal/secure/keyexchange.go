package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// The 2048-bit MODP group from RFC 3526 with generator 2. The group
// parameters are shared by every session and are public; only the
// exponents are secret.
const modp2048Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

var (
	prime     = mustParseHex(modp2048Hex)
	generator = big.NewInt(2)
	one       = big.NewInt(1)
)

// ErrInvalidPublicValue marks a remote public value that is not a valid
// group element: unparseable, degenerate (0, 1, p-1) or out of range.
var ErrInvalidPublicValue = errors.New("invalid public key")

const (
	// Private exponents are 256-bit, which is ample for a 2048-bit group.
	exponentSize = 32

	// SecretSize is the length of every derived shared secret.
	SecretSize = 32
)

// KeyExchange holds one peer's half of a Diffie-Hellman exchange over the
// fixed process-wide group. The private exponent is set at construction
// and never changes.
type KeyExchange struct {
	private *big.Int
	public  *big.Int
}

// NewKeyExchange generates a fresh private exponent and its public value.
func NewKeyExchange() (*KeyExchange, error) {
	buf := make([]byte, exponentSize)
	private := new(big.Int)
	for {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("generate private exponent: %w", err)
		}
		private.SetBytes(buf)
		if private.Cmp(one) > 0 {
			break
		}
	}
	return &KeyExchange{
		private: private,
		public:  new(big.Int).Exp(generator, private, prime),
	}, nil
}

// PublicKey returns the hex encoding of this peer's public value, the form
// it travels in on the wire.
func (kx *KeyExchange) PublicKey() string {
	return kx.public.Text(16)
}

// ComputeSharedSecret raises the remote public value to this peer's private
// exponent modulo the group prime and derives the fixed-size shared secret
// from the result. Degenerate remote values are rejected: 0 and 1 pin the
// secret to a constant, and p-1 has order two.
func (kx *KeyExchange) ComputeSharedSecret(remotePublicHex string) ([]byte, error) {
	remote, ok := new(big.Int).SetString(remotePublicHex, 16)
	if !ok {
		return nil, ErrInvalidPublicValue
	}
	if err := validatePublicValue(remote); err != nil {
		return nil, err
	}
	shared := new(big.Int).Exp(remote, kx.private, prime)
	return deriveSecret(shared.Bytes())
}

func validatePublicValue(v *big.Int) error {
	pMinusOne := new(big.Int).Sub(prime, one)
	if v.Cmp(one) <= 0 || v.Cmp(pMinusOne) >= 0 {
		return ErrInvalidPublicValue
	}
	return nil
}

// deriveSecret hashes the raw modular result down to SecretSize bytes so
// the secret length is independent of the exponent size.
func deriveSecret(raw []byte) ([]byte, error) {
	secret := make([]byte, SecretSize)
	kdf := hkdf.New(sha256.New, raw, nil, []byte("telecare-shared-secret-v1"))
	if _, err := io.ReadFull(kdf, secret); err != nil {
		return nil, fmt.Errorf("derive shared secret: %w", err)
	}
	return secret, nil
}

// PrimeHex and GeneratorHex expose the group parameters so the handshake
// response can hand them to clients.
func PrimeHex() string { return prime.Text(16) }

func GeneratorHex() string { return generator.Text(16) }

func mustParseHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("secure: malformed group prime constant")
	}
	return v
}
