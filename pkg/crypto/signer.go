package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a secp256k1 key pair used to sign orders and cancellations.
// The derived Ethereum-style address is the maker identity the engine sees.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKeyECDSA,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key.
// Exactly 64 hex chars, no 0x prefix; HexToECDSA rejects prefixed input.
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKeyECDSA,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// Address returns the address derived from the public key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix).
// WARNING: keep this secret, never log it.
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// PublicKeyHex returns the uncompressed public key as hex string.
func (s *Signer) PublicKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSAPub(s.publicKey))
}

// Sign signs a 32-byte digest and returns a [R || S || V] signature (65 bytes).
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	return signature, nil
}

// SignMessage signs an arbitrary byte message by hashing it with Keccak256 first.
func (s *Signer) SignMessage(message []byte) ([]byte, error) {
	hash := crypto.Keccak256Hash(message)
	return s.Sign(hash.Bytes())
}

// normalizeRecoveryID maps the wallet convention V = 27/28 to the 0/1 form
// Ecrecover expects. Returns a copy when it has to rewrite V.
func normalizeRecoveryID(signature []byte) []byte {
	if len(signature) != 65 || signature[64] < 27 {
		return signature
	}
	sig := append([]byte(nil), signature...)
	sig[64] -= 27
	return sig
}

// VerifySignature reports whether signature over hash was produced by address.
func VerifySignature(address common.Address, hash []byte, signature []byte) bool {
	if len(signature) != 65 || len(hash) != 32 {
		return false
	}

	publicKeyBytes, err := crypto.Ecrecover(hash, normalizeRecoveryID(signature))
	if err != nil {
		return false
	}

	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*publicKey) == address
}

// RecoverAddress recovers the signing address from a 32-byte digest and a
// 65-byte [R || S || V] signature. V may be 0/1 or the wallet form 27/28.
func RecoverAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	publicKeyBytes, err := crypto.Ecrecover(hash, normalizeRecoveryID(signature))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey), nil
}

// SignatureToRSV splits a 65-byte signature into R, S, V components.
// Useful for on-chain verification calls and debugging.
func SignatureToRSV(signature []byte) (r, s *big.Int, v uint8, err error) {
	if len(signature) != 65 {
		return nil, nil, 0, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	r = new(big.Int).SetBytes(signature[:32])
	s = new(big.Int).SetBytes(signature[32:64])
	v = signature[64]

	return r, s, v, nil
}

// RSVToSignature combines R, S, V into a 65-byte signature.
func RSVToSignature(r, s *big.Int, v uint8) []byte {
	signature := make([]byte, 65)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:64])
	signature[64] = v
	return signature
}

// GenerateNonce returns a cryptographically random nonce for order signing.
// The engine does not track nonces; replay protection lives in the settlement
// contract.
func GenerateNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to generate nonce: %w", err)
	}
	var nonce uint64
	for i, c := range b {
		nonce |= uint64(c) << (8 * i)
	}
	return nonce, nil
}
