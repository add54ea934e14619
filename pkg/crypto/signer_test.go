package crypto

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	// 32-byte private key, uncompressed 04-prefixed public key
	if got := len(signer.PrivateKeyHex()); got != 64 {
		t.Errorf("private key hex length = %d, want 64", got)
	}
	if got := len(signer.PublicKeyHex()); got != 130 {
		t.Errorf("public key hex length = %d, want 130", got)
	}
}

func TestFromPrivateKeyHexRoundTrip(t *testing.T) {
	signer1, _ := GenerateKey()

	signer2, err := FromPrivateKeyHex(signer1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}

	if signer2.Address() != signer1.Address() {
		t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
	}
	if signer2.PrivateKeyHex() != signer1.PrivateKeyHex() {
		t.Error("private key mismatch after reload")
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, _ := GenerateKey()

	message := []byte("cancel order-123")
	signature, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}

	hash := eth_crypto.Keccak256Hash(message).Bytes()
	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}

	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, hash, signature) {
		t.Error("signature should not verify with wrong address")
	}
}

func TestRecoverAddress(t *testing.T) {
	signer, _ := GenerateKey()
	message := []byte("maker identity check")

	signature, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	hash := eth_crypto.Keccak256Hash(message).Bytes()
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}

	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestSignatureRSVRoundTrip(t *testing.T) {
	signer, _ := GenerateKey()
	signature, _ := signer.SignMessage([]byte("rsv split"))

	r, s, v, err := SignatureToRSV(signature)
	if err != nil {
		t.Fatalf("failed to split signature: %v", err)
	}

	if !bytes.Equal(RSVToSignature(r, s, v), signature) {
		t.Error("signature does not survive RSV round trip")
	}
}

func TestGenerateNonce(t *testing.T) {
	nonce1, err := GenerateNonce()
	if err != nil {
		t.Fatalf("failed to generate nonce: %v", err)
	}
	nonce2, err := GenerateNonce()
	if err != nil {
		t.Fatalf("failed to generate second nonce: %v", err)
	}

	// Statistically distinct
	if nonce1 == nonce2 {
		t.Error("generated identical nonces")
	}
}

func TestVerifySignatureAcceptsWalletRecoveryID(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("wallet signed payload"))

	signature, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Wallets (eth_signTypedData_v4, Connex/VeWorld) return V as 27/28 while
	// crypto.Sign produces 0/1. Both forms must verify.
	wallet := append([]byte(nil), signature...)
	wallet[64] += 27

	if !VerifySignature(signer.Address(), hash, wallet) {
		t.Error("V=27/28 signature rejected")
	}
	recovered, err := RecoverAddress(hash, wallet)
	if err != nil {
		t.Fatalf("recover with wallet V: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	// The caller's slice is never rewritten in place.
	if wallet[64] != signature[64]+27 {
		t.Error("normalization mutated the input signature")
	}
}

func TestVerifySignatureRejectsMalformedInput(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("payload"))

	if VerifySignature(signer.Address(), hash, []byte{1, 2, 3}) {
		t.Error("short signature should not verify")
	}
	if VerifySignature(signer.Address(), []byte("short"), make([]byte, 65)) {
		t.Error("short hash should not verify")
	}
}

func TestEIP55Checksum(t *testing.T) {
	// Known vector from the EIP-55 reference list.
	addr := common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	want := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	if got := EIP55(addr.Bytes()); got != want {
		t.Errorf("EIP55 = %s, want %s", got, want)
	}
	if got := addr.Hex(); got != want {
		t.Errorf("go-ethereum checksum = %s, want %s", got, want)
	}
}
