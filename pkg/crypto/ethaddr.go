package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// EIP55 computes the checksummed hex string of a 20-byte address.
// API responses render maker addresses through this so wallets can compare
// them byte-for-byte.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, "0x")
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// each hex char maps to 4 bits; i>>1 picks the hash byte,
		// even/odd picks the nibble
		nibble := hash[i>>1] & 0x0f
		if i%2 == 0 {
			nibble = (hash[i>>1] >> 4) & 0x0f
		}
		if nibble >= 8 {
			out[2+i] = c - ('a' - 'A')
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}
