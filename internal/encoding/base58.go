// Package encoding implements the Base58 rendering used for Solana public keys.
package encoding

// base58Alphabet is the Bitcoin alphabet: 0, O, I and l are excluded.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// EncodeBase58 renders a 32-byte public key as Base58 text. The key is
// treated as a big-endian unsigned integer; each leading zero byte becomes
// a leading '1' so an all-zero key encodes to 32 '1' characters.
func EncodeBase58(key [32]byte) string {
	leadingZeros := 0
	for _, b := range key {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	// Repeated division of the byte string by 58, least-significant digit
	// first. Working on a copy keeps the conversion allocation-light.
	buf := make([]byte, 32)
	copy(buf, key[:])

	digits := make([]byte, 0, 44)
	start := leadingZeros
	for start < len(buf) {
		rem := 0
		for i := start; i < len(buf); i++ {
			acc := rem*256 + int(buf[i])
			buf[i] = byte(acc / 58)
			rem = acc % 58
		}
		digits = append(digits, base58Alphabet[rem])
		for start < len(buf) && buf[start] == 0 {
			start++
		}
	}

	out := make([]byte, 0, leadingZeros+len(digits))
	for i := 0; i < leadingZeros; i++ {
		out = append(out, '1')
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, digits[i])
	}
	return string(out)
}
