package dts

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the size in bytes of a chain digest (SHA-256 output size).
const DigestSize = 32

// Digest is a fixed-size hash value. Digests are compared byte-for-byte
// and have no identity beyond their bytes.
type Digest [DigestSize]byte

// Hex renders the digest as 64 lowercase hexadecimal characters.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses exactly 64 lowercase hexadecimal characters.
// Uppercase hex, wrong lengths, and non-hex characters are rejected.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("digest must be %d hex chars, got %d", DigestSize*2, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return d, fmt.Errorf("invalid digest character %q at offset %d", c, i)
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	copy(d[:], raw)
	return d, nil
}

// initState is the SHA-256 initial hash value (FIPS 180-4 §5.3.3).
var initState = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// k holds the 64 SHA-256 round constants (FIPS 180-4 §4.2.2).
var k = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25c, 0x59f111f1, 0x923f82e4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d8d, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66b, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// Hasher computes a SHA-256 digest incrementally. Input is buffered in
// 64-byte blocks, so memory use is constant regardless of total input
// length. A Hasher must not be used after Sum unless Reset first.
//
// The implementation is deliberately self-contained: the chain's
// verification contract depends on this exact digest derivation, so it
// does not delegate to an external hash package.
type Hasher struct {
	state  [8]uint32
	buf    [64]byte
	bufLen int
	length uint64 // total message bytes written
}

// NewHasher returns a Hasher in the SHA-256 initial state.
func NewHasher() *Hasher {
	h := &Hasher{}
	h.Reset()
	return h
}

// Reset returns the Hasher to its initial state.
func (h *Hasher) Reset() {
	h.state = initState
	h.bufLen = 0
	h.length = 0
}

// Write absorbs p into the hash state. It may be called any number of
// times before Sum and never fails.
func (h *Hasher) Write(p []byte) (int, error) {
	n := len(p)
	h.length += uint64(n)
	for len(p) > 0 {
		c := copy(h.buf[h.bufLen:], p)
		h.bufLen += c
		p = p[c:]
		if h.bufLen == 64 {
			h.block(h.buf[:])
			h.bufLen = 0
		}
	}
	return n, nil
}

// Sum finalizes the hash and returns the digest. Finalization appends
// the standard 0x80 marker, zero padding, and the 64-bit big-endian
// bit length trailer. The Hasher is consumed; Reset before reuse.
func (h *Hasher) Sum() Digest {
	bitLen := h.length * 8

	// Pad to 56 mod 64 so the 8-byte length trailer fills the block.
	var pad [72]byte
	pad[0] = 0x80
	padLen := 56 - h.bufLen
	if padLen <= 0 {
		padLen += 64
	}
	_, _ = h.Write(pad[:padLen])

	var trailer [8]byte
	trailer[0] = byte(bitLen >> 56)
	trailer[1] = byte(bitLen >> 48)
	trailer[2] = byte(bitLen >> 40)
	trailer[3] = byte(bitLen >> 32)
	trailer[4] = byte(bitLen >> 24)
	trailer[5] = byte(bitLen >> 16)
	trailer[6] = byte(bitLen >> 8)
	trailer[7] = byte(bitLen)
	_, _ = h.Write(trailer[:])

	var d Digest
	for i, v := range h.state {
		d[i*4+0] = byte(v >> 24)
		d[i*4+1] = byte(v >> 16)
		d[i*4+2] = byte(v >> 8)
		d[i*4+3] = byte(v)
	}
	return d
}

// block runs the SHA-256 compression function over one 64-byte block.
func (h *Hasher) block(p []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = uint32(p[i*4])<<24 | uint32(p[i*4+1])<<16 |
			uint32(p[i*4+2])<<8 | uint32(p[i*4+3])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr(w[i-15], 7) ^ rotr(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr(w[i-2], 17) ^ rotr(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d := h.state[0], h.state[1], h.state[2], h.state[3]
	e, f, g, hh := h.state[4], h.state[5], h.state[6], h.state[7]

	for i := 0; i < 64; i++ {
		s1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		ch := (e & f) ^ (^e & g)
		t1 := hh + s1 + ch + k[i] + w[i]
		s0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := s0 + maj

		hh = g
		g = f
		f = e
		e = d + t1
		d = c
		c = b
		b = a
		a = t1 + t2
	}

	h.state[0] += a
	h.state[1] += b
	h.state[2] += c
	h.state[3] += d
	h.state[4] += e
	h.state[5] += f
	h.state[6] += g
	h.state[7] += hh
}

func rotr(v uint32, n uint) uint32 {
	return (v >> n) | (v << (32 - n))
}

// Sum256 computes the SHA-256 digest of data in one call. It is a total
// function over any byte sequence, including the empty one.
func Sum256(data []byte) Digest {
	h := NewHasher()
	_, _ = h.Write(data)
	return h.Sum()
}
