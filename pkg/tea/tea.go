// Package tea implements the Motorola TEA-variant block cipher used by XNL
// authentication (§4.B) and radio-key encryption during programming-mode
// security unlock (§4.E).
package tea

import "encoding/binary"

// DefaultDelta is the Motorola-custom round constant. It is deliberately not
// the standard TEA delta 0x9E3779B9; using the standard constant produces
// ciphertext the radio will reject.
const DefaultDelta uint32 = 0x790AB771

// Rounds is the fixed number of Feistel rounds applied per 8-byte block.
const Rounds = 32

// Cipher holds a derived key schedule for one TEA key, ready to encrypt
// 8-byte blocks.
type Cipher struct {
	k     [4]uint32
	delta uint32
}

// New derives a Cipher from a 16-byte key, interpreted as four little-endian
// 32-bit words regardless of host endianness, and the given round delta. A
// delta of 0 uses DefaultDelta.
func New(key [16]byte, delta uint32) *Cipher {
	if delta == 0 {
		delta = DefaultDelta
	}
	var k [4]uint32
	for i := 0; i < 4; i++ {
		k[i] = binary.LittleEndian.Uint32(key[i*4 : i*4+4])
	}
	return &Cipher{k: k, delta: delta}
}

// Encrypt8 encrypts exactly one 8-byte block.
func (c *Cipher) Encrypt8(in [8]byte) [8]byte {
	v0 := binary.BigEndian.Uint32(in[0:4])
	v1 := binary.BigEndian.Uint32(in[4:8])

	var sum uint32
	for i := 0; i < Rounds; i++ {
		sum += c.delta
		v0 += ((v1 << 4) + c.k[0]) ^ (v1 + sum) ^ ((v1 >> 5) + c.k[1])
		v1 += ((v0 << 4) + c.k[2]) ^ (v0 + sum) ^ ((v0 >> 5) + c.k[3])
	}

	var out [8]byte
	binary.BigEndian.PutUint32(out[0:4], v0)
	binary.BigEndian.PutUint32(out[4:8], v1)
	return out
}

// decrypt8 inverts Encrypt8 under the same key. The running protocol never
// calls this — the radio is always the party decrypting — so it is kept
// unexported and only exercised by the self-inverse test.
func (c *Cipher) decrypt8(in [8]byte) [8]byte {
	v0 := binary.BigEndian.Uint32(in[0:4])
	v1 := binary.BigEndian.Uint32(in[4:8])

	sum := c.delta * Rounds
	for i := 0; i < Rounds; i++ {
		v1 -= ((v0 << 4) + c.k[2]) ^ (v0 + sum) ^ ((v0 >> 5) + c.k[3])
		v0 -= ((v1 << 4) + c.k[0]) ^ (v1 + sum) ^ ((v1 >> 5) + c.k[1])
		sum -= c.delta
	}

	var out [8]byte
	binary.BigEndian.PutUint32(out[0:4], v0)
	binary.BigEndian.PutUint32(out[4:8], v1)
	return out
}

// EncryptKeyBlocks encrypts a 32-byte radio key as four independent 8-byte
// ECB blocks, with no chaining between blocks, per §4.E step 5.
func (c *Cipher) EncryptKeyBlocks(key [32]byte) [32]byte {
	var out [32]byte
	for i := 0; i < 4; i++ {
		var block [8]byte
		copy(block[:], key[i*8:i*8+8])
		enc := c.Encrypt8(block)
		copy(out[i*8:i*8+8], enc[:])
	}
	return out
}
