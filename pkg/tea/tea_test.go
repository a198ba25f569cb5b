package tea

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustKey16(s string) [16]byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var k [16]byte
	copy(k[:], b)
	return k
}

func mustBlock8(s string) [8]byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var blk [8]byte
	copy(blk[:], b)
	return blk
}

// S1 — TEA primitive, from a captured auth-seed/response pair.
func TestCipher_S1Vector(t *testing.T) {
	key := mustKey16("1D30965A55AAF20CC66C93BF5BCD5EBD")
	c := New(key, DefaultDelta)

	in := mustBlock8("77DD37CF7FC92E98")
	want := mustBlock8("213CF4E665D2E3CB")

	got := c.Encrypt8(in)
	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("Encrypt8() = % X, want % X", got, want)
	}
}

// Property 3: encrypt/decrypt cycle under the same key returns the input.
func TestCipher_SelfInverse(t *testing.T) {
	keys := []string{
		"1D30965A55AAF20CC66C93BF5BCD5EBD",
		"00000000000000000000000000000000",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
	}
	blocks := []string{
		"77DD37CF7FC92E98",
		"0000000000000000",
		"0102030405060708",
		"FFFFFFFFFFFFFFFF",
	}

	for _, ks := range keys {
		c := New(mustKey16(ks), DefaultDelta)
		for _, bs := range blocks {
			in := mustBlock8(bs)
			enc := c.Encrypt8(in)
			dec := c.decrypt8(enc)
			if dec != in {
				t.Fatalf("key %s block %s: decrypt(encrypt(x)) = % X, want % X", ks, bs, dec, in)
			}
		}
	}
}

func TestNew_ZeroDeltaUsesDefault(t *testing.T) {
	key := mustKey16("1D30965A55AAF20CC66C93BF5BCD5EBD")
	explicit := New(key, DefaultDelta)
	implicit := New(key, 0)

	in := mustBlock8("77DD37CF7FC92E98")
	a := explicit.Encrypt8(in)
	b := implicit.Encrypt8(in)
	if a != b {
		t.Fatalf("zero delta did not default to DefaultDelta: % X != % X", a, b)
	}
}

func TestEncryptKeyBlocks_NoChaining(t *testing.T) {
	key := mustKey16("1D30965A55AAF20CC66C93BF5BCD5EBD")
	c := New(key, DefaultDelta)

	var radioKey [32]byte
	for i := range radioKey {
		radioKey[i] = byte(i)
	}

	out := c.EncryptKeyBlocks(radioKey)

	// Each block must equal independently encrypting that 8-byte slice —
	// i.e. block N's ciphertext must not depend on block N-1's output.
	for i := 0; i < 4; i++ {
		var block [8]byte
		copy(block[:], radioKey[i*8:i*8+8])
		want := c.Encrypt8(block)
		var got [8]byte
		copy(got[:], out[i*8:i*8+8])
		if got != want {
			t.Fatalf("block %d = % X, want % X (independent ECB encryption)", i, got, want)
		}
	}
}
