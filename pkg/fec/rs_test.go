package fec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeClean(t *testing.T) {
	codec := NewCodec(8)

	data := []byte("hello reed solomon")
	code, err := codec.Encode(data)
	require.NoError(t, err)
	require.Len(t, code, len(data)+8)
	assert.Equal(t, data, code[:len(data)], "encoding must be systematic")

	decoded, corrected, err := codec.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
	assert.Equal(t, 0, corrected)
}

func TestCorrectsUpToHalfParity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, nsym := range []int{2, 4, 8, 16, 32} {
		codec := NewCodec(nsym)

		data := make([]byte, 40)
		rng.Read(data)
		code, err := codec.Encode(data)
		require.NoError(t, err)

		for nerr := 1; nerr <= nsym/2; nerr++ {
			corrupt := make([]byte, len(code))
			copy(corrupt, code)

			// Flip nerr distinct bytes
			positions := rng.Perm(len(code))[:nerr]
			for _, p := range positions {
				corrupt[p] ^= byte(1 + rng.Intn(255))
			}

			decoded, corrected, err := codec.Decode(corrupt)
			require.NoError(t, err, "nsym=%d nerr=%d", nsym, nerr)
			assert.Equal(t, data, decoded, "nsym=%d nerr=%d", nsym, nerr)
			assert.Equal(t, nerr, corrected, "nsym=%d nerr=%d", nsym, nerr)
		}
	}
}

func TestUncorrectableBlock(t *testing.T) {
	codec := NewCodec(4)

	data := []byte{10, 20, 30, 40, 50}
	code, err := codec.Encode(data)
	require.NoError(t, err)

	// Many more errors than the parity can handle
	corrupt := make([]byte, len(code))
	copy(corrupt, code)
	for i := 0; i < 6; i++ {
		corrupt[i] ^= 0x5a
	}

	_, _, err = codec.Decode(corrupt)
	assert.ErrorIs(t, err, ErrUncorrectable)
}

func TestDecodeLeavesInputUntouched(t *testing.T) {
	codec := NewCodec(6)

	data := []byte("payload")
	code, err := codec.Encode(data)
	require.NoError(t, err)

	code[2] ^= 0xff
	before := make([]byte, len(code))
	copy(before, code)

	decoded, corrected, err := codec.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
	assert.Equal(t, 1, corrected)
	assert.Equal(t, before, code, "decode must be side-effect free")
}

func TestLengthBlockShape(t *testing.T) {
	// The framing layer protects a single length byte with two parity bytes
	codec := NewCodec(2)

	code, err := codec.Encode([]byte{140})
	require.NoError(t, err)
	require.Len(t, code, 3)

	code[0] ^= 0x81
	decoded, corrected, err := codec.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, []byte{140}, decoded)
	assert.Equal(t, 1, corrected)
}

func TestRejectsBadSizes(t *testing.T) {
	codec := NewCodec(4)

	_, err := codec.Encode(nil)
	assert.Error(t, err)

	_, err = codec.Encode(make([]byte, 252))
	assert.Error(t, err)

	_, _, err = codec.Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}
