package fec

import (
	"errors"
	"fmt"
)

// ErrUncorrectable is returned when a block contains more errors than the
// parity can repair.
var ErrUncorrectable = errors.New("fec: uncorrectable block")

// Codec is a systematic byte-oriented Reed-Solomon encoder/decoder with a
// fixed number of parity bytes. A Codec is immutable after creation and safe
// for concurrent use.
type Codec struct {
	nsym int
	gen  []byte
}

// NewCodec creates a codec producing nsym parity bytes. The codec corrects up
// to nsym/2 byte errors per block. Block size (data + parity) must stay
// within 255 bytes.
func NewCodec(nsym int) *Codec {
	initGFTables()

	if nsym < 1 || nsym > 254 {
		panic(fmt.Sprintf("fec: invalid parity size %d", nsym))
	}

	// g(x) = (x - a^0)(x - a^1)...(x - a^(nsym-1))
	gen := []byte{1}
	for i := 0; i < nsym; i++ {
		gen = polyMul(gen, []byte{1, gfPow(2, i)})
	}

	return &Codec{nsym: nsym, gen: gen}
}

// ParityBytes returns the number of parity bytes appended by Encode.
func (c *Codec) ParityBytes() int {
	return c.nsym
}

// Encode returns data followed by nsym parity bytes.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)+c.nsym > 255 {
		return nil, fmt.Errorf("fec: bad data size %d for %d parity bytes", len(data), c.nsym)
	}

	// Synthetic division of data * x^nsym by the generator; the remainder is
	// the parity.
	out := make([]byte, len(data)+c.nsym)
	copy(out, data)
	for i := 0; i < len(data); i++ {
		coef := out[i]
		if coef == 0 {
			continue
		}
		for j := 1; j < len(c.gen); j++ {
			out[i+j] ^= gfMul(c.gen[j], coef)
		}
	}
	copy(out, data)
	return out, nil
}

// Decode corrects code in a copy and returns the data portion together with
// the number of corrected bytes. The input slice is left untouched.
func (c *Codec) Decode(code []byte) ([]byte, int, error) {
	if len(code) <= c.nsym || len(code) > 255 {
		return nil, 0, fmt.Errorf("fec: bad code size %d for %d parity bytes", len(code), c.nsym)
	}

	buf := make([]byte, len(code))
	copy(buf, code)

	synd := c.syndromes(buf)
	if allZero(synd) {
		return buf[:len(buf)-c.nsym], 0, nil
	}

	errLoc, err := findErrorLocator(synd, c.nsym)
	if err != nil {
		return nil, 0, err
	}

	coefPos, err := findErrors(errLoc, len(buf))
	if err != nil {
		return nil, 0, err
	}

	if err := correctErrata(buf, synd, coefPos); err != nil {
		return nil, 0, err
	}

	// The corrected word must be a codeword, otherwise the error pattern
	// exceeded the parity budget and the "correction" is bogus.
	if !allZero(c.syndromes(buf)) {
		return nil, 0, ErrUncorrectable
	}

	return buf[:len(buf)-c.nsym], len(coefPos), nil
}

// syndromes evaluates the received polynomial at the generator roots
func (c *Codec) syndromes(code []byte) []byte {
	synd := make([]byte, c.nsym)
	for i := 0; i < c.nsym; i++ {
		synd[i] = polyEval(code, gfPow(2, i))
	}
	return synd
}

// findErrorLocator runs Berlekamp-Massey over the syndromes
func findErrorLocator(synd []byte, nsym int) ([]byte, error) {
	errLoc := []byte{1}
	oldLoc := []byte{1}

	for i := 0; i < nsym; i++ {
		delta := synd[i]
		for j := 1; j < len(errLoc); j++ {
			delta ^= gfMul(errLoc[len(errLoc)-1-j], synd[i-j])
		}

		oldLoc = append(oldLoc, 0)
		if delta != 0 {
			if len(oldLoc) > len(errLoc) {
				newLoc := polyScale(oldLoc, delta)
				oldLoc = polyScale(errLoc, gfInv(delta))
				errLoc = newLoc
			}
			errLoc = polyAdd(errLoc, polyScale(oldLoc, delta))
		}
	}

	// Drop leading zero coefficients
	for len(errLoc) > 0 && errLoc[0] == 0 {
		errLoc = errLoc[1:]
	}

	errs := len(errLoc) - 1
	if errs < 1 || errs*2 > nsym {
		return nil, ErrUncorrectable
	}
	return errLoc, nil
}

// findErrors locates the error positions by probing every coefficient
// position for a root of the locator polynomial. Returned positions are
// coefficient exponents: byte index = n-1-pos.
func findErrors(errLoc []byte, n int) ([]int, error) {
	errs := len(errLoc) - 1

	var coefPos []int
	for p := 0; p < n; p++ {
		if polyEval(errLoc, gfPow(2, -p)) == 0 {
			coefPos = append(coefPos, p)
		}
	}

	if len(coefPos) != errs {
		return nil, ErrUncorrectable
	}
	return coefPos, nil
}

// correctErrata solves for the error magnitudes at the known positions and
// repairs code in place. With the positions fixed, the syndromes form a
// linear system over GF(2^8) in the magnitudes.
func correctErrata(code, synd []byte, coefPos []int) error {
	errs := len(coefPos)

	// a[i][k] = (alpha^pos_k)^i, augmented with the syndrome column
	a := make([][]byte, errs)
	for i := 0; i < errs; i++ {
		a[i] = make([]byte, errs+1)
		for k := 0; k < errs; k++ {
			a[i][k] = gfExp[(coefPos[k]*i)%255]
		}
		a[i][errs] = synd[i]
	}

	// Gaussian elimination; addition is XOR
	for col := 0; col < errs; col++ {
		pivot := -1
		for row := col; row < errs; row++ {
			if a[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot < 0 {
			return ErrUncorrectable
		}
		a[col], a[pivot] = a[pivot], a[col]

		inv := gfInv(a[col][col])
		for j := col; j <= errs; j++ {
			a[col][j] = gfMul(a[col][j], inv)
		}
		for row := 0; row < errs; row++ {
			if row == col || a[row][col] == 0 {
				continue
			}
			f := a[row][col]
			for j := col; j <= errs; j++ {
				a[row][j] ^= gfMul(f, a[col][j])
			}
		}
	}

	for k := 0; k < errs; k++ {
		idx := len(code) - 1 - coefPos[k]
		code[idx] ^= a[k][errs]
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
