package fec

// Arithmetic over GF(2^8) with the conventional primitive polynomial 0x11d.

var gfExp [512]byte
var gfLog [256]byte
var gfTablesInit = false

// initGFTables builds the exp/log lookup tables
func initGFTables() {
	if gfTablesInit {
		return
	}

	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= 0x11d
		}
	}

	// Duplicate the table so products of two logs never need a modulo
	for i := 255; i < 512; i++ {
		gfExp[i] = gfExp[i-255]
	}
	gfTablesInit = true
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[(int(gfLog[a])+255-int(gfLog[b]))%255]
}

func gfInv(a byte) byte {
	return gfExp[255-int(gfLog[a])]
}

// gfPow raises a field element to an integer power (power may be negative)
func gfPow(a byte, power int) byte {
	if a == 0 {
		if power == 0 {
			return 1
		}
		return 0
	}
	idx := (int(gfLog[a]) * power) % 255
	if idx < 0 {
		idx += 255
	}
	return gfExp[idx]
}

// Polynomials are byte slices with the highest-degree coefficient first.

func polyScale(p []byte, x byte) []byte {
	out := make([]byte, len(p))
	for i := range p {
		out[i] = gfMul(p[i], x)
	}
	return out
}

func polyAdd(p, q []byte) []byte {
	out := make([]byte, max(len(p), len(q)))
	for i := range p {
		out[i+len(out)-len(p)] = p[i]
	}
	for i := range q {
		out[i+len(out)-len(q)] ^= q[i]
	}
	return out
}

func polyMul(p, q []byte) []byte {
	out := make([]byte, len(p)+len(q)-1)
	for i := range p {
		if p[i] == 0 {
			continue
		}
		for j := range q {
			out[i+j] ^= gfMul(p[i], q[j])
		}
	}
	return out
}

// polyEval evaluates p at x using Horner's scheme
func polyEval(p []byte, x byte) byte {
	y := p[0]
	for i := 1; i < len(p); i++ {
		y = gfMul(y, x) ^ p[i]
	}
	return y
}
