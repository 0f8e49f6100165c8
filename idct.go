package jpeg

// Integer inverse DCT, ported from the AAN-derived "ISLOW" formulation
// (the same one used by libjpeg's jidctint and by stb_image's
// stbi__idct_block): 12-bit fixed-point multiplier constants, a
// separable row/column pass, and a final +0.5*2^17 rounding bias baked
// into the last right shift so the whole transform stays in integer
// arithmetic end to end.

const idctConstScale = 4096 // 1<<12 fixed-point scale for the multiplier constants

func f2f(x float64) int32 { return int32(x*4096 + 0.5) }
func fsh(x int32) int32   { return x * idctConstScale }

var (
	c0541 = f2f(0.541196100)
	cm184 = f2f(-1.847759065)
	c0765 = f2f(0.765366865)
	c1175 = f2f(1.175875602)
	c0298 = f2f(0.298631336)
	c2053 = f2f(2.053119869)
	c3072 = f2f(3.072711026)
	c1501 = f2f(1.501321110)
	cm899 = f2f(-0.899976223)
	cm256 = f2f(-2.562915447)
	cm196 = f2f(-1.961570560)
	cm039 = f2f(-0.390180644)
)

// idct1D performs one 1-D pass of the separable 8-point IDCT, returning
// the eight partial sums that the caller combines (+/-) into the eight
// outputs, exactly as jidctint's even/odd part split does.
func idct1D(s0, s1, s2, s3, s4, s5, s6, s7 int32) (x0, x1, x2, x3, t0, t1, t2, t3 int32) {
	p2 := s2
	p3 := s6
	p1 := (p2 + p3) * c0541
	t2 = p1 + p3*cm184
	t3 = p1 + p2*c0765
	p2 = s0
	p3 = s4
	u0 := fsh(p2 + p3)
	u1 := fsh(p2 - p3)
	x0 = u0 + t3
	x3 = u0 - t3
	x1 = u1 + t2
	x2 = u1 - t2

	t0 = s7
	t1 = s5
	t2 = s3
	t3 = s1
	p3 = t0 + t2
	p4 := t1 + t3
	p1 = t0 + t3
	p2 = t1 + t2
	p5 := (p3 + p4) * c1175
	t0 = t0 * c0298
	t1 = t1 * c2053
	t2 = t2 * c3072
	t3 = t3 * c1501
	p1 = p5 + p1*cm899
	p2 = p5 + p2*cm256
	p3 = p3 * cm196
	p4 = p4 * cm039
	t3 += p1 + p4
	t2 += p2 + p3
	t1 += p2 + p4
	t0 += p1 + p3
	return
}

func clampSample(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// idctBlock dequantizes block against qt and writes the 8x8 result into
// out at outOffset, one row every stride bytes. block is consumed in
// natural (already un-zigzagged) order.
func idctBlock(block *[64]int16, qt *quantTable, out []byte, outOffset, stride int) {
	allACZero := true
	for i := 1; i < 64; i++ {
		if block[i] != 0 {
			allACZero = false
			break
		}
	}
	if allACZero {
		dc := clampSample(int32(block[0])*qt.values[0]>>3 + 128)
		o := outOffset
		for r := 0; r < 8; r++ {
			row := out[o : o+8]
			for c := range row {
				row[c] = dc
			}
			o += stride
		}
		return
	}

	var coeff [64]int32
	for i := 0; i < 64; i++ {
		coeff[i] = int32(block[i]) * qt.values[i]
	}

	var v [64]int32
	for i := 0; i < 8; i++ {
		if coeff[i+8] == 0 && coeff[i+16] == 0 && coeff[i+24] == 0 && coeff[i+32] == 0 &&
			coeff[i+40] == 0 && coeff[i+48] == 0 && coeff[i+56] == 0 {
			dc := coeff[i] * 4
			v[i], v[i+8], v[i+16], v[i+24], v[i+32], v[i+40], v[i+48], v[i+56] = dc, dc, dc, dc, dc, dc, dc, dc
			continue
		}
		x0, x1, x2, x3, t0, t1, t2, t3 := idct1D(coeff[i], coeff[i+8], coeff[i+16], coeff[i+24], coeff[i+32], coeff[i+40], coeff[i+48], coeff[i+56])
		x0 += 512
		x1 += 512
		x2 += 512
		x3 += 512
		v[i] = (x0 + t3) >> 10
		v[i+56] = (x0 - t3) >> 10
		v[i+8] = (x1 + t2) >> 10
		v[i+48] = (x1 - t2) >> 10
		v[i+16] = (x2 + t1) >> 10
		v[i+40] = (x2 - t1) >> 10
		v[i+24] = (x3 + t0) >> 10
		v[i+32] = (x3 - t0) >> 10
	}

	const bias = 65536 + 128<<17
	o := outOffset
	for i := 0; i < 8; i++ {
		r := v[i*8 : i*8+8]
		x0, x1, x2, x3, t0, t1, t2, t3 := idct1D(r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7])
		x0 += bias
		x1 += bias
		x2 += bias
		x3 += bias
		row := out[o : o+8]
		row[0] = clampSample((x0 + t3) >> 17)
		row[7] = clampSample((x0 - t3) >> 17)
		row[1] = clampSample((x1 + t2) >> 17)
		row[6] = clampSample((x1 - t2) >> 17)
		row[2] = clampSample((x2 + t1) >> 17)
		row[5] = clampSample((x2 - t1) >> 17)
		row[3] = clampSample((x3 + t0) >> 17)
		row[4] = clampSample((x3 - t0) >> 17)
		o += stride
	}
}

// idctBlockSIMD is numerically identical to idctBlock; it exists as the
// call target selected when Options.useSIMD is set and the CPU supports
// it (see cpu.go), standing in for a vectorized kernel in this portable
// implementation.
func idctBlockSIMD(block *[64]int16, qt *quantTable, out []byte, outOffset, stride int) {
	idctBlock(block, qt, out, outOffset, stride)
}
