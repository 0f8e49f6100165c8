package jpeg

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// singleSymbolCounts builds a DHT bit-count array describing exactly one
// 1-bit code, the simplest table buildHuffmanTable can accept.
func singleSymbolCounts() [16]byte {
	var c [16]byte
	c[0] = 1
	return c
}

func TestBuildHuffmanTableSingleSymbol(t *testing.T) {
	c := qt.New(t)
	ht, err := buildHuffmanTable(singleSymbolCounts(), []byte{0x07}, false)
	c.Assert(err, qt.IsNil)
	c.Assert(ht.values, qt.DeepEquals, []byte{0x07})

	// The only code is the 1-bit "0": every lookup entry whose top bit is 0
	// resolves immediately, and entries starting with a 1 bit match no code
	// and stay marked unresolved.
	for i, e := range ht.lookup {
		l := int(e >> lookupBits)
		if i < lookupSize/2 {
			c.Assert(l, qt.Equals, 1, qt.Commentf("lookup[%d]", i))
			c.Assert(int(e&(lookupSize-1)), qt.Equals, 7)
		} else {
			c.Assert(l, qt.Equals, unresolvedLength, qt.Commentf("lookup[%d]", i))
		}
	}
}

func TestBuildHuffmanTableAccepts255Symbols(t *testing.T) {
	var counts [16]byte
	counts[15] = 255 // 255 codes of length 16, within the 256-symbol limit
	values := make([]byte, 255)
	if _, err := buildHuffmanTable(counts, values, false); err != nil {
		t.Fatalf("255 symbols should be accepted, got %v", err)
	}
}

func TestBuildHuffmanTableRejectsOversizeDCSymbol(t *testing.T) {
	if _, err := buildHuffmanTable(singleSymbolCounts(), []byte{16}, false); err == nil {
		t.Fatal("expected an error for a DC symbol > 15")
	}
}

func TestDecodeHuffmanSymbolThreeCodes(t *testing.T) {
	c := qt.New(t)
	// One 1-bit and two 2-bit codes: "0" -> values[0], "10" -> values[1],
	// "11" -> values[2].
	var counts [16]byte
	counts[0] = 1
	counts[1] = 2
	ht, err := buildHuffmanTable(counts, []byte{0xA0, 0xA1, 0xA2}, false)
	c.Assert(err, qt.IsNil)

	data := []byte{0b0_10_11_000} // "0", "10", "11", then zero padding
	br := newBitReader(data, 0)

	sym, err := decodeHuffmanSymbol(br, ht)
	c.Assert(err, qt.IsNil)
	c.Assert(sym, qt.Equals, 0xA0)

	sym, err = decodeHuffmanSymbol(br, ht)
	c.Assert(err, qt.IsNil)
	c.Assert(sym, qt.Equals, 0xA1)

	sym, err = decodeHuffmanSymbol(br, ht)
	c.Assert(err, qt.IsNil)
	c.Assert(sym, qt.Equals, 0xA2)
}

func TestHuffExtend(t *testing.T) {
	cases := []struct {
		v    uint32
		s    uint
		want int32
	}{
		{0, 0, 0},
		{0, 1, -1},
		{1, 1, 1},
		{0, 2, -3},
		{3, 2, 3},
		{4, 3, 4},
	}
	for _, tc := range cases {
		if got := huffExtend(tc.v, tc.s); got != tc.want {
			t.Errorf("huffExtend(%d, %d) = %d, want %d", tc.v, tc.s, got, tc.want)
		}
	}
}

func TestFastACMatchesSlowPath(t *testing.T) {
	c := qt.New(t)
	// AC table: "0" -> run=0,size=0 (EOB); "10" -> run=0,size=1 (one-bit
	// magnitude follows).
	var counts [16]byte
	counts[0] = 1
	counts[1] = 1
	ht, err := buildHuffmanTable(counts, []byte{0x00, 0x01}, true)
	c.Assert(err, qt.IsNil)
	c.Assert(ht.fastAC, qt.Not(qt.IsNil))

	// "10" (2-bit code) followed by magnitude bit "1" decodes to value
	// +1, run 0, total length 2+1=3; fastAC must agree.
	data := []byte{0b10_1_00000}
	fac := ht.fastAC[uint32(data[0])<<1] // peekBits(9) on a single loaded byte, top-aligned
	if fac == 0 {
		t.Fatal("expected fastAC to resolve a 2-bit code + 1-bit magnitude")
	}
	run := int(fac>>4) & 0x0F
	length := int(fac) & 0x0F
	value := int32(fac) >> 8
	c.Assert(run, qt.Equals, 0)
	c.Assert(length, qt.Equals, 3)
	c.Assert(value, qt.Equals, int32(1))
}
