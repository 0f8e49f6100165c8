package jpeg

import (
	"encoding/binary"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

func segment(marker byte, body []byte) []byte {
	out := []byte{0xFF, marker}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)+2))
	out = append(out, lenBuf[:]...)
	return append(out, body...)
}

// buildMinimalGrayJPEG assembles the smallest legal baseline JPEG this
// package can decode: one 8x8 grayscale block whose entropy-coded data is
// a DC difference of 0 followed immediately by an end-of-block code, so
// every output sample must equal the level-shift midpoint 128.
func buildMinimalGrayJPEG() []byte {
	var quant [64]byte
	for i := range quant {
		quant[i] = 1
	}
	dqt := segment(markerDQT, append([]byte{0x00}, quant[:]...))

	sof := segment(markerSOF0, []byte{
		8,          // precision
		0x00, 0x08, // height
		0x00, 0x08, // width
		1,                // Nf
		0x01, 0x11, 0x00, // id=1, h=1 v=1, Tq=0
	})

	dcCounts := make([]byte, 16)
	dcCounts[0] = 1
	dhtDC := segment(markerDHT, append(append([]byte{0x00}, dcCounts...), 0x00))

	acCounts := make([]byte, 16)
	acCounts[0] = 1
	dhtAC := segment(markerDHT, append(append([]byte{0x10}, acCounts...), 0x00))

	sos := segment(markerSOS, []byte{
		1,          // Ns
		0x01, 0x00, // component 1 selects DC table 0 / AC table 0
		0x00, 0x3F, 0x00, // Ss, Se, AhAl
	})

	var data []byte
	data = append(data, 0xFF, markerSOI)
	data = append(data, dqt...)
	data = append(data, sof...)
	data = append(data, dhtDC...)
	data = append(data, dhtAC...)
	data = append(data, sos...)
	data = append(data, 0x3F) // "0" (DC) + "0" (AC EOB) + six 1-fill bits
	data = append(data, 0xFF, markerEOI)
	return data
}

func TestDecodeBufferMinimalGray(t *testing.T) {
	c := qt.New(t)
	d := NewWithOptions(NewOptions().WithOutputColorSpace(ColorSpaceGrayscale))
	out, err := d.DecodeBuffer(buildMinimalGrayJPEG())
	c.Assert(err, qt.IsNil)
	c.Assert(len(out), qt.Equals, 64)
	for i, v := range out {
		c.Assert(v, qt.Equals, byte(128), qt.Commentf("sample %d", i))
	}

	info, ok := d.Info()
	c.Assert(ok, qt.IsTrue)
	want := Info{Width: 8, Height: 8, Components: 1, SOFMarker: int(markerSOF0)}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("Info() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBufferOutputLengthMatchesColorSpace(t *testing.T) {
	for _, cs := range []ColorSpace{ColorSpaceGrayscale, ColorSpaceYCbCr, ColorSpaceRGB, ColorSpaceRGBA, ColorSpaceRGBX} {
		d := NewWithOptions(NewOptions().WithOutputColorSpace(cs))
		out, err := d.DecodeBuffer(buildMinimalGrayJPEG())
		if err != nil {
			t.Fatalf("cs=%v: %v", cs, err)
		}
		want := 8 * 8 * cs.Components()
		if len(out) != want {
			t.Errorf("cs=%v: len(out)=%d, want %d", cs, len(out), want)
		}
	}
}

func TestReadHeadersWithoutDecoding(t *testing.T) {
	c := qt.New(t)
	d := New()
	err := d.ReadHeaders(buildMinimalGrayJPEG())
	c.Assert(err, qt.IsNil)
	info, ok := d.Info()
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.Width, qt.Equals, 8)
	c.Assert(info.Height, qt.Equals, 8)

	raw := d.RawComponents()
	c.Assert(len(raw), qt.Equals, 1)
	c.Assert(raw[0].HorizSampleFactor, qt.Equals, 1)
	c.Assert(raw[0].VertSampleFactor, qt.Equals, 1)
}

func TestDecodeBufferRejectsMissingSOI(t *testing.T) {
	_, err := New().DecodeBuffer([]byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected an error for input not starting with SOI")
	}
}

// buildRestartGrayJPEG builds a 16x8 grayscale baseline image split across
// two MCUs with DRI/RSTn restart markers between them, exercising
// consumeRestart and the non-interleaved (single-component) loop's restart
// bookkeeping.
func buildRestartGrayJPEG() []byte {
	var quant [64]byte
	for i := range quant {
		quant[i] = 1
	}
	dqt := segment(markerDQT, append([]byte{0x00}, quant[:]...))

	sof := segment(markerSOF0, []byte{
		8,
		0x00, 0x08, // height
		0x00, 0x10, // width
		1,
		0x01, 0x11, 0x00,
	})

	dcCounts := make([]byte, 16)
	dcCounts[0] = 1
	dhtDC := segment(markerDHT, append(append([]byte{0x00}, dcCounts...), 0x00))

	acCounts := make([]byte, 16)
	acCounts[0] = 1
	dhtAC := segment(markerDHT, append(append([]byte{0x10}, acCounts...), 0x00))

	dri := segment(markerDRI, []byte{0x00, 0x01})

	sos := segment(markerSOS, []byte{
		1,
		0x01, 0x00,
		0x00, 0x3F, 0x00,
	})

	var data []byte
	data = append(data, 0xFF, markerSOI)
	data = append(data, dqt...)
	data = append(data, sof...)
	data = append(data, dhtDC...)
	data = append(data, dhtAC...)
	data = append(data, dri...)
	data = append(data, sos...)
	data = append(data, 0x3F)            // MCU 0: DC diff 0, AC EOB, fill
	data = append(data, 0xFF, markerRST0) // restart between the two MCUs
	data = append(data, 0x3F)            // MCU 1: same pattern
	data = append(data, 0xFF, markerEOI)
	return data
}

func TestDecodeBufferHonorsRestartMarkers(t *testing.T) {
	c := qt.New(t)
	d := NewWithOptions(NewOptions().WithOutputColorSpace(ColorSpaceGrayscale).WithStrictMode(true))
	out, err := d.DecodeBuffer(buildRestartGrayJPEG())
	c.Assert(err, qt.IsNil)
	c.Assert(len(out), qt.Equals, 16*8)
	for i, v := range out {
		c.Assert(v, qt.Equals, byte(128), qt.Commentf("sample %d", i))
	}
}

func TestDecodeBufferRejectsOutOfOrderRestartInStrictMode(t *testing.T) {
	data := buildRestartGrayJPEG()
	// Flip RST0 to RST1: strict mode must reject the out-of-order index.
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1] == markerRST0 {
			data[i+1] = markerRST0 + 1
			break
		}
	}
	d := NewWithOptions(NewOptions().WithStrictMode(true))
	_, err := d.DecodeBuffer(data)
	var mcuErr *MCUError
	if !errors.As(err, &mcuErr) {
		t.Fatalf("err = %v, want an *MCUError in its chain", err)
	}
}

// buildSubsampled420JPEG builds a single-MCU 16x16 4:2:0 image (Y at 2x2,
// Cb/Cr at 1x1) so every component decodes to flat DC-only blocks, but the
// scan itself interleaves three components of different geometry through
// one MCU's worth of entropy decode and row-pipelined rendering.
func buildSubsampled420JPEG() []byte {
	var quant [64]byte
	for i := range quant {
		quant[i] = 1
	}
	dqt := segment(markerDQT, append([]byte{0x00}, quant[:]...))

	sof := segment(markerSOF0, []byte{
		8,
		0x00, 0x10, // height 16
		0x00, 0x10, // width 16
		3,
		0x01, 0x22, 0x00, // Y: h2 v2
		0x02, 0x11, 0x00, // Cb: h1 v1
		0x03, 0x11, 0x00, // Cr: h1 v1
	})

	dcCounts := make([]byte, 16)
	dcCounts[0] = 1
	dhtDC := segment(markerDHT, append(append([]byte{0x00}, dcCounts...), 0x00))

	acCounts := make([]byte, 16)
	acCounts[0] = 1
	dhtAC := segment(markerDHT, append(append([]byte{0x10}, acCounts...), 0x00))

	sos := segment(markerSOS, []byte{
		3,
		0x01, 0x00,
		0x02, 0x00,
		0x03, 0x00,
		0x00, 0x3F, 0x00,
	})

	var data []byte
	data = append(data, 0xFF, markerSOI)
	data = append(data, dqt...)
	data = append(data, sof...)
	data = append(data, dhtDC...)
	data = append(data, dhtAC...)
	data = append(data, sos...)
	// 6 blocks (4 Y + Cb + Cr), each "DC diff 0" + "AC EOB" (2 bits), then
	// 4 fill bits to reach a byte boundary: 12 zero bits + "1111".
	data = append(data, 0x00, 0x0F)
	data = append(data, 0xFF, markerEOI)
	return data
}

func TestDecodeBufferSubsampled420MultiComponent(t *testing.T) {
	c := qt.New(t)
	d := New()
	out, err := d.DecodeBuffer(buildSubsampled420JPEG())
	c.Assert(err, qt.IsNil)
	c.Assert(len(out), qt.Equals, 16*16*ColorSpaceRGB.Components())
	for i, v := range out {
		c.Assert(v, qt.Equals, byte(128), qt.Commentf("sample %d", i))
	}

	raw := d.RawComponents()
	c.Assert(len(raw), qt.Equals, 3)
	c.Assert(raw[0].HorizSampleFactor, qt.Equals, 2)
	c.Assert(raw[0].VertSampleFactor, qt.Equals, 2)
}

// buildProgressiveGrayJPEG builds a single-block progressive image decoded
// across four scans (DC first, DC refine, AC first, AC refine), driving
// the AC coefficient at zigzag position 1 from 0 to 2 (AC first, Al=1)
// and then to 3 (AC refine adds the low bit), so the block is not flat.
func buildProgressiveGrayJPEG() []byte {
	var quant [64]byte
	for i := range quant {
		quant[i] = 1
	}
	dqt := segment(markerDQT, append([]byte{0x00}, quant[:]...))

	sof := segment(markerSOF2, []byte{
		8,
		0x00, 0x08,
		0x00, 0x08,
		1,
		0x01, 0x11, 0x00,
	})

	dcCounts := make([]byte, 16)
	dcCounts[0] = 1
	dhtDC := segment(markerDHT, append(append([]byte{0x00}, dcCounts...), 0x00))

	// AC table shared by the AC-first and AC-refine scans: "0" -> (run=0,
	// size=0) EOB/refine-immediate; "10" -> (run=0, size=1).
	acCounts := make([]byte, 16)
	acCounts[0] = 1
	acCounts[1] = 1
	dhtAC := segment(markerDHT, append(append([]byte{0x10}, acCounts...), 0x00, 0x01))

	scan := func(ss, se, ahAl byte, entropyByte byte) []byte {
		sos := segment(markerSOS, []byte{
			1,
			0x01, 0x00,
			ss, se, ahAl,
		})
		return append(sos, entropyByte)
	}

	var data []byte
	data = append(data, 0xFF, markerSOI)
	data = append(data, dqt...)
	data = append(data, sof...)
	data = append(data, dhtDC...)
	data = append(data, dhtAC...)
	data = append(data, scan(0, 0, 0x01, 0x7F)...)  // DC first, Ah=0 Al=1: "0"+7 fill
	data = append(data, scan(0, 0, 0x10, 0x7F)...)  // DC refine, Ah=1 Al=0: bit "0"+7 fill
	data = append(data, scan(1, 63, 0x01, 0xAF)...) // AC first, Ah=0 Al=1: "10"+"1"+"0"+4 fill
	data = append(data, scan(1, 63, 0x10, 0x7F)...) // AC refine, Ah=1 Al=0: "0"+"1"+6 fill
	data = append(data, 0xFF, markerEOI)
	return data
}

func TestDecodeBufferProgressiveDCAndACScans(t *testing.T) {
	c := qt.New(t)
	d := NewWithOptions(NewOptions().WithOutputColorSpace(ColorSpaceGrayscale))
	out, err := d.DecodeBuffer(buildProgressiveGrayJPEG())
	c.Assert(err, qt.IsNil)
	c.Assert(len(out), qt.Equals, 64)

	info, ok := d.Info()
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.Progressive, qt.IsTrue)

	allSame := true
	for _, v := range out {
		if v != out[0] {
			allSame = false
			break
		}
	}
	c.Assert(allSame, qt.IsFalse, qt.Commentf("a nonzero AC coefficient must vary the block, not leave it flat"))
}

func TestDecodeBufferRejectsZeroWidth(t *testing.T) {
	sof := segment(markerSOF0, []byte{
		8,
		0x00, 0x08,
		0x00, 0x00, // width = 0
		1,
		0x01, 0x11, 0x00,
	})
	data := append([]byte{0xFF, markerSOI}, sof...)
	_, err := New().DecodeBuffer(data)
	var zderr *ZeroDimensionError
	if !errors.As(err, &zderr) {
		t.Fatalf("err = %v, want a *ZeroDimensionError in its chain", err)
	}
}
