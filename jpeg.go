// Package jpeg decodes baseline and progressive JPEG (ITU-T T.81) images
// into planar 8-bit pixel buffers.
//
// The decoder trades the generality of image/jpeg for speed: Huffman
// decoding goes through cache-sized lookup tables instead of a bit-by-bit
// tree walk, the IDCT is integer arithmetic with a zero-AC fast path, and
// for baseline images each MCU row's dequantize/IDCT work is handed to a
// bounded worker pool as soon as that row's entropy decode finishes, so
// rendering overlaps with decoding the rest of the image. Upsampling and
// color conversion still run as one pass after the whole image decodes
// (progressive images always do, since a later scan can refine any
// earlier one's coefficients).
package jpeg

import (
	"os"
	"runtime"

	"go.uber.org/zap"
)

// ColorSpace selects the layout of samples DecodeBuffer writes to its
// output.
type ColorSpace int

const (
	// ColorSpaceRGB is the default: 3 bytes per pixel, no alpha.
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceRGBA
	ColorSpaceRGBX
	ColorSpaceYCbCr
	ColorSpaceGrayscale
)

// Components reports how many output bytes per pixel a color space uses.
func (cs ColorSpace) Components() int {
	switch cs {
	case ColorSpaceGrayscale:
		return 1
	case ColorSpaceYCbCr, ColorSpaceRGB:
		return 3
	case ColorSpaceRGBA, ColorSpaceRGBX:
		return 4
	}
	return 3
}

// Options configures a Decoder. The zero value is not valid; build one
// with NewOptions and the With* functions, or use New() for the defaults.
type Options struct {
	outColorSpace ColorSpace
	strictMode    bool
	useSIMD       bool
	maxWidth      int
	maxHeight     int
	logger        *zap.Logger
}

// DefaultMaxDimension bounds width and height when the caller does not
// set one explicitly, guarding against pathological headers before any
// allocation happens.
const DefaultMaxDimension = 1 << 16

// NewOptions returns the default option set: RGB output, SIMD enabled,
// strict mode off, dimensions capped at DefaultMaxDimension.
func NewOptions() *Options {
	return &Options{
		outColorSpace: ColorSpaceRGB,
		useSIMD:       true,
		maxWidth:      DefaultMaxDimension,
		maxHeight:     DefaultMaxDimension,
		logger:        zap.NewNop(),
	}
}

// WithOutputColorSpace selects the color space DecodeBuffer produces.
func (o *Options) WithOutputColorSpace(cs ColorSpace) *Options {
	o.outColorSpace = cs
	return o
}

// WithStrictMode turns a too-short JFIF APP0 segment, an AC run that
// overflows a baseline block, and an out-of-order restart index into hard
// errors. Runs of 0xFF fill bytes are accepted in either mode, and a
// marker the header parser does not recognize is an error in either mode.
func (o *Options) WithStrictMode(strict bool) *Options {
	o.strictMode = strict
	return o
}

// WithSIMD enables or disables the CPU-feature-gated fast paths for IDCT
// and color conversion. Has no effect on platforms without a supported
// fast path; the scalar routines are always numerically identical.
func (o *Options) WithSIMD(enable bool) *Options {
	o.useSIMD = enable
	return o
}

// WithMaxDimensions caps width and height; headers declaring a larger
// image fail with LimitExceededError before any per-component allocation.
func (o *Options) WithMaxDimensions(maxWidth, maxHeight int) *Options {
	o.maxWidth = maxWidth
	o.maxHeight = maxHeight
	return o
}

// WithLogger attaches a logger used for diagnostics that strict mode
// would otherwise promote to errors. A nil logger is replaced with a
// no-op one; logging is never required for correct decoding.
func (o *Options) WithLogger(l *zap.Logger) *Options {
	if l == nil {
		l = zap.NewNop()
	}
	o.logger = l
	return o
}

// Info describes the image a Decoder has parsed headers for.
type Info struct {
	Width, Height int
	Components    int
	SOFMarker     int
	DensityUnits  int
	DensityX      int
	DensityY      int
	Progressive   bool
}

// RawComponent exposes read-only per-component metadata for callers that
// want to inspect subsampling before running a full decode.
type RawComponent struct {
	ID               byte
	HorizSampleFactor int
	VertSampleFactor  int
	QuantTableSel     int
}

// Decoder parses and decodes a single JPEG image. It is not safe for
// concurrent use by multiple goroutines.
type Decoder struct {
	opts *Options

	info     Info
	haveInfo bool

	frame      *frameHeader
	components []component
	quantTabs  [4]*quantTable
	dcTables   [4]*huffmanTable
	acTables   [4]*huffmanTable

	restartInterval int

	adobeTransform     int
	haveAdobeTransform bool

	hMax, vMax             int
	mcuWidth, mcuHeight    int
	mcuCountX, mcuCountY   int
	subsampleRatio         subsampleRatio

	pendingScan *scanHeader
}

// New returns a Decoder with default options (RGB output).
func New() *Decoder { return NewWithOptions(NewOptions()) }

// NewWithOptions returns a Decoder configured by opts.
func NewWithOptions(opts *Options) *Decoder {
	if opts == nil {
		opts = NewOptions()
	}
	return &Decoder{opts: opts}
}

// SetOutputColorSpace selects the output color space. Must be called
// before DecodeBuffer/DecodeFile for it to take effect.
func (d *Decoder) SetOutputColorSpace(cs ColorSpace) { d.opts.outColorSpace = cs }

// Info returns the metadata gathered by ReadHeaders or DecodeBuffer.
// Returns false if no headers have been parsed yet.
func (d *Decoder) Info() (Info, bool) { return d.info, d.haveInfo }

// RawComponents returns per-component metadata from the most recently
// parsed frame header.
func (d *Decoder) RawComponents() []RawComponent {
	out := make([]RawComponent, len(d.components))
	for i, c := range d.components {
		out[i] = RawComponent{
			ID:                c.id,
			HorizSampleFactor:  c.hSamp,
			VertSampleFactor:   c.vSamp,
			QuantTableSel:      int(c.quantSel),
		}
	}
	return out
}

// ReadHeaders parses every segment up to and including the first SOS,
// populating Info() and RawComponents() without running entropy decode.
func (d *Decoder) ReadHeaders(data []byte) error {
	src := newByteSource(data)
	return d.readHeadersFrom(src)
}

// DecodeBuffer fully decodes a JPEG byte buffer and returns samples in
// width*height*Components() order, row-major, with no padding.
func (d *Decoder) DecodeBuffer(data []byte) ([]byte, error) {
	src := newByteSource(data)
	if err := d.readHeadersFrom(src); err != nil {
		return nil, err
	}
	return d.decodeScans(src)
}

// DecodeFile reads path and decodes it; a thin convenience wrapper, not a
// streaming reader.
func DecodeFile(path string, opts *Options) ([]byte, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, errIo("reading %q: %v", path, err)
	}
	d := NewWithOptions(opts)
	buf, err := d.DecodeBuffer(data)
	if err != nil {
		return nil, Info{}, err
	}
	info, _ := d.Info()
	return buf, info, nil
}

func workerLimit() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}
