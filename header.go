package jpeg

import "encoding/binary"

// quantTable is a dequantization table in natural (row-major) order,
// un-zigzagged once at load time so the IDCT never has to do it per block.
type quantTable struct {
	values [64]int32
}

// component is one color component of the frame, carrying both its
// static SOF-declared geometry and the scan-scoped decode state
// (DC predictor) that is reset on every restart.
type component struct {
	id                     byte
	hSamp, vSamp           int
	quantSel               byte
	dcTableSel, acTableSel byte

	dcPred int32

	blocksPerLine, blocksPerColumn int // actual block grid, not MCU-padded
	mcuBlocksWide, mcuBlocksHigh   int // MCU-padded block grid (storage dims)

	coeffs []int16 // full-image coefficient plane (mcuBlocksWide*mcuBlocksHigh*64); filled by one scan (baseline) or several (progressive)

	upsample upsampleFunc
}

// frameHeader holds the SOF-declared frame geometry.
type frameHeader struct {
	marker      byte // markerSOF0 or markerSOF2
	progressive bool
	precision   int
	width       int
	height      int
	heightPending bool // true until a zero line-count is resolved by DNL
}

// scanHeader is the parsed body of one SOS segment: which components
// participate (in scan order) and the spectral-selection /
// successive-approximation parameters for this scan.
type scanHeader struct {
	comps     []int // indices into Decoder.components, in scan order
	specStart byte
	specEnd   byte
	succHigh  byte
	succLow   byte
}

func (d *Decoder) readHeadersFrom(src *byteSource) error {
	marker, err := src.nextMarker()
	if err != nil {
		return err
	}
	if marker != markerSOI {
		return errFormat("input does not start with SOI (got marker 0x%02X)", marker)
	}
	for {
		marker, err = src.nextMarker()
		if err != nil {
			return err
		}
		if marker == markerSOS {
			body, err := src.readSegment()
			if err != nil {
				return err
			}
			sh, err := d.parseSOS(body)
			if err != nil {
				return err
			}
			d.pendingScan = sh
			return nil
		}
		if err := d.handleNonScanMarker(src, marker); err != nil {
			return err
		}
	}
}

// handleNonScanMarker dispatches every marker that is not SOS/SOI. SOS is
// handled by the caller since it hands control to the entropy decoder.
func (d *Decoder) handleNonScanMarker(src *byteSource, marker byte) error {
	if isRST(marker) {
		return errMCU("unexpected restart marker 0x%02X outside a scan", marker)
	}
	switch marker {
	case markerEOI:
		return errFormat("unexpected EOI before any scan")
	case markerDQT:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseDQT(body)
	case markerDHT:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseDHT(body)
	case markerDRI:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseDRI(body)
	case markerDNL:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseDNL(body)
	case markerCOM:
		_, err := src.readSegment()
		return err
	case markerSOF0:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseSOF(markerSOF0, body)
	case markerSOF2:
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseSOF(markerSOF2, body)
	case markerTEM:
		return nil // standalone, no length field, no body
	}
	if isAPPn(marker) {
		body, err := src.readSegment()
		if err != nil {
			return err
		}
		return d.parseAPPn(marker, body)
	}
	if marker >= markerSOF1 && marker <= 0xCF && marker != markerDHT {
		// SOF1/3/5..15 (extended sequential, lossless, differential,
		// arithmetic-coded variants): syntactically a SOF, semantically
		// unsupported.
		_, err := src.readSegment()
		if err != nil {
			return err
		}
		return errUnsupported("SOF variant 0x%02X is not baseline or progressive Huffman", marker)
	}
	return errFormat("unexpected marker 0x%02X", marker)
}

func (d *Decoder) parseSOF(marker byte, body []byte) error {
	if d.frame != nil {
		return errUnsupported("hierarchical mode (more than one frame) is not supported")
	}
	if len(body) < 6 {
		return errSof("SOF segment too short (%d bytes)", len(body))
	}
	precision := int(body[0])
	if precision != 8 {
		return errUnsupported("sample precision %d is not supported (only 8-bit)", precision)
	}
	height := int(binary.BigEndian.Uint16(body[1:3]))
	width := int(binary.BigEndian.Uint16(body[3:5]))
	nf := int(body[5])
	if nf < 1 || nf > 4 {
		return errSof("invalid number of components %d", nf)
	}
	if len(body) != 6+3*nf {
		return errSof("SOF length inconsistent with %d components", nf)
	}
	if width == 0 {
		return errZeroDimension("image width is 0")
	}
	if width > d.opts.maxWidth {
		return errLimitExceeded("width %d exceeds configured maximum %d", width, d.opts.maxWidth)
	}
	if height > d.opts.maxHeight {
		return errLimitExceeded("height %d exceeds configured maximum %d", height, d.opts.maxHeight)
	}

	comps := make([]component, nf)
	hMax, vMax := 1, 1
	for i := 0; i < nf; i++ {
		b := body[6+3*i:]
		h := int(b[1] >> 4)
		v := int(b[1] & 0x0F)
		if h < 1 || h > 4 || v < 1 || v > 4 {
			return errSof("component %d has invalid sampling factors %dx%d", i, h, v)
		}
		tq := b[2]
		if tq > 3 {
			return errSof("component %d references quantization table %d", i, tq)
		}
		comps[i] = component{id: b[0], hSamp: h, vSamp: v, quantSel: tq}
		if h > hMax {
			hMax = h
		}
		if v > vMax {
			vMax = v
		}
	}

	d.frame = &frameHeader{
		marker:        marker,
		progressive:   marker == markerSOF2,
		precision:     precision,
		width:         width,
		height:        height,
		heightPending: height == 0,
	}
	d.components = comps
	d.hMax, d.vMax = hMax, vMax
	d.mcuWidth = hMax * 8
	d.mcuHeight = vMax * 8
	if !d.frame.heightPending {
		if err := d.finishFrameGeometry(); err != nil {
			return err
		}
	}
	return nil
}

// finishFrameGeometry computes MCU/component block geometry once the
// final height is known (immediately after SOF, or after a DNL segment
// resolves a deferred line count). It must run before any per-component
// storage is allocated.
func (d *Decoder) finishFrameGeometry() error {
	f := d.frame
	if f.height == 0 {
		return errZeroDimension("image height is 0")
	}
	if f.height > d.opts.maxHeight {
		return errLimitExceeded("height %d exceeds configured maximum %d", f.height, d.opts.maxHeight)
	}
	d.mcuCountX = (f.width + d.mcuWidth - 1) / d.mcuWidth
	d.mcuCountY = (f.height + d.mcuHeight - 1) / d.mcuHeight

	d.subsampleRatio = classifySubsampleRatio(d.components, d.hMax, d.vMax)

	for i := range d.components {
		c := &d.components[i]
		c.blocksPerLine = (f.width*c.hSamp + d.hMax*8 - 1) / (d.hMax * 8)
		c.blocksPerColumn = (f.height*c.vSamp + d.vMax*8 - 1) / (d.vMax * 8)
		c.mcuBlocksWide = d.mcuCountX * c.hSamp
		c.mcuBlocksHigh = d.mcuCountY * c.vSamp
		c.upsample = selectUpsampler(d.hMax/c.hSamp, d.vMax/c.vSamp)
	}

	d.info.Width = f.width
	d.info.Height = f.height
	d.info.Components = len(d.components)
	d.info.SOFMarker = int(f.marker)
	d.info.Progressive = f.progressive
	d.haveInfo = true
	return nil
}

func (d *Decoder) parseDNL(body []byte) error {
	if len(body) != 2 {
		return errFormat("DNL segment must be 2 bytes, got %d", len(body))
	}
	if d.frame == nil || !d.frame.heightPending {
		return nil // unexpected DNL; harmless to ignore
	}
	d.frame.height = int(binary.BigEndian.Uint16(body))
	d.frame.heightPending = false
	return d.finishFrameGeometry()
}

func (d *Decoder) parseDQT(body []byte) error {
	for len(body) > 0 {
		pq := body[0] >> 4
		tq := body[0] & 0x0F
		if tq > 3 {
			return errDqt("quantization table destination %d out of range", tq)
		}
		body = body[1:]
		qt := &quantTable{}
		switch pq {
		case 0:
			if len(body) < 64 {
				return errDqt("truncated 8-bit quantization table")
			}
			for i := 0; i < 64; i++ {
				qt.values[unZigZag[i]] = int32(body[i])
			}
			body = body[64:]
		case 1:
			if len(body) < 128 {
				return errDqt("truncated 16-bit quantization table")
			}
			for i := 0; i < 64; i++ {
				qt.values[unZigZag[i]] = int32(binary.BigEndian.Uint16(body[2*i:]))
			}
			body = body[128:]
		default:
			return errDqt("invalid quantization table precision %d", pq)
		}
		d.quantTabs[tq] = qt
	}
	return nil
}

func (d *Decoder) parseDHT(body []byte) error {
	for len(body) > 0 {
		if len(body) < 17 {
			return errFormat("truncated DHT table header")
		}
		class := body[0] >> 4
		id := body[0] & 0x0F
		if id > 3 {
			return errFormat("huffman table destination %d out of range", id)
		}
		var counts [16]byte
		copy(counts[:], body[1:17])
		total := 0
		for _, c := range counts {
			total += int(c)
		}
		body = body[17:]
		if len(body) < total {
			return errFormat("truncated DHT symbol list")
		}
		values := make([]byte, total)
		copy(values, body[:total])
		body = body[total:]

		ht, err := buildHuffmanTable(counts, values, class == 1)
		if err != nil {
			return err
		}
		if class == 1 {
			d.acTables[id] = ht
		} else {
			d.dcTables[id] = ht
		}
	}
	return nil
}

func (d *Decoder) parseDRI(body []byte) error {
	if len(body) != 2 {
		return errFormat("DRI segment must be 2 bytes, got %d", len(body))
	}
	d.restartInterval = int(binary.BigEndian.Uint16(body))
	return nil
}

func (d *Decoder) parseAPPn(marker byte, body []byte) error {
	switch marker {
	case markerAPP0:
		return d.parseAPP0(body)
	case markerAPP0 + 14: // APP14, Adobe
		return d.parseAPP14(body)
	}
	return nil // every other APPn is skipped per the EXIF/XMP/ICC non-goal
}

func (d *Decoder) parseAPP0(body []byte) error {
	if len(body) < 7 || string(body[0:5]) != "JFIF\x00" {
		return nil // not a JFIF APP0; nothing to extract
	}
	if len(body) < 12 {
		if d.opts.strictMode {
			return errFormat("APP0 (JFIF) segment too short (%d bytes)", len(body))
		}
		d.opts.logger.Sugar().Debugf("short APP0 JFIF segment (%d bytes), skipping density", len(body))
		return nil
	}
	d.info.DensityUnits = int(body[7])
	d.info.DensityX = int(binary.BigEndian.Uint16(body[8:10]))
	d.info.DensityY = int(binary.BigEndian.Uint16(body[10:12]))
	return nil
}

func (d *Decoder) parseAPP14(body []byte) error {
	if len(body) < 12 || string(body[0:5]) != "Adobe" {
		return nil
	}
	d.adobeTransform = int(body[11])
	d.haveAdobeTransform = true
	return nil
}

func (d *Decoder) parseSOS(body []byte) (*scanHeader, error) {
	if d.frame == nil {
		return nil, errSos("SOS segment before any SOF")
	}
	if len(body) < 1 {
		return nil, errSos("SOS segment too short")
	}
	ns := int(body[0])
	if ns < 1 || ns > len(d.components) {
		return nil, errSos("SOS declares %d components, frame has %d", ns, len(d.components))
	}
	if len(body) != 1+2*ns+3 {
		return nil, errSos("SOS length inconsistent with %d components", ns)
	}
	sh := &scanHeader{comps: make([]int, ns)}
	for i := 0; i < ns; i++ {
		sel := body[1+2*i]
		tables := body[2+2*i]
		idx := -1
		for j := range d.components {
			if d.components[j].id == sel {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, errSos("SOS references unknown component id %d", sel)
		}
		d.components[idx].dcTableSel = tables >> 4
		d.components[idx].acTableSel = tables & 0x0F
		sh.comps[i] = idx
	}
	tail := body[1+2*ns:]
	sh.specStart = tail[0]
	sh.specEnd = tail[1]
	sh.succHigh = tail[2] >> 4
	sh.succLow = tail[2] & 0x0F

	if !d.frame.progressive {
		sh.specStart, sh.specEnd = 0, 63
		sh.succHigh, sh.succLow = 0, 0
	} else {
		if sh.specStart > 63 || sh.specEnd > 63 || sh.specStart > sh.specEnd {
			return nil, errSos("invalid spectral selection %d..%d", sh.specStart, sh.specEnd)
		}
		if sh.specStart == 0 && sh.specEnd != 0 && ns != 1 {
			// DC scans may be interleaved; AC scans (spec_start>0) must be
			// single-component, per T.81 G.2.
		}
		if sh.specStart != 0 && ns != 1 {
			return nil, errSos("AC progressive scans must be single-component")
		}
		if sh.succLow > 13 {
			return nil, errSos("successive-approximation low bit %d out of range", sh.succLow)
		}
	}
	return sh, nil
}
