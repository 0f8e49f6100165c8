package jpeg

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// rowPipeline holds the per-component native-resolution planes and the
// bounded worker pool that baseline decoding dispatches IDCT work to as
// each MCU row finishes, so rendering of row N runs concurrently with
// entropy decode of row N+1 instead of waiting for the whole scan.
//
// Progressive scans never use one: a later scan refines DC/AC bits
// decoded by an earlier one, so no block can be rendered until every
// scan is in, which rules out pipelining decode with IDCT entirely.
type rowPipeline struct {
	planes [][]byte
	k      kernels
	group  *errgroup.Group
}

func (d *Decoder) newRowPipeline() *rowPipeline {
	planes := make([][]byte, len(d.components))
	for i := range d.components {
		c := &d.components[i]
		planes[i] = make([]byte, c.blocksPerLine*8*c.blocksPerColumn*8)
	}
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workerLimit())
	return &rowPipeline{planes: planes, k: d.selectKernels(), group: g}
}

// decodeScans runs the entropy decoder over every scan in the image
// (one for baseline, several for progressive), then renders the
// accumulated coefficient planes into the caller's chosen color space.
// d.pendingScan holds the SOS already parsed by readHeadersFrom.
func (d *Decoder) decodeScans(src *byteSource) ([]byte, error) {
	if d.pendingScan == nil {
		return nil, errFormat("no scan to decode")
	}
	for i := range d.components {
		c := &d.components[i]
		if c.coeffs == nil {
			c.coeffs = make([]int16, c.mcuBlocksWide*c.mcuBlocksHigh*64)
		}
	}

	var pipeline *rowPipeline
	if !d.frame.progressive {
		pipeline = d.newRowPipeline()
	}

	for d.pendingScan != nil {
		sh := d.pendingScan
		marker, err := d.decodeOneScan(src, sh, pipeline)
		if err != nil {
			if pipeline != nil {
				pipeline.group.Wait()
			}
			return nil, err
		}
		d.pendingScan = nil

		switch {
		case marker == markerEOI:
			if pipeline != nil {
				return d.finalizeFromPlanes(pipeline)
			}
			return d.finalize()
		case marker == markerSOS:
			body, err := src.readSegment()
			if err != nil {
				return nil, err
			}
			sh, err := d.parseSOS(body)
			if err != nil {
				return nil, err
			}
			d.pendingScan = sh
		default:
			if err := d.handleNonScanMarker(src, marker); err != nil {
				return nil, err
			}
		}
	}
	// Ran out of scans without an EOI; render whatever was decoded.
	if pipeline != nil {
		return d.finalizeFromPlanes(pipeline)
	}
	return d.finalize()
}

// decodeBlock dispatches one data unit's entropy decode to the routine
// matching the scan's kind: baseline, progressive DC first/refine, or
// progressive AC first/refine.
func (d *Decoder) decodeBlock(br *bitReader, c *component, sh *scanHeader, block *[64]int16) error {
	if !d.frame.progressive {
		dcT := d.dcTables[c.dcTableSel]
		acT := d.acTables[c.acTableSel]
		if dcT == nil || acT == nil {
			return errHuffman("scan references an undefined huffman table")
		}
		return decodeBaselineBlock(br, dcT, acT, c, block, d.opts.strictMode)
	}

	if sh.specStart == 0 {
		if sh.succHigh == 0 {
			dcT := d.dcTables[c.dcTableSel]
			if dcT == nil {
				return errHuffman("scan references an undefined DC huffman table")
			}
			return decodeProgressiveDCFirst(br, dcT, c, block, sh.succLow)
		}
		decodeProgressiveDCRefine(br, block, sh.succLow)
		return nil
	}

	acT := d.acTables[c.acTableSel]
	if acT == nil {
		return errHuffman("scan references an undefined AC huffman table")
	}
	if sh.succHigh == 0 {
		return decodeProgressiveACFirst(br, acT, block, sh.specStart, sh.specEnd, sh.succLow)
	}
	return decodeProgressiveACRefine(br, acT, block, sh.specStart, sh.specEnd, sh.succLow)
}

// decodeOneScan entropy-decodes every data unit in one scan, threading
// restart-marker resync through either the interleaved (MCU-grouped) or
// non-interleaved (single-component) iteration order, and returns the
// marker that follows the scan's compressed data. When pipeline is
// non-nil (baseline only), it dispatches IDCT rendering of each
// completed block row to the pipeline's worker pool as soon as that
// row's entropy decode finishes, instead of waiting for the scan to end.
func (d *Decoder) decodeOneScan(src *byteSource, sh *scanHeader, pipeline *rowPipeline) (byte, error) {
	br := newBitReader(src.data, src.pos)
	for _, ci := range sh.comps {
		d.components[ci].dcPred = 0
	}

	restartIdx := 0
	checkRestart := func(unitsDone, total int) error {
		if d.restartInterval <= 0 || unitsDone == total || unitsDone%d.restartInterval != 0 {
			return nil
		}
		if err := d.consumeRestart(br, restartIdx); err != nil {
			return err
		}
		restartIdx = (restartIdx + 1) & 7
		for _, ci := range sh.comps {
			d.components[ci].dcPred = 0
		}
		return nil
	}

	if len(sh.comps) == 1 {
		// Non-interleaved scan: data units in raster order over the
		// component's own (non-MCU-padded) block grid. Used for every
		// progressive AC scan and for a baseline scan naming one component.
		c := &d.components[sh.comps[0]]
		total := c.blocksPerLine * c.blocksPerColumn
		unit := 0
		for by := 0; by < c.blocksPerColumn; by++ {
			for bx := 0; bx < c.blocksPerLine; bx++ {
				idx := (by*c.mcuBlocksWide + bx) * 64
				block := (*[64]int16)(c.coeffs[idx : idx+64])
				if err := d.decodeBlock(br, c, sh, block); err != nil {
					return 0, err
				}
				unit++
				if err := checkRestart(unit, total); err != nil {
					return 0, err
				}
			}
			if pipeline != nil {
				ci, row := sh.comps[0], by
				pipeline.group.Go(func() error {
					return d.renderComponentBlockRows(ci, row, row+1, pipeline)
				})
			}
		}
	} else {
		total := d.mcuCountX * d.mcuCountY
		for mcu := 0; mcu < total; mcu++ {
			mx, my := mcu%d.mcuCountX, mcu/d.mcuCountX
			for _, ci := range sh.comps {
				c := &d.components[ci]
				for by := 0; by < c.vSamp; by++ {
					for bx := 0; bx < c.hSamp; bx++ {
						blockX := mx*c.hSamp + bx
						blockY := my*c.vSamp + by
						idx := (blockY*c.mcuBlocksWide + blockX) * 64
						block := (*[64]int16)(c.coeffs[idx : idx+64])
						if err := d.decodeBlock(br, c, sh, block); err != nil {
							return 0, err
						}
					}
				}
			}
			if pipeline != nil && mx == d.mcuCountX-1 {
				row, comps := my, sh.comps
				pipeline.group.Go(func() error {
					return d.renderMCURow(row, comps, pipeline)
				})
			}
			if err := checkRestart(mcu+1, total); err != nil {
				return 0, err
			}
		}
	}

	marker, err := d.syncToMarker(br)
	if err != nil {
		return 0, err
	}
	src.pos = br.pos
	return marker, nil
}

// consumeRestart discards the bit reader's buffered lookahead (always
// either spent entropy data or 1-fill padding at this point), locates
// the marker that must follow (keeping one the reader already latched),
// and verifies it is the expected RSTn.
func (d *Decoder) consumeRestart(br *bitReader, expectedIdx int) error {
	br.bitsLeft = 0
	br.aligned = 0
	br.buffer = 0
	br.fill()
	m := br.pendingMarker()
	if m == 0 {
		return errMCU("expected restart marker, reached end of input")
	}
	if !isRST(m) {
		return errMCU("expected restart marker, got marker 0x%02X", m)
	}
	if d.opts.strictMode {
		want := markerRST0 + byte(expectedIdx)
		if m != want {
			return errMCU("out-of-order restart marker: expected 0x%02X, got 0x%02X", want, m)
		}
	}
	br.reset()
	return nil
}

// syncToMarker discards lookahead the same way consumeRestart does, then
// reports whatever marker follows the scan's compressed data (SOS for
// another progressive scan, EOI, or a stray marker handed to
// handleNonScanMarker).
func (d *Decoder) syncToMarker(br *bitReader) (byte, error) {
	br.bitsLeft = 0
	br.aligned = 0
	br.buffer = 0
	br.fill()
	m := br.pendingMarker()
	if m == 0 {
		return 0, errIo("unexpected end of input: expected a marker after scan data")
	}
	br.clearMarker()
	return m, nil
}

// finalize runs IDCT/dequantization per component, upsamples each
// component to full resolution, and color-converts into the final
// output buffer. Used for progressive images, where no block can be
// rendered until every scan has been decoded. Per-component rendering
// runs on a GOMAXPROCS-bounded errgroup worker pool.
func (d *Decoder) finalize() ([]byte, error) {
	nComp := len(d.components)
	k := d.selectKernels()

	planes := make([][]byte, nComp)
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workerLimit())
	for i := range d.components {
		i := i
		g.Go(func() error {
			p, err := d.renderComponentPlane(&d.components[i], k)
			if err != nil {
				return err
			}
			planes[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d.upsampleAndConvert(planes, k)
}

// finalizeFromPlanes waits for a baseline scan's row-pipelined IDCT
// dispatches to drain, then upsamples and color-converts the planes
// they rendered. Unlike finalize, no per-component render pass runs
// here: decodeOneScan already handed every MCU row's IDCT work to
// pipeline.group as it decoded, concurrently with subsequent rows.
func (d *Decoder) finalizeFromPlanes(pipeline *rowPipeline) ([]byte, error) {
	if err := pipeline.group.Wait(); err != nil {
		return nil, err
	}
	return d.upsampleAndConvert(pipeline.planes, pipeline.k)
}

// upsampleAndConvert takes native-resolution per-component planes
// (already IDCT'd), upsamples each to full image resolution, and
// color-converts row chunks into the final output buffer on a
// GOMAXPROCS-bounded errgroup worker pool.
func (d *Decoder) upsampleAndConvert(planes [][]byte, k kernels) ([]byte, error) {
	width, height := d.frame.width, d.frame.height
	nComp := len(d.components)
	cs := d.opts.outColorSpace

	fullPlanes := make([][]byte, nComp)
	fullStride := make([]int, nComp)
	for i := range d.components {
		c := &d.components[i]
		nativeW := c.blocksPerLine * 8
		nativeH := c.blocksPerColumn * 8
		up, upW, _ := c.upsample(planes[i], nativeW, nativeH)
		fullPlanes[i] = up
		fullStride[i] = upW
	}

	nOut := cs.Components()
	out := make([]byte, width*height*nOut)
	if height == 0 {
		return out, nil
	}

	nWorkers := workerLimit()
	rowsPerWorker := (height + nWorkers - 1) / nWorkers
	g2, _ := errgroup.WithContext(context.Background())
	g2.SetLimit(nWorkers)
	for start := 0; start < height; start += rowsPerWorker {
		start := start
		end := start + rowsPerWorker
		if end > height {
			end = height
		}
		g2.Go(func() error {
			rowComps := make([][]byte, nComp)
			for y := start; y < end; y++ {
				for i := 0; i < nComp; i++ {
					stride := fullStride[i]
					o := y * stride
					rowComps[i] = fullPlanes[i][o : o+width]
				}
				dstRow := out[y*width*nOut : (y+1)*width*nOut]
				k.color(dstRow, rowComps, width, nComp, cs, d.adobeTransform, d.haveAdobeTransform)
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// renderComponentPlane dequantizes and inverse-transforms every block of
// one component's coefficient plane into a native-resolution byte plane
// (not yet upsampled to full image resolution).
func (d *Decoder) renderComponentPlane(c *component, k kernels) ([]byte, error) {
	qt := d.quantTabs[c.quantSel]
	if qt == nil {
		return nil, errDqt("component references undefined quantization table %d", c.quantSel)
	}
	w := c.blocksPerLine * 8
	h := c.blocksPerColumn * 8
	plane := make([]byte, w*h)
	renderBlockRows(c, qt, k, c.coeffs, plane, w, 0, c.blocksPerColumn)
	return plane, nil
}

// renderMCURow dequantizes and inverse-transforms one MCU row's worth of
// blocks (every component named in comps, clipped to each component's
// own vSamp-scaled row range) directly into pipeline's native-resolution
// planes. Dispatched from decodeOneScan's interleaved MCU loop as soon
// as row my's entropy decode finishes.
func (d *Decoder) renderMCURow(my int, comps []int, pipeline *rowPipeline) error {
	for _, ci := range comps {
		vSamp := d.components[ci].vSamp
		if err := d.renderComponentBlockRows(ci, my*vSamp, my*vSamp+vSamp, pipeline); err != nil {
			return err
		}
	}
	return nil
}

// renderComponentBlockRows dequantizes and inverse-transforms block rows
// [rowStart, rowEnd) of one component directly into pipeline's
// native-resolution plane. Dispatched from decodeOneScan's non-interleaved
// loop after each finished block row, and from renderMCURow per component.
func (d *Decoder) renderComponentBlockRows(ci, rowStart, rowEnd int, pipeline *rowPipeline) error {
	c := &d.components[ci]
	qt := d.quantTabs[c.quantSel]
	if qt == nil {
		return errDqt("component references undefined quantization table %d", c.quantSel)
	}
	if rowEnd > c.blocksPerColumn {
		rowEnd = c.blocksPerColumn
	}
	w := c.blocksPerLine * 8
	renderBlockRows(c, qt, pipeline.k, c.coeffs, pipeline.planes[ci], w, rowStart, rowEnd)
	return nil
}

// renderBlockRows dequantizes and inverse-transforms block rows
// [rowStart, rowEnd) of one component's full coefficient plane into
// plane, the shared primitive behind both the batch (renderComponentPlane)
// and row-pipelined (renderMCURow/renderComponentBlockRows) rendering paths.
func renderBlockRows(c *component, qt *quantTable, k kernels, coeffs []int16, plane []byte, stride, rowStart, rowEnd int) {
	for by := rowStart; by < rowEnd; by++ {
		for bx := 0; bx < c.blocksPerLine; bx++ {
			idx := (by*c.mcuBlocksWide + bx) * 64
			block := (*[64]int16)(coeffs[idx : idx+64])
			k.idct(block, qt, plane, (by*8)*stride+bx*8, stride)
		}
	}
}
