package jpeg

// subsampleRatio classifies the overall chroma subsampling layout of an
// image. It is recorded on the Decoder at header-parse time; the
// orchestrator's MCU-row loop does not consult it.
type subsampleRatio int

const (
	ratioNone subsampleRatio = iota // 4:4:4, or grayscale
	ratioH                          // 4:2:2, horizontal-only chroma subsampling
	ratioV                          // 4:4:0, vertical-only chroma subsampling
	ratioHV                         // 4:2:0
	ratioOther                      // anything not expressible as a 1x/2x ratio
)

func classifySubsampleRatio(comps []component, hMax, vMax int) subsampleRatio {
	if len(comps) < 2 {
		return ratioNone
	}
	hr := hMax / comps[1].hSamp
	vr := vMax / comps[1].vSamp
	for _, c := range comps[1:] {
		if hMax/c.hSamp != hr || vMax/c.vSamp != vr {
			return ratioOther
		}
	}
	switch {
	case hr == 1 && vr == 1:
		return ratioNone
	case hr == 2 && vr == 1:
		return ratioH
	case hr == 1 && vr == 2:
		return ratioV
	case hr == 2 && vr == 2:
		return ratioHV
	}
	return ratioOther
}

// upsampleFunc expands one component's native-resolution sample plane
// (srcW x srcH) up to the frame's full-resolution grid, in place of a
// per-block function-pointer dispatch: the choice is made once per
// component at header-parse time, never inside the per-block loop.
type upsampleFunc func(src []byte, srcW, srcH int) (dst []byte, dstW, dstH int)

func selectUpsampler(hRatio, vRatio int) upsampleFunc {
	switch {
	case hRatio == 1 && vRatio == 1:
		return upsampleIdentity
	case hRatio == 2 && vRatio == 1:
		return upsampleH2
	case hRatio == 1 && vRatio == 2:
		return upsampleV2
	case hRatio == 2 && vRatio == 2:
		return upsampleHV2
	default:
		return genericUpsampler(hRatio, vRatio)
	}
}

func upsampleIdentity(src []byte, w, h int) ([]byte, int, int) { return src, w, h }

// tap is the 3-tap "smooth" triangle filter shared by horizontal and
// vertical x2 upsampling: 3 parts center, 1 part nearest neighbor, scaled
// by 64 with a 128 rounding bias before the final >>8.
func tap(center, neighbor int) byte {
	v := (3*center+neighbor)*64 + 128
	return byte(v >> 8)
}

func upsampleH2(src []byte, w, h int) ([]byte, int, int) {
	dstW := w * 2
	dst := make([]byte, dstW*h)
	for y := 0; y < h; y++ {
		srow := src[y*w : y*w+w]
		drow := dst[y*dstW : y*dstW+dstW]
		for x := 0; x < w; x++ {
			center := int(srow[x])
			left := center
			if x > 0 {
				left = int(srow[x-1])
			}
			right := center
			if x < w-1 {
				right = int(srow[x+1])
			}
			drow[2*x] = tap(center, left)
			drow[2*x+1] = tap(center, right)
		}
	}
	return dst, dstW, h
}

func upsampleV2(src []byte, w, h int) ([]byte, int, int) {
	dstH := h * 2
	dst := make([]byte, w*dstH)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			center := int(src[y*w+x])
			top := center
			if y > 0 {
				top = int(src[(y-1)*w+x])
			}
			bottom := center
			if y < h-1 {
				bottom = int(src[(y+1)*w+x])
			}
			dst[(2*y)*w+x] = tap(center, top)
			dst[(2*y+1)*w+x] = tap(center, bottom)
		}
	}
	return dst, w, dstH
}

func upsampleHV2(src []byte, w, h int) ([]byte, int, int) {
	h2, w2, _ := upsampleH2(src, w, h)
	return upsampleV2(h2, w2, h)
}

// genericUpsampler handles the legal-but-uncommon sampling factors (3, 4)
// with plain nearest-neighbor replication; T.81 does not mandate any
// particular filter outside the common 1x/2x cases.
func genericUpsampler(hRatio, vRatio int) upsampleFunc {
	return func(src []byte, w, h int) ([]byte, int, int) {
		dstW, dstH := w*hRatio, h*vRatio
		dst := make([]byte, dstW*dstH)
		for y := 0; y < dstH; y++ {
			sy := y / vRatio
			for x := 0; x < dstW; x++ {
				sx := x / hRatio
				dst[y*dstW+x] = src[sy*w+sx]
			}
		}
		return dst, dstW, dstH
	}
}
