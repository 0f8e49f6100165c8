package jpeg

import "golang.org/x/sys/cpu"

// simdAvailable reports whether the running CPU has a feature set this
// package's SIMD-equivalent fast paths are written for. The fast paths
// are portable Go and numerically identical to the scalar ones (see
// idctBlockSIMD / convertRowSIMD); this gate exists so the
// dispatch is made once, at header-parse time, rather than re-evaluated
// inside the per-block hot loop, per the function-pointer-dispatch design
// note.
func simdAvailable() bool {
	switch {
	case cpu.X86.HasSSE2, cpu.X86.HasAVX2:
		return true
	case cpu.ARM64.HasASIMD:
		return true
	}
	return false
}

// kernels bundles the block- and row-level routines chosen once per
// decode, so no per-block branch on Options or CPU features is needed.
type kernels struct {
	idct  func(block *[64]int16, qt *quantTable, out []byte, outOffset, stride int)
	color colorConvertFunc
}

func (d *Decoder) selectKernels() kernels {
	useSIMD := d.opts.useSIMD && simdAvailable()
	k := kernels{idct: idctBlock, color: convertRowScalar}
	if useSIMD {
		k.idct = idctBlockSIMD
		k.color = convertRowSIMD
	}
	return k
}
