package jpeg

// Marker values as defined by ITU-T T.81 Table B.1.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDQT  = 0xDB
	markerDNL  = 0xDC
	markerDRI  = 0xDD
	markerDHT  = 0xC4
	markerSOF0 = 0xC0 // baseline sequential
	markerSOF1 = 0xC1 // extended sequential, unsupported
	markerSOF2 = 0xC2 // progressive
	markerSOF3 = 0xC3 // lossless, unsupported
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerAPP0 = 0xE0
	markerAPPF = 0xEF
	markerCOM  = 0xFE
	markerTEM  = 0x01
)

func isRST(marker byte) bool { return marker >= markerRST0 && marker <= markerRST7 }
func isAPPn(marker byte) bool { return marker >= markerAPP0 && marker <= markerAPPF }

// byteSource wraps the input buffer: it locates markers and reads the
// big-endian length-prefixed segments that follow them.
type byteSource struct {
	data []byte
	pos  int
}

func newByteSource(data []byte) *byteSource { return &byteSource{data: data} }

func (s *byteSource) remaining() int { return len(s.data) - s.pos }

func (s *byteSource) readByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, errIo("unexpected end of input")
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *byteSource) readUint16() (uint16, error) {
	if s.remaining() < 2 {
		return 0, errIo("unexpected end of input reading 16-bit value")
	}
	v := uint16(s.data[s.pos])<<8 | uint16(s.data[s.pos+1])
	s.pos += 2
	return v, nil
}

// readSegment reads a standard 2-byte-length-prefixed segment body (the
// length field itself is excluded from the returned slice, but counted:
// a length of N means N-2 further bytes follow).
func (s *byteSource) readSegment() ([]byte, error) {
	length, err := s.readUint16()
	if err != nil {
		return nil, err
	}
	if length < 2 {
		return nil, errFormat("segment length %d is smaller than the length field itself", length)
	}
	n := int(length) - 2
	if s.remaining() < n {
		return nil, errIo("truncated segment: need %d bytes, have %d", n, s.remaining())
	}
	body := s.data[s.pos : s.pos+n]
	s.pos += n
	return body, nil
}

// nextMarker scans forward for the next 0xFF-prefixed marker, tolerating
// 0xFF fill-byte runs (0xFF...0xFF XX) before the discriminating byte. It
// does not interpret byte-stuffed 0xFF00 sequences found while scanning
// for a marker outside a scan; those are only meaningful inside an
// entropy-coded segment, which callers read through the bit reader
// instead of nextMarker.
func (s *byteSource) nextMarker() (byte, error) {
	for {
		b, err := s.readByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			continue
		}
		for {
			b, err = s.readByte()
			if err != nil {
				return 0, err
			}
			if b == 0xFF {
				continue // fill byte, keep scanning
			}
			if b == 0x00 {
				break // stuffed literal 0xFF outside a scan: not a marker, resume scanning
			}
			return b, nil
		}
	}
}
