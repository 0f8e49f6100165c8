package jpeg

import "github.com/pkg/errors"

// FormatError reports a malformed segment, a bad marker sequence, or any
// other violation of the bare T.81 bitstream grammar.
type FormatError struct{ msg string }

func (e *FormatError) Error() string { return "jpeg: format error: " + e.msg }

// UnsupportedFeatureError reports a syntactically valid but unimplemented
// feature: 12/16-bit precision, arithmetic coding, hierarchical mode, a
// SOFn other than 0 or 2.
type UnsupportedFeatureError struct{ msg string }

func (e *UnsupportedFeatureError) Error() string { return "jpeg: unsupported: " + e.msg }

// HuffmanDecodeError reports an illegal Huffman code or a reference to a
// table that was never defined.
type HuffmanDecodeError struct{ msg string }

func (e *HuffmanDecodeError) Error() string { return "jpeg: huffman decode error: " + e.msg }

// DqtError reports a malformed Define-Quantization-Table segment.
type DqtError struct{ msg string }

func (e *DqtError) Error() string { return "jpeg: DQT error: " + e.msg }

// SofError reports a malformed or out-of-range Start-Of-Frame segment.
type SofError struct{ msg string }

func (e *SofError) Error() string { return "jpeg: SOF error: " + e.msg }

// SosError reports a malformed Start-Of-Scan segment.
type SosError struct{ msg string }

func (e *SosError) Error() string { return "jpeg: SOS error: " + e.msg }

// MCUError reports an unexpected marker encountered mid-scan, or a
// restart-marker sequencing violation in strict mode.
type MCUError struct{ msg string }

func (e *MCUError) Error() string { return "jpeg: MCU error: " + e.msg }

// ZeroDimensionError reports a frame whose width or height decoded to 0.
type ZeroDimensionError struct{ msg string }

func (e *ZeroDimensionError) Error() string { return "jpeg: zero dimension: " + e.msg }

// LimitExceededError reports an image whose declared dimensions exceed the
// configured max_width/max_height guard.
type LimitExceededError struct{ msg string }

func (e *LimitExceededError) Error() string { return "jpeg: limit exceeded: " + e.msg }

// IoError reports truncated or otherwise unreadable input.
type IoError struct{ msg string }

func (e *IoError) Error() string { return "jpeg: io error: " + e.msg }

func errFormat(format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{msg: errors.Errorf(format, args...).Error()})
}

func errUnsupported(format string, args ...interface{}) error {
	return errors.WithStack(&UnsupportedFeatureError{msg: errors.Errorf(format, args...).Error()})
}

func errHuffman(format string, args ...interface{}) error {
	return errors.WithStack(&HuffmanDecodeError{msg: errors.Errorf(format, args...).Error()})
}

func errDqt(format string, args ...interface{}) error {
	return errors.WithStack(&DqtError{msg: errors.Errorf(format, args...).Error()})
}

func errSof(format string, args ...interface{}) error {
	return errors.WithStack(&SofError{msg: errors.Errorf(format, args...).Error()})
}

func errSos(format string, args ...interface{}) error {
	return errors.WithStack(&SosError{msg: errors.Errorf(format, args...).Error()})
}

func errMCU(format string, args ...interface{}) error {
	return errors.WithStack(&MCUError{msg: errors.Errorf(format, args...).Error()})
}

func errZeroDimension(format string, args ...interface{}) error {
	return errors.WithStack(&ZeroDimensionError{msg: errors.Errorf(format, args...).Error()})
}

func errLimitExceeded(format string, args ...interface{}) error {
	return errors.WithStack(&LimitExceededError{msg: errors.Errorf(format, args...).Error()})
}

func errIo(format string, args ...interface{}) error {
	return errors.WithStack(&IoError{msg: errors.Errorf(format, args...).Error()})
}
