package wasmbin

import "errors"

// ErrOverflow is returned when a LEB128 value exceeds its bit width.
var ErrOverflow = errors.New("leb128: overflow")

// ErrTruncated is returned when the input ends mid-value.
var ErrTruncated = errors.New("leb128: truncated")

// AppendUleb appends an unsigned 32-bit LEB128 value.
func AppendUleb(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendUleb64 appends an unsigned 64-bit LEB128 value.
func AppendUleb64(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendSleb appends a signed LEB128 value.
func AppendSleb[T int32 | int64](dst []byte, v T) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// Uleb decodes an unsigned 32-bit LEB128 value from the front of data and
// returns the value and the number of bytes consumed.
func Uleb(data []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i, b := range data {
		if shift >= 35 {
			return 0, i, ErrOverflow
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, len(data), ErrTruncated
}

// Uleb64 decodes an unsigned 64-bit LEB128 value from the front of data.
func Uleb64(data []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, b := range data {
		if shift >= 70 {
			return 0, i, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, len(data), ErrTruncated
}

// Sleb decodes a signed 32-bit LEB128 value from the front of data.
func Sleb(data []byte) (int32, int, error) {
	var result int32
	var shift uint
	for i, b := range data {
		if shift >= 35 {
			return 0, i, ErrOverflow
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= ^int32(0) << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, len(data), ErrTruncated
}

// Sleb64 decodes a signed 64-bit LEB128 value from the front of data.
func Sleb64(data []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i, b := range data {
		if shift >= 70 {
			return 0, i, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, len(data), ErrTruncated
}
