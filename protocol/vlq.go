package protocol

import "errors"

var (
	// ErrShortBuffer reports a VLQ cut off mid-value.
	ErrShortBuffer = errors.New("protocol: buffer too small for VLQ")
)

// AppendUint appends v in variable-length (7 bits per byte, high bit as
// continuation) encoding and returns the extended slice.
func AppendUint(buf []byte, v uint32) []byte {
	if v >= 1<<28 {
		buf = append(buf, byte(v>>28)&0x7F|0x80)
	}
	if v >= 1<<21 {
		buf = append(buf, byte(v>>21)&0x7F|0x80)
	}
	if v >= 1<<14 {
		buf = append(buf, byte(v>>14)&0x7F|0x80)
	}
	if v >= 1<<7 {
		buf = append(buf, byte(v>>7)&0x7F|0x80)
	}
	return append(buf, byte(v)&0x7F)
}

// ReadUint decodes one variable-length value, advancing *data past the
// consumed bytes.
func ReadUint(data *[]byte) (uint32, error) {
	var v uint32
	for {
		if len(*data) == 0 {
			return 0, ErrShortBuffer
		}
		c := (*data)[0]
		*data = (*data)[1:]
		v = v<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return v, nil
		}
	}
}

// AppendBytes appends a length-prefixed byte string.
func AppendBytes(buf, data []byte) []byte {
	buf = AppendUint(buf, uint32(len(data)))
	return append(buf, data...)
}

// ReadBytes decodes a length-prefixed byte string, advancing *data.
func ReadBytes(data *[]byte) ([]byte, error) {
	length, err := ReadUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < length {
		return nil, ErrShortBuffer
	}
	result := (*data)[:length]
	*data = (*data)[length:]
	return result, nil
}
