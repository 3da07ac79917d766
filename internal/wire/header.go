package wire

import "fmt"

// Header is the 3-byte PLDM message header common to every request and
// response: RQ/D bits, instance id, header version, PLDM type, and
// command code.
type Header struct {
	Request    bool // RQ: this is a request (vs. response)
	Datagram   bool // D: no response is expected
	InstanceID uint8
	Type       uint8
	Command    uint8
}

const headerVersion uint8 = 0

// HeaderSize is the length of the encoded header in bytes.
const HeaderSize = 3

// Encode packs the header into its 3-byte wire form.
func (h Header) Encode() ([]byte, error) {
	if h.InstanceID > 0x1F {
		return nil, fmt.Errorf("wire: instance id %d out of range", h.InstanceID)
	}
	if h.Type > 0x3F {
		return nil, fmt.Errorf("wire: pldm type %d out of range", h.Type)
	}
	buf := make([]byte, HeaderSize)
	var b0 uint8
	if h.Request {
		b0 |= 1 << 7
	}
	if h.Datagram {
		b0 |= 1 << 6
	}
	b0 |= h.InstanceID & 0x1F
	buf[0] = b0
	buf[1] = (headerVersion << 6) | (h.Type & 0x3F)
	buf[2] = h.Command
	return buf, nil
}

// DecodeHeader unpacks the 3-byte wire header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrInsufficientData
	}
	return Header{
		Request:    data[0]&(1<<7) != 0,
		Datagram:   data[0]&(1<<6) != 0,
		InstanceID: data[0] & 0x1F,
		Type:       data[1] & 0x3F,
		Command:    data[2],
	}, nil
}

// EncodeResponseHeader packs a response header followed by its
// completion code, the minimal valid response body on any error path
// per spec.md §7.
func EncodeResponseHeader(h Header, completionCode uint8) ([]byte, error) {
	h.Request = false
	hdr, err := h.Encode()
	if err != nil {
		return nil, err
	}
	return append(hdr, completionCode), nil
}
