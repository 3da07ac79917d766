package wire

import "encoding/binary"

// PollForPlatformEventMessageRequest is the request body the poller
// sends to ask a terminus for the next part of (or the start of) a
// platform event, spec.md §4.2.
type PollForPlatformEventMessageRequest struct {
	FormatVersion          uint8
	TransferOperationFlag  uint8
	DataTransferHandle     uint32
}

// Encode packs the request body (6 bytes).
func (r *PollForPlatformEventMessageRequest) Encode() []byte {
	buf := make([]byte, 6)
	buf[0] = r.FormatVersion
	buf[1] = r.TransferOperationFlag
	binary.LittleEndian.PutUint32(buf[2:6], r.DataTransferHandle)
	return buf
}

// DecodePollForPlatformEventMessageRequest unpacks the request body.
func DecodePollForPlatformEventMessageRequest(data []byte) (*PollForPlatformEventMessageRequest, error) {
	if len(data) < 6 {
		return nil, ErrInsufficientData
	}
	return &PollForPlatformEventMessageRequest{
		FormatVersion:         data[0],
		TransferOperationFlag: data[1],
		DataTransferHandle:    binary.LittleEndian.Uint32(data[2:6]),
	}, nil
}

// PollForPlatformEventMessageResponse is the response body returned by
// the terminus. EventData holds this part's payload bytes; Checksum is
// only meaningful (and only present on the wire) when TransferFlag is
// TransferEnd, per spec.md §3's CRC invariant.
type PollForPlatformEventMessageResponse struct {
	CompletionCode          uint8
	TID                     uint8
	EventClass              uint8
	EventID                 uint16
	NextDataTransferHandle  uint32
	TransferFlag            uint8
	EventData               []byte
	Checksum                uint32
	HasChecksum             bool
}

// Encode packs the response body. The fixed prefix is 13 bytes
// (completion, tid, eventClass, eventID, nextHandle, transferFlag, then
// three bytes that Encode leaves zero and the decoder skips);
// EventData follows, and a 4-byte checksum trails when HasChecksum.
func (r *PollForPlatformEventMessageResponse) Encode() []byte {
	size := 13 + len(r.EventData)
	if r.HasChecksum {
		size += 4
	}
	buf := make([]byte, size)
	buf[0] = r.CompletionCode
	buf[1] = r.TID
	buf[2] = r.EventClass
	binary.LittleEndian.PutUint16(buf[3:5], r.EventID)
	binary.LittleEndian.PutUint32(buf[5:9], r.NextDataTransferHandle)
	buf[9] = r.TransferFlag
	copy(buf[13:13+len(r.EventData)], r.EventData)
	if r.HasChecksum {
		binary.LittleEndian.PutUint32(buf[13+len(r.EventData):], r.Checksum)
	}
	return buf
}

// DecodePollForPlatformEventMessageResponse unpacks the response body.
// hasChecksum tells the decoder whether the trailing 4 bytes are a CRC
// (the wire carries no explicit length field for EventData, so the
// caller — who knows the transfer flag — must say which case applies).
func DecodePollForPlatformEventMessageResponse(data []byte, hasChecksum bool) (*PollForPlatformEventMessageResponse, error) {
	if len(data) < 13 {
		return nil, ErrInsufficientData
	}
	r := &PollForPlatformEventMessageResponse{
		CompletionCode:         data[0],
		TID:                    data[1],
		EventClass:             data[2],
		EventID:                binary.LittleEndian.Uint16(data[3:5]),
		NextDataTransferHandle: binary.LittleEndian.Uint32(data[5:9]),
		TransferFlag:           data[9],
		HasChecksum:            hasChecksum,
	}
	rest := data[13:]
	if hasChecksum {
		if len(rest) < 4 {
			return nil, ErrInsufficientData
		}
		r.EventData = rest[:len(rest)-4]
		r.Checksum = binary.LittleEndian.Uint32(rest[len(rest)-4:])
	} else {
		r.EventData = rest
	}
	return r, nil
}
