package wire

import "encoding/binary"

// GetPDRRequest is the request body for the GetPDR command, the PDR
// repository's external read path, spec.md §4.3.
type GetPDRRequest struct {
	RecordHandle          uint32
	DataTransferHandle    uint32
	TransferOperationFlag uint8
	RequestCount          uint16
	RecordChangeNumber    uint16
}

// DecodeGetPDRRequest unpacks the request body (13 bytes).
func DecodeGetPDRRequest(data []byte) (*GetPDRRequest, error) {
	if len(data) < 13 {
		return nil, ErrInsufficientData
	}
	return &GetPDRRequest{
		RecordHandle:          binary.LittleEndian.Uint32(data[0:4]),
		DataTransferHandle:    binary.LittleEndian.Uint32(data[4:8]),
		TransferOperationFlag: data[8],
		RequestCount:          binary.LittleEndian.Uint16(data[9:11]),
		RecordChangeNumber:    binary.LittleEndian.Uint16(data[11:13]),
	}, nil
}

// Encode packs the request body.
func (r *GetPDRRequest) Encode() []byte {
	buf := make([]byte, 13)
	binary.LittleEndian.PutUint32(buf[0:4], r.RecordHandle)
	binary.LittleEndian.PutUint32(buf[4:8], r.DataTransferHandle)
	buf[8] = r.TransferOperationFlag
	binary.LittleEndian.PutUint16(buf[9:11], r.RequestCount)
	binary.LittleEndian.PutUint16(buf[11:13], r.RecordChangeNumber)
	return buf
}

// GetPDRResponse is the response body for the GetPDR command.
type GetPDRResponse struct {
	CompletionCode         uint8
	NextRecordHandle       uint32
	NextDataTransferHandle uint32
	TransferFlag           uint8
	RecordData             []byte
}

// getPDRRespPrefixSize is completionCode(1) + nextRecordHandle(4) +
// nextDataTransferHandle(4) + transferFlag(1) + responseCount(2).
const getPDRRespPrefixSize = 12

// Encode packs the response body. On any completion code other than
// CcSuccess it emits just {CompletionCode} — a bare error response, per
// spec.md §7.
func (r *GetPDRResponse) Encode() []byte {
	if r.CompletionCode != CcSuccess {
		return []byte{r.CompletionCode}
	}
	buf := make([]byte, getPDRRespPrefixSize+len(r.RecordData))
	buf[0] = r.CompletionCode
	binary.LittleEndian.PutUint32(buf[1:5], r.NextRecordHandle)
	binary.LittleEndian.PutUint32(buf[5:9], r.NextDataTransferHandle)
	buf[9] = r.TransferFlag
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(r.RecordData)))
	copy(buf[getPDRRespPrefixSize:], r.RecordData)
	return buf
}

// DecodeGetPDRResponse unpacks the response body.
func DecodeGetPDRResponse(data []byte) (*GetPDRResponse, error) {
	if len(data) < 1 {
		return nil, ErrInsufficientData
	}
	r := &GetPDRResponse{CompletionCode: data[0]}
	if r.CompletionCode != CcSuccess {
		return r, nil
	}
	if len(data) < getPDRRespPrefixSize {
		return nil, ErrInsufficientData
	}
	r.NextRecordHandle = binary.LittleEndian.Uint32(data[1:5])
	r.NextDataTransferHandle = binary.LittleEndian.Uint32(data[5:9])
	r.TransferFlag = data[9]
	r.RecordData = data[getPDRRespPrefixSize:]
	return r, nil
}
