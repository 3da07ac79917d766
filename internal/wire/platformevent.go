package wire

import "encoding/binary"

// PlatformEventMessageRequest carries an unsolicited event pushed from a
// terminus to this responder, decoded and routed by internal/dispatch
// per spec.md §4.4.
type PlatformEventMessageRequest struct {
	FormatVersion uint8
	TID           uint8
	EventClass    uint8
	EventData     []byte
}

// DecodePlatformEventMessageRequest unpacks the request body (3-byte
// fixed prefix followed by class-specific event data).
func DecodePlatformEventMessageRequest(data []byte) (*PlatformEventMessageRequest, error) {
	if len(data) < 3 {
		return nil, ErrInsufficientData
	}
	return &PlatformEventMessageRequest{
		FormatVersion: data[0],
		TID:           data[1],
		EventClass:    data[2],
		EventData:     data[3:],
	}, nil
}

// Encode packs the request body.
func (r *PlatformEventMessageRequest) Encode() []byte {
	buf := make([]byte, 3+len(r.EventData))
	buf[0] = r.FormatVersion
	buf[1] = r.TID
	buf[2] = r.EventClass
	copy(buf[3:], r.EventData)
	return buf
}

// PlatformEventMessageResponse is the response to a PlatformEventMessage:
// the completion code plus the platform event status on success, and
// the completion code alone on any error, per spec.md §7.
type PlatformEventMessageResponse struct {
	CompletionCode      uint8
	PlatformEventStatus uint8
}

// Encode packs the response body.
func (r *PlatformEventMessageResponse) Encode() []byte {
	if r.CompletionCode != CcSuccess {
		return []byte{r.CompletionCode}
	}
	return []byte{r.CompletionCode, r.PlatformEventStatus}
}

// DecodePlatformEventMessageResponse unpacks the response body.
func DecodePlatformEventMessageResponse(data []byte) (*PlatformEventMessageResponse, error) {
	if len(data) >= 1 && data[0] != CcSuccess {
		return &PlatformEventMessageResponse{CompletionCode: data[0]}, nil
	}
	if len(data) < 2 {
		return nil, ErrInsufficientData
	}
	return &PlatformEventMessageResponse{
		CompletionCode:      data[0],
		PlatformEventStatus: data[1],
	}, nil
}

// SensorEventData is the class-specific body of a SensorEvent,
// spec.md §4.4. Only one of StateSensor/NumericSensor is meaningful,
// selected by SensorEventClassType.
type SensorEventData struct {
	SensorID             uint16
	SensorEventClassType uint8

	// Populated when SensorEventClassType == SensorEventStateSensorState.
	SensorOffset     uint8
	EventState       uint8
	PreviousState    uint8

	// Populated when SensorEventClassType == SensorEventNumericSensorState.
	EventStateNumeric  uint8
	PreviousStateNumeric uint8
	SensorDataSize     uint8
	PresentReading     []byte
}

// DecodeSensorEventData unpacks a SensorEvent's event data.
func DecodeSensorEventData(data []byte) (*SensorEventData, error) {
	if len(data) < 3 {
		return nil, ErrInsufficientData
	}
	d := &SensorEventData{
		SensorID:             binary.LittleEndian.Uint16(data[0:2]),
		SensorEventClassType: data[2],
	}
	rest := data[3:]
	switch d.SensorEventClassType {
	case SensorEventStateSensorState:
		if len(rest) < 3 {
			return nil, ErrInsufficientData
		}
		d.SensorOffset = rest[0]
		d.EventState = rest[1]
		d.PreviousState = rest[2]
	case SensorEventNumericSensorState:
		if len(rest) < 3 {
			return nil, ErrInsufficientData
		}
		d.EventStateNumeric = rest[0]
		d.PreviousStateNumeric = rest[1]
		d.SensorDataSize = rest[2]
		d.PresentReading = rest[3:]
	default:
		return nil, ErrInvalidTransferFlag
	}
	return d, nil
}

// PldmMessagePollEventData is the class-specific body of a
// PldmMessagePoll event, spec.md §4.4.
type PldmMessagePollEventData struct {
	FormatVersion      uint8
	EventID            uint16
	DataTransferHandle uint32
}

// DecodePldmMessagePollEventData unpacks the event data.
func DecodePldmMessagePollEventData(data []byte) (*PldmMessagePollEventData, error) {
	if len(data) < 7 {
		return nil, ErrInsufficientData
	}
	return &PldmMessagePollEventData{
		FormatVersion:      data[0],
		EventID:            binary.LittleEndian.Uint16(data[1:3]),
		DataTransferHandle: binary.LittleEndian.Uint32(data[3:7]),
	}, nil
}

// PdrChangeRecord is one change record within a PdrRepositoryChg event.
type PdrChangeRecord struct {
	EventDataOperation uint8
	ChangeEntries      []uint32
}

// PdrRepositoryChgEventData is the class-specific body of a
// PdrRepositoryChg event, spec.md §4.4.
type PdrRepositoryChgEventData struct {
	EventDataFormat uint8
	ChangeRecords   []PdrChangeRecord
}

// DecodePdrRepositoryChgEventData unpacks the event data.
func DecodePdrRepositoryChgEventData(data []byte) (*PdrRepositoryChgEventData, error) {
	if len(data) < 2 {
		return nil, ErrInsufficientData
	}
	d := &PdrRepositoryChgEventData{EventDataFormat: data[0]}
	numRecords := int(data[1])
	pos := 2
	for i := 0; i < numRecords; i++ {
		if pos+2 > len(data) {
			return nil, ErrInsufficientData
		}
		op := data[pos]
		numEntries := int(data[pos+1])
		pos += 2
		entries := make([]uint32, 0, numEntries)
		for j := 0; j < numEntries; j++ {
			if pos+4 > len(data) {
				return nil, ErrInsufficientData
			}
			entries = append(entries, binary.LittleEndian.Uint32(data[pos:pos+4]))
			pos += 4
		}
		d.ChangeRecords = append(d.ChangeRecords, PdrChangeRecord{
			EventDataOperation: op,
			ChangeEntries:      entries,
		})
	}
	return d, nil
}
