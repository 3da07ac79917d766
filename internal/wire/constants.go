// Package wire implements length-checked encode/decode of the packed
// binary PLDM messages this responder exchanges: header, command bodies,
// and event-class payloads. Field widths, endianness (little-endian on
// the wire), and reserved bits follow the external PLDM standard
// bit-exact, per spec.md §1/§6.
package wire

// PLDM command codes touched by this responder.
const (
	CmdSetEventReceiver          uint8 = 0x04
	CmdPlatformEventMessage      uint8 = 0x0A
	CmdPollForPlatformEventMsg   uint8 = 0x0B
	CmdGetPDRRepositoryInfo      uint8 = 0x50
	CmdGetPDR                    uint8 = 0x51
)

// PLDM type for platform monitoring and control.
const PldmTypePlatform uint8 = 0x02

// Completion codes, spec.md §7 ErrorCode values projected onto the wire.
const (
	CcSuccess             uint8 = 0x00
	CcError               uint8 = 0x01
	CcInvalidData         uint8 = 0x02
	CcInvalidLength       uint8 = 0x03
	CcNotReady            uint8 = 0x04
	CcUnsupportedPldmCmd  uint8 = 0x05
	CcInvalidRecordHandle uint8 = 0x82
)

// Transfer flags for multi-part transfers (poll responses and GetPDR
// responses share this vocabulary).
const (
	TransferStart       uint8 = 0x00
	TransferMiddle      uint8 = 0x01
	TransferEnd         uint8 = 0x02
	TransferStartAndEnd uint8 = 0x05
)

// Transfer operation flags carried in requests, selecting which part of
// a multi-part transfer the terminus should return next.
const (
	OperationGetFirstPart      uint8 = 0x00
	OperationGetNextPart       uint8 = 0x01
	OperationAcknowledgeOnly   uint8 = 0x02
)

// Event IDs reserved by spec.md §3: never reassembled or dispatched.
const (
	EventIDNone      uint16 = 0x0000
	EventIDTerminate uint16 = 0xFFFF
)

// Event classes dispatched by internal/dispatch, spec.md §4.4.
const (
	EventClassHeartbeatTimerElapsed uint8 = 0x00
	EventClassSensorEvent           uint8 = 0x01
	EventClassPdrRepositoryChg      uint8 = 0x05
	EventClassPldmMessagePoll       uint8 = 0x0A
)

// Sensor event class sub-types, spec.md §4.4.
const (
	SensorEventStateSensorState  uint8 = 0x00
	SensorEventNumericSensorState uint8 = 0x01
)

// PDR repository change event-data formats, spec.md §4.4. Only the first
// three are valid; FormatIsPdrTypes is explicitly rejected.
const (
	EventDataFormatRecordsAdded         uint8 = 0x00
	EventDataFormatRecordsModified      uint8 = 0x01
	EventDataFormatRefreshEntireRepo    uint8 = 0x02
	EventDataFormatIsPdrTypes           uint8 = 0x03
)

// PDR repository change-record operations, spec.md §4.4.
const (
	PdrChangeOpAdded    uint8 = 0x00
	PdrChangeOpRemoved  uint8 = 0x01
	PdrChangeOpModified uint8 = 0x02
)
