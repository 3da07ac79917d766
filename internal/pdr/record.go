// Package pdr implements the Platform Descriptor Record repository: a
// handle-indexed, singly-linked-list store of typed PDR records, built
// at startup from JSON descriptors and mutated afterward only by
// add/remove-by-terminus-handle.
package pdr

// Record types this repository understands. The payload's concrete Go
// type is selected by Header.Type; FilterByType compares Header.Type
// alone, whatever the payload.
const (
	TypeStateSensor      uint8 = 1
	TypeStateEffecter    uint8 = 2
	TypeNumericEffecter  uint8 = 9
	TypeTerminusLocator  uint8 = 11
	TypeEntityAssociation uint8 = 15
	TypeOEM              uint8 = 126
)

// Header is the fixed prefix common to every PDR record, spec.md §3.
type Header struct {
	Handle     uint32
	NextHandle uint32
	Type       uint8
	Version    uint8
	ChangeNum  uint16
}

// Record is one entry in the repository: the common header plus a
// type-specific payload and the raw bytes it was decoded from (GetPDR
// serves RecordData straight from this).
type Record struct {
	Header
	Payload    any
	RecordData []byte
}

// StateSensorPDR describes a sensor whose states are drawn from an
// enumerated set, spec.md §4.4's StateSensorState handling.
type StateSensorPDR struct {
	TerminusHandle  uint16
	SensorID        uint16
	ContainerID     uint16
	EntityType      uint16
	EntityInstance  uint16
	CompositeCount  uint8
	PossibleStates  [][]uint8 // indexed by sensor offset
}

// StateEffecterPDR describes an effecter with enumerated states.
type StateEffecterPDR struct {
	TerminusHandle uint16
	EffecterID     uint16
	ContainerID    uint16
	EntityType     uint16
	EntityInstance uint16
	CompositeCount uint8
	PossibleStates [][]uint8
}

// NumericEffecterPDR describes an effecter with a scalar range.
type NumericEffecterPDR struct {
	TerminusHandle uint16
	EffecterID     uint16
	BaseUnit       uint8
	Resolution     float32
	Offset         float32
	MinSetTable    float64
	MaxSetTable    float64
}

// TerminusLocatorPDR records the transport-level address (MCTP EID) of
// a terminus; the repository is seeded with one for the local BMC
// terminus at handle 1 before any other record.
type TerminusLocatorPDR struct {
	TerminusHandle uint16
	TID            uint8
	MCTPEID        uint8
}

// EntityAssociationPDR records a containment relationship between a
// container entity and its contained entities.
type EntityAssociationPDR struct {
	ContainerID      uint16
	AssociationType  uint8
	ContainerEntity  uint16
	ContainedEntities []uint16
}

// OEMPDR holds a vendor-defined record this repository does not
// interpret, only stores and serves back verbatim.
type OEMPDR struct {
	OEMType uint16
	Data    []byte
}

// terminusHandle extracts the embedded terminus handle from a record's
// payload, used by RemoveByTerminusHandle. Records with no terminus
// association (entity association, OEM) never match.
func terminusHandle(r *Record) (uint16, bool) {
	switch p := r.Payload.(type) {
	case StateSensorPDR:
		return p.TerminusHandle, true
	case StateEffecterPDR:
		return p.TerminusHandle, true
	case NumericEffecterPDR:
		return p.TerminusHandle, true
	case TerminusLocatorPDR:
		return p.TerminusHandle, true
	default:
		return 0, false
	}
}
