package pdr

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/obmc-pldm/pldm/internal/constants"
	"github.com/obmc-pldm/pldm/internal/interfaces"
)

// pdrFileJSON is the on-disk shape of one PDR JSON descriptor file: a
// category carrying zero or more effecter records and/or zero or more
// sensor records, spec.md §6. Each entry's pdrType field selects the
// concrete PDR kind it decodes to, independent of which array it rode
// in on.
type pdrFileJSON struct {
	EffecterPDRs []json.RawMessage `json:"effecterPDRs"`
	SensorPDRs   []json.RawMessage `json:"sensorPDRs"`
}

type pdrTypeTag struct {
	PDRType string `json:"pdrType"`
}

// PDR type tags as they appear in the pdrType field of a JSON entry.
const (
	pdrTypeStateSensor       = "stateSensor"
	pdrTypeStateEffecter     = "stateEffecter"
	pdrTypeNumericEffecter   = "numericEffecter"
	pdrTypeEntityAssociation = "entityAssociation"
	pdrTypeOEM               = "oem"
)

type stateSensorJSON struct {
	PDRType        string    `json:"pdrType"`
	TerminusHandle uint16    `json:"terminusHandle"`
	SensorID       uint16    `json:"sensorId"`
	ContainerID    uint16    `json:"containerId"`
	EntityType     uint16    `json:"entityType"`
	EntityInstance uint16    `json:"entityInstance"`
	PossibleStates [][]uint8 `json:"possibleStates"`
}

type stateEffecterJSON struct {
	PDRType        string    `json:"pdrType"`
	TerminusHandle uint16    `json:"terminusHandle"`
	EffecterID     uint16    `json:"effecterId"`
	ContainerID    uint16    `json:"containerId"`
	EntityType     uint16    `json:"entityType"`
	EntityInstance uint16    `json:"entityInstance"`
	PossibleStates [][]uint8 `json:"possibleStates"`
}

type numericEffecterJSON struct {
	PDRType        string  `json:"pdrType"`
	TerminusHandle uint16  `json:"terminusHandle"`
	EffecterID     uint16  `json:"effecterId"`
	BaseUnit       uint8   `json:"baseUnit"`
	Resolution     float32 `json:"resolution"`
	Offset         float32 `json:"offset"`
	MinSetTable    float64 `json:"minSetTable"`
	MaxSetTable    float64 `json:"maxSetTable"`
}

type entityAssociationJSON struct {
	PDRType           string   `json:"pdrType"`
	ContainerID       uint16   `json:"containerId"`
	AssociationType   uint8    `json:"associationType"`
	ContainerEntity   uint16   `json:"containerEntity"`
	ContainedEntities []uint16 `json:"containedEntities"`
}

type oemJSON struct {
	PDRType string `json:"pdrType"`
	OEMType uint16 `json:"oemType"`
	Data    []byte `json:"data"`
}

// BuildFromDirectory populates an empty repository from a directory of
// JSON descriptors, using the compiled-in terminus identity
// (internal/constants' TerminusHandle/TerminusID/BmcMctpEID). See
// BuildFromDirectoryWithLocator for overriding that identity at
// runtime. logger may be nil.
func BuildFromDirectory(r *Repository, dir string, logger interfaces.Logger) error {
	return BuildFromDirectoryWithLocator(r, dir, TerminusLocatorPDR{
		TerminusHandle: constants.TerminusHandle,
		TID:            constants.TerminusID,
		MCTPEID:        constants.BmcMctpEID,
	}, logger)
}

// BuildFromDirectoryWithLocator is BuildFromDirectory, but seeds the
// terminus-locator PDR from locator instead of the compiled-in default —
// for callers honoring the TERMINUS_HANDLE/TERMINUS_ID/BMC_MCTP_EID
// environment overrides from spec.md §6.
//
// dir holds one file per PDR-type category; each file carries an
// effecterPDRs and/or sensorPDRs array, and each array entry carries a
// pdrType field selecting its decoder. Files are read in lexical
// filename order for determinism; a file that fails to parse as JSON,
// or an array entry with an unrecognized pdrType, is logged and
// skipped rather than aborting ingestion, per spec.md §7. The
// terminus-locator PDR is always seeded first, at handle 1, per
// spec.md §4.3's lifecycle note — regardless of what dir contains,
// since this terminus locates itself.
func BuildFromDirectoryWithLocator(r *Repository, dir string, locator TerminusLocatorPDR, logger interfaces.Logger) error {
	r.Add(&Record{
		Header:  Header{Type: TypeTerminusLocator, Version: 1},
		Payload: locator,
	})

	names, err := jsonFileNames(dir)
	if err != nil {
		return err
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			logWarn(logger, "pdr: skipping unreadable PDR file", "path", path, "error", err)
			continue
		}

		var file pdrFileJSON
		if err := json.Unmarshal(raw, &file); err != nil {
			logWarn(logger, "pdr: skipping malformed PDR file", "path", path, "error", err)
			continue
		}

		for _, entry := range append(append([]json.RawMessage{}, file.SensorPDRs...), file.EffecterPDRs...) {
			ingestEntry(r, path, entry, logger)
		}
	}
	return nil
}

// jsonFileNames lists the *.json files directly under dir, sorted for
// determinism. A missing dir is not an error: it yields no files.
func jsonFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ingestEntry decodes one array entry by its pdrType tag and adds the
// resulting record. A decode failure or unrecognized pdrType is logged
// and skipped.
func ingestEntry(r *Repository, path string, raw json.RawMessage, logger interfaces.Logger) {
	var tag pdrTypeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		logWarn(logger, "pdr: skipping malformed PDR entry", "path", path, "error", err)
		return
	}

	var (
		typ     uint8
		payload any
		err     error
	)
	switch tag.PDRType {
	case pdrTypeStateSensor:
		typ = TypeStateSensor
		payload, err = decodeStateSensor(raw)
	case pdrTypeStateEffecter:
		typ = TypeStateEffecter
		payload, err = decodeStateEffecter(raw)
	case pdrTypeNumericEffecter:
		typ = TypeNumericEffecter
		payload, err = decodeNumericEffecter(raw)
	case pdrTypeEntityAssociation:
		typ = TypeEntityAssociation
		payload, err = decodeEntityAssociation(raw)
	case pdrTypeOEM:
		typ = TypeOEM
		payload, err = decodeOEM(raw)
	default:
		logWarn(logger, "pdr: skipping PDR entry with unrecognized pdrType", "path", path, "pdrType", tag.PDRType)
		return
	}
	if err != nil {
		logWarn(logger, "pdr: skipping malformed PDR entry", "path", path, "pdrType", tag.PDRType, "error", err)
		return
	}

	r.Add(&Record{
		Header:     Header{Type: typ, Version: 1},
		Payload:    payload,
		RecordData: []byte(raw),
	})
}

func decodeStateSensor(raw json.RawMessage) (any, error) {
	var v stateSensorJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return StateSensorPDR{
		TerminusHandle: v.TerminusHandle,
		SensorID:       v.SensorID,
		ContainerID:    v.ContainerID,
		EntityType:     v.EntityType,
		EntityInstance: v.EntityInstance,
		CompositeCount: uint8(len(v.PossibleStates)),
		PossibleStates: v.PossibleStates,
	}, nil
}

func decodeStateEffecter(raw json.RawMessage) (any, error) {
	var v stateEffecterJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return StateEffecterPDR{
		TerminusHandle: v.TerminusHandle,
		EffecterID:     v.EffecterID,
		ContainerID:    v.ContainerID,
		EntityType:     v.EntityType,
		EntityInstance: v.EntityInstance,
		CompositeCount: uint8(len(v.PossibleStates)),
		PossibleStates: v.PossibleStates,
	}, nil
}

func decodeNumericEffecter(raw json.RawMessage) (any, error) {
	var v numericEffecterJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return NumericEffecterPDR{
		TerminusHandle: v.TerminusHandle,
		EffecterID:     v.EffecterID,
		BaseUnit:       v.BaseUnit,
		Resolution:     v.Resolution,
		Offset:         v.Offset,
		MinSetTable:    v.MinSetTable,
		MaxSetTable:    v.MaxSetTable,
	}, nil
}

func decodeEntityAssociation(raw json.RawMessage) (any, error) {
	var v entityAssociationJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return EntityAssociationPDR{
		ContainerID:       v.ContainerID,
		AssociationType:   v.AssociationType,
		ContainerEntity:   v.ContainerEntity,
		ContainedEntities: v.ContainedEntities,
	}, nil
}

func decodeOEM(raw json.RawMessage) (any, error) {
	var v oemJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return OEMPDR{OEMType: v.OEMType, Data: v.Data}, nil
}

func logWarn(logger interfaces.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
