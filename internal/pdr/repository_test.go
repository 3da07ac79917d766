package pdr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsDenseHandlesAndLinksNext(t *testing.T) {
	r := New()
	h1 := r.Add(&Record{Header: Header{Type: TypeOEM}, Payload: OEMPDR{OEMType: 1}})
	h2 := r.Add(&Record{Header: Header{Type: TypeOEM}, Payload: OEMPDR{OEMType: 2}})

	assert.Equal(t, uint32(1), h1)
	assert.Equal(t, uint32(2), h2)

	rec1, ok := r.GetByHandle(h1)
	require.True(t, ok)
	assert.Equal(t, h2, rec1.NextHandle)

	rec2, ok := r.GetByHandle(h2)
	require.True(t, ok)
	assert.Equal(t, uint32(0), rec2.NextHandle)
}

func TestGetByHandleZeroAlwaysMisses(t *testing.T) {
	r := New()
	r.Add(&Record{Header: Header{Type: TypeOEM}})
	_, ok := r.GetByHandle(0)
	assert.False(t, ok)
}

func TestGetFirstGetNextTraversal(t *testing.T) {
	r := New()
	r.Add(&Record{Payload: OEMPDR{OEMType: 1}})
	r.Add(&Record{Payload: OEMPDR{OEMType: 2}})
	r.Add(&Record{Payload: OEMPDR{OEMType: 3}})

	cursor, rec, ok := r.GetFirst()
	require.True(t, ok)
	assert.Equal(t, OEMPDR{OEMType: 1}, rec.Payload)

	cursor, rec, ok = r.GetNext(cursor)
	require.True(t, ok)
	assert.Equal(t, OEMPDR{OEMType: 2}, rec.Payload)

	cursor, rec, ok = r.GetNext(cursor)
	require.True(t, ok)
	assert.Equal(t, OEMPDR{OEMType: 3}, rec.Payload)

	_, _, ok = r.GetNext(cursor)
	assert.False(t, ok)
}

func TestFilterByType(t *testing.T) {
	src := New()
	src.Add(&Record{Header: Header{Type: TypeStateSensor}, Payload: StateSensorPDR{SensorID: 1}})
	src.Add(&Record{Header: Header{Type: TypeOEM}, Payload: OEMPDR{OEMType: 9}})
	src.Add(&Record{Header: Header{Type: TypeStateSensor}, Payload: StateSensorPDR{SensorID: 2}})

	dst := New()
	src.FilterByType(dst, TypeStateSensor)

	_, rec1, ok := dst.GetFirst()
	require.True(t, ok)
	assert.Equal(t, StateSensorPDR{SensorID: 1}, rec1.Payload)

	_, rec2, ok := dst.GetNext(rec1.Handle)
	require.True(t, ok)
	assert.Equal(t, StateSensorPDR{SensorID: 2}, rec2.Payload)
}

func TestRemoveByTerminusHandle(t *testing.T) {
	r := New()
	r.Add(&Record{Header: Header{Type: TypeStateSensor}, Payload: StateSensorPDR{TerminusHandle: 1, SensorID: 10}})
	r.Add(&Record{Header: Header{Type: TypeStateSensor}, Payload: StateSensorPDR{TerminusHandle: 2, SensorID: 20}})
	r.Add(&Record{Header: Header{Type: TypeEntityAssociation}, Payload: EntityAssociationPDR{}})

	removed := r.RemoveByTerminusHandle(1)
	assert.Equal(t, 1, removed)
	assert.False(t, r.Empty())

	_, rec, ok := r.GetFirst()
	require.True(t, ok)
	assert.Equal(t, StateSensorPDR{TerminusHandle: 2, SensorID: 20}, rec.Payload)
}

func TestEmpty(t *testing.T) {
	r := New()
	assert.True(t, r.Empty())
	r.Add(&Record{})
	assert.False(t, r.Empty())
}

// writeJSON writes a single-category PDR file with the given raw
// object body (a literal JSON object with effecterPDRs/sensorPDRs
// keys) under dir/name.
func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestBuildFromDirectorySeedsTerminusLocatorFirst(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "state_sensor.json", `{
		"sensorPDRs": [
			{"pdrType": "stateSensor", "terminusHandle": 1, "sensorId": 7, "possibleStates": [[0, 1]]}
		]
	}`)

	r := New()
	require.NoError(t, BuildFromDirectory(r, dir, nil))

	_, first, ok := r.GetFirst()
	require.True(t, ok)
	locator, isLocator := first.Payload.(TerminusLocatorPDR)
	require.True(t, isLocator)
	assert.Equal(t, uint16(1), locator.TerminusHandle)

	_, second, ok := r.GetNext(first.Handle)
	require.True(t, ok)
	sensor, isSensor := second.Payload.(StateSensorPDR)
	require.True(t, isSensor)
	assert.Equal(t, uint16(7), sensor.SensorID)
}

// TestBuildFromDirectoryParsesCategoryArrayFixture exercises the
// documented external configuration format directly: one file per
// category, each carrying effecterPDRs/sensorPDRs arrays whose entries
// are discriminated by pdrType.
func TestBuildFromDirectoryParsesCategoryArrayFixture(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "sensors.json", `{
		"sensorPDRs": [
			{"pdrType": "stateSensor", "terminusHandle": 1, "sensorId": 42, "possibleStates": [[0, 1, 2]]}
		]
	}`)
	writeJSON(t, dir, "effecters.json", `{
		"effecterPDRs": [
			{"pdrType": "stateEffecter", "terminusHandle": 1, "effecterId": 5, "possibleStates": [[0, 1]]},
			{"pdrType": "numericEffecter", "terminusHandle": 1, "effecterId": 6, "baseUnit": 2, "resolution": 1.5, "offset": 0.5, "minSetTable": 0, "maxSetTable": 100},
			{"pdrType": "entityAssociation", "containerId": 9, "associationType": 1, "containerEntity": 3, "containedEntities": [10, 11]},
			{"pdrType": "oem", "oemType": 1}
		]
	}`)

	r := New()
	require.NoError(t, BuildFromDirectory(r, dir, nil))

	var sensors, stateEffecters, numericEffecters, associations, oems int
	for _, rec := range r.records {
		switch rec.Payload.(type) {
		case StateSensorPDR:
			sensors++
		case StateEffecterPDR:
			stateEffecters++
		case NumericEffecterPDR:
			numericEffecters++
		case EntityAssociationPDR:
			associations++
		case OEMPDR:
			oems++
		}
	}
	assert.Equal(t, 1, sensors)
	assert.Equal(t, 1, stateEffecters)
	assert.Equal(t, 1, numericEffecters)
	assert.Equal(t, 1, associations)
	assert.Equal(t, 1, oems)
}

// TestBuildFromDirectorySkipsMalformedFilesAndEntries confirms per-file
// ingestion errors are logged and skipped rather than propagated, and
// that a record's siblings in the same array still get ingested.
func TestBuildFromDirectorySkipsMalformedFilesAndEntries(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "broken.json", `{not valid json`)
	writeJSON(t, dir, "mixed.json", `{
		"sensorPDRs": [
			{"pdrType": "stateSensor", "terminusHandle": 1, "sensorId": 1, "possibleStates": [[0, 1]]},
			{"pdrType": "unknownKind", "terminusHandle": 1}
		]
	}`)

	r := New()
	require.NoError(t, BuildFromDirectory(r, dir, nil))

	_, first, ok := r.GetFirst()
	require.True(t, ok)
	_, isLocator := first.Payload.(TerminusLocatorPDR)
	require.True(t, isLocator)

	_, second, ok := r.GetNext(first.Handle)
	require.True(t, ok)
	sensor, isSensor := second.Payload.(StateSensorPDR)
	require.True(t, isSensor)
	assert.Equal(t, uint16(1), sensor.SensorID)

	// Nothing past the one valid entry: the broken file and the
	// unrecognized-pdrType entry contributed no records.
	_, _, ok = r.GetNext(second.Handle)
	assert.False(t, ok)
}

func TestBuildFromDirectoryMissingSubdirIsNotError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	r := New()
	assert.NoError(t, BuildFromDirectory(r, dir, nil))
	assert.False(t, r.Empty()) // terminus locator is always seeded
}

func TestBuildFromDirectoryWithLocatorOverridesIdentity(t *testing.T) {
	dir := t.TempDir()
	r := New()

	override := TerminusLocatorPDR{TerminusHandle: 42, TID: 9, MCTPEID: 200}
	require.NoError(t, BuildFromDirectoryWithLocator(r, dir, override, nil))

	_, first, ok := r.GetFirst()
	require.True(t, ok)
	locator, isLocator := first.Payload.(TerminusLocatorPDR)
	require.True(t, isLocator)
	assert.Equal(t, override, locator)
}
