package bios

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDBus struct {
	values map[string]any
}

func (f *fakeDBus) ReadProperty(path, iface, property string) (any, bool) {
	v, ok := f.values[path+"|"+iface+"|"+property]
	return v, ok
}

func TestSetupIsIdempotent(t *testing.T) {
	r := New(nil)
	err := r.Setup(
		[]EnumAttribute{{Name: "A", DefaultValues: []string{"x"}}},
		nil, nil,
	)
	require.NoError(t, err)
	assert.False(t, r.Empty())

	// Second call, even with different data, is a no-op.
	err = r.Setup(
		[]EnumAttribute{{Name: "B", DefaultValues: []string{"y"}}},
		nil, nil,
	)
	require.NoError(t, err)
	_, ok := r.CurrentEnumValue("B")
	assert.False(t, ok, "second Setup call must not install new attributes")
}

func TestValidateStringInfoRejectsBadBounds(t *testing.T) {
	err := validateStringInfo(StringAttribute{MinLength: 10, MaxLength: 2})
	assert.Error(t, err)
}

func TestValidateStringInfoRejectsMismatchedDefaultLen(t *testing.T) {
	err := validateStringInfo(StringAttribute{MinLength: 0, MaxLength: 10, DefaultLen: 3, Default: "ab"})
	assert.Error(t, err)
}

func TestValidateIntegerInfoRejectsNonDividingIncrement(t *testing.T) {
	err := validateIntegerInfo(IntegerAttribute{Lower: 0, Upper: 10, ScalarIncrement: 3, Default: 0})
	assert.Error(t, err)
}

func TestValidateIntegerInfoAcceptsDividingIncrement(t *testing.T) {
	err := validateIntegerInfo(IntegerAttribute{Lower: 0, Upper: 10, ScalarIncrement: 5, Default: 5})
	assert.NoError(t, err)
}

func TestCurrentEnumValueFallsBackToDefault(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Setup([]EnumAttribute{
		{Name: "Power", DefaultValues: []string{"Off"}},
	}, nil, nil))

	v, ok := r.CurrentEnumValue("Power")
	require.True(t, ok)
	assert.Equal(t, "Off", v)
}

func TestCurrentEnumValueResolvesFromDBus(t *testing.T) {
	dbus := &fakeDBus{values: map[string]any{"/xyz/power|iface|State": "on"}}
	r := New(dbus)
	require.NoError(t, r.Setup([]EnumAttribute{
		{
			Name:          "Power",
			DefaultValues: []string{"Off"},
			DBusValueMap:  map[any]string{"on": "On"},
			ObjectPath:    "/xyz/power",
			Interface:     "iface",
			Property:      "State",
		},
	}, nil, nil))

	v, ok := r.CurrentEnumValue("Power")
	require.True(t, ok)
	assert.Equal(t, "On", v)
}

func TestSetupFromFilesMissingFilesAreEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	count, err := SetupFromFiles(r, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, count)
	assert.True(t, r.Empty())
}

func TestSetupFromFilesReadsDescriptors(t *testing.T) {
	dir := t.TempDir()
	enums, err := json.Marshal([]enumJSON{{Name: "Power", DefaultValues: []string{"Off"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enum_attrs.json"), enums, 0o644))

	r := New(nil)
	count, err := SetupFromFiles(r, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	v, ok := r.CurrentEnumValue("Power")
	require.True(t, ok)
	assert.Equal(t, "Off", v)
}

func TestSetupFromFilesSkipsMalformedFileButKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enum_attrs.json"), []byte(`not valid json`), 0o644))
	strs, err := json.Marshal([]stringJSON{{Name: "AssetTag", MaxLength: 10, DefaultLen: 0}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "string_attrs.json"), strs, 0o644))

	r := New(nil)
	count, err := SetupFromFiles(r, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	v, ok := r.StringValue("AssetTag")
	require.True(t, ok)
	assert.Equal(t, "", v)
}
