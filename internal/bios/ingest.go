package bios

import (
	"encoding/json"
	"os"

	"github.com/obmc-pldm/pldm/internal/interfaces"
)

type enumJSON struct {
	Name           string            `json:"name"`
	ReadOnly       bool              `json:"read_only"`
	PossibleValues []string          `json:"possible_values"`
	DefaultValues  []string          `json:"default_values"`
	DBusValueMap   map[string]string `json:"dbus_value_map"`
	ObjectPath     string            `json:"object_path"`
	Interface      string            `json:"interface"`
	Property       string            `json:"property"`
}

type stringJSON struct {
	Name       string `json:"name"`
	ReadOnly   bool   `json:"read_only"`
	Encoding   string `json:"encoding"`
	MinLength  uint16 `json:"min_length"`
	MaxLength  uint16 `json:"max_length"`
	DefaultLen uint16 `json:"default_len"`
	Default    string `json:"default"`
}

type integerJSON struct {
	Name            string `json:"name"`
	ReadOnly        bool   `json:"read_only"`
	Lower           int64  `json:"lower"`
	Upper           int64  `json:"upper"`
	ScalarIncrement int64  `json:"scalar_increment"`
	Default         int64  `json:"default"`
}

var encodingNames = map[string]StringEncoding{
	"Unknown":        EncodingUnknown,
	"ASCII":          EncodingASCII,
	"Hex":            EncodingHex,
	"UTF-8":          EncodingUTF8,
	"UTF-16LE":       EncodingUTF16LE,
	"UTF-16BE":       EncodingUTF16BE,
	"VendorSpecific": EncodingVendorSpecific,
}

// SetupFromFiles reads enum_attrs.json, string_attrs.json, and
// integer_attrs.json from dir (any may be absent, treated as empty),
// and installs whatever decoded successfully via Setup. A malformed
// file is logged and skipped rather than aborting ingestion, per
// spec.md §7; logger may be nil.
//
// The returned int is the number of attributes installed, or -1 if
// ingestion left the registry fully empty (every file absent or
// malformed).
func SetupFromFiles(r *Registry, dir string, logger interfaces.Logger) (int, error) {
	enums, err := readEnumFile(dir+"/enum_attrs.json", logger)
	if err != nil {
		return 0, err
	}
	strs, err := readStringFile(dir+"/string_attrs.json", logger)
	if err != nil {
		return 0, err
	}
	ints, err := readIntegerFile(dir+"/integer_attrs.json", logger)
	if err != nil {
		return 0, err
	}

	if err := r.Setup(enums, strs, ints); err != nil {
		return 0, err
	}

	total := len(enums) + len(strs) + len(ints)
	if total == 0 {
		return -1, nil
	}
	return total, nil
}

func readEnumFile(path string, logger interfaces.Logger) ([]EnumAttribute, error) {
	raw, ok, err := readOptional(path)
	if err != nil || !ok {
		return nil, err
	}
	var entries []enumJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		logWarn(logger, "bios: skipping malformed enum attribute file", "path", path, "error", err)
		return nil, nil
	}
	out := make([]EnumAttribute, 0, len(entries))
	for _, e := range entries {
		valueMap := make(map[any]string, len(e.DBusValueMap))
		for k, v := range e.DBusValueMap {
			valueMap[k] = v
		}
		out = append(out, EnumAttribute{
			Name:           e.Name,
			ReadOnly:       e.ReadOnly,
			PossibleValues: e.PossibleValues,
			DefaultValues:  e.DefaultValues,
			DBusValueMap:   valueMap,
			ObjectPath:     e.ObjectPath,
			Interface:      e.Interface,
			Property:       e.Property,
		})
	}
	return out, nil
}

func readStringFile(path string, logger interfaces.Logger) ([]StringAttribute, error) {
	raw, ok, err := readOptional(path)
	if err != nil || !ok {
		return nil, err
	}
	var entries []stringJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		logWarn(logger, "bios: skipping malformed string attribute file", "path", path, "error", err)
		return nil, nil
	}
	out := make([]StringAttribute, 0, len(entries))
	for _, s := range entries {
		out = append(out, StringAttribute{
			Name:       s.Name,
			ReadOnly:   s.ReadOnly,
			Encoding:   encodingNames[s.Encoding],
			MinLength:  s.MinLength,
			MaxLength:  s.MaxLength,
			DefaultLen: s.DefaultLen,
			Default:    s.Default,
		})
	}
	return out, nil
}

func readIntegerFile(path string, logger interfaces.Logger) ([]IntegerAttribute, error) {
	raw, ok, err := readOptional(path)
	if err != nil || !ok {
		return nil, err
	}
	var entries []integerJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		logWarn(logger, "bios: skipping malformed integer attribute file", "path", path, "error", err)
		return nil, nil
	}
	out := make([]IntegerAttribute, 0, len(entries))
	for _, i := range entries {
		out = append(out, IntegerAttribute{
			Name:            i.Name,
			ReadOnly:        i.ReadOnly,
			Lower:           i.Lower,
			Upper:           i.Upper,
			ScalarIncrement: i.ScalarIncrement,
			Default:         i.Default,
		})
	}
	return out, nil
}

func readOptional(path string) ([]byte, bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func logWarn(logger interfaces.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
