package lights

import (
	"encoding/json"
	"log/slog"
	"os"
	"unicode"

	"github.com/lumenwall/lumenwall/internal/errors"
)

// Mapping assigns uppercase letters to strip positions. Keys are
// single letters; the JSON file is shared with the calibration tool.
type Mapping map[string]int

// DefaultMapping is the built-in table for the reference strip layout,
// used when no calibration file exists.
func DefaultMapping() Mapping {
	return Mapping{
		"R": 11, "S": 15, "T": 18, "U": 21, "V": 24, "W": 27, "X": 31, "Y": 33, "Z": 36,
		"Q": 44, "P": 47, "O": 49, "N": 50, "M": 53, "L": 57, "K": 59, "J": 62, "I": 65,
		"A": 73, "B": 76, "C": 80, "D": 83, "E": 87, "F": 90, "G": 92, "H": 95,
	}
}

// LoadMapping reads and validates a calibration file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ConfigInvalid, "reading mapping %s", path)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ConfigInvalid, "parsing mapping %s", path)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMappingWithFallback returns the file mapping when present and
// valid, otherwise the default table.
func LoadMappingWithFallback(path string) Mapping {
	m, err := LoadMapping(path)
	if err != nil {
		slog.Warn("using default led mapping", "path", path, "error", err)
		return DefaultMapping()
	}
	return m
}

// Save writes the mapping for the calibration round trip.
func (m Mapping) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Lookup resolves a character to its position, folding to uppercase.
func (m Mapping) Lookup(r rune) (int, bool) {
	pos, ok := m[string(unicode.ToUpper(r))]
	return pos, ok
}

func (m Mapping) validate() error {
	if len(m) == 0 {
		return errors.New(errors.ConfigInvalid, "mapping is empty")
	}
	seen := make(map[int]string, len(m))
	for k, pos := range m {
		runes := []rune(k)
		if len(runes) != 1 || !unicode.IsUpper(runes[0]) || !unicode.IsLetter(runes[0]) {
			return errors.Newf(errors.ConfigInvalid, "mapping key %q is not an uppercase letter", k)
		}
		if pos < 0 {
			return errors.Newf(errors.ConfigInvalid, "mapping %q has negative position %d", k, pos)
		}
		if prev, dup := seen[pos]; dup {
			return errors.Newf(errors.ConfigInvalid, "position %d mapped to both %q and %q", pos, prev, k)
		}
		seen[pos] = k
	}
	return nil
}
