package memory

import (
	"fmt"
	"io"
	"os"

	"rndindex/domain/core/entities"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a change log fixture
type seedFile struct {
	Changes []entities.ChangeRecord `yaml:"changes"`
}

// LoadSeed decodes change records from a YAML fixture, in file order.
// Sequences in the fixture are dropped; the store allocates them on append.
func LoadSeed(r io.Reader) ([]entities.ChangeRecord, error) {
	var seed seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode change log seed: %w", err)
	}
	for i := range seed.Changes {
		record := &seed.Changes[i]
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("change %d (%s %s): %w", i, record.ObjectType, record.Key, err)
		}
		record.Sequence = 0
	}
	return seed.Changes, nil
}

// LoadSeedFile reads a YAML fixture from disk
func LoadSeedFile(path string) ([]entities.ChangeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open change log seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}
