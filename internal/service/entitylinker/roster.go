package entitylinker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the shape of the optional cast-roster alias file: a flat
// mapping of cast member slug to extra aliases to union with the
// admin-managed `aliases` column.
type rosterFile struct {
	Cast map[string][]string `yaml:"cast"`
}

// LoadRosterAliases reads the YAML alias file at path. A missing file is not
// an error (the roster file is optional); other I/O or parse errors are.
func LoadRosterAliases(path string) (map[string][]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("op=entitylinker.LoadRosterAliases read: %w", err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("op=entitylinker.LoadRosterAliases parse: %w", err)
	}
	return rf.Cast, nil
}
