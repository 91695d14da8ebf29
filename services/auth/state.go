package auth

import (
	"os"

	"gopkg.in/yaml.v3"
)

// State is the on-disk shape of a persisted session.
type State struct {
	Cookies map[string]string `yaml:"cookies"`
	SavedAt string            `yaml:"saved_at"`
}

func readState(path string) (*State, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state State
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func writeState(path string, state State) error {
	raw, err := yaml.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}
