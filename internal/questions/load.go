package questions

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultBankYAML []byte

type bankFile struct {
	Rounds map[int]map[string][]Question `yaml:"rounds"`
}

// Parse decodes a YAML question bank.
func Parse(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	return NewBank(f.Rounds)
}

// LoadFile reads a YAML question bank from path.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	return Parse(data)
}

// Default returns the bank compiled into the binary.
func Default() *Bank {
	b, err := Parse(defaultBankYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return b
}

// Load returns the bank at path, or the embedded default when path is empty.
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
