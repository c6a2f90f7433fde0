package botfile

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVariable = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Loader reads a bots file from disk
type Loader struct {
	filePath string
}

// NewLoader creates a new bots file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the bots file
func (l *Loader) Load() (Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read bots file: %w", err)
	}

	data = expandVariables(data)

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse bots yaml: %w", err)
	}

	return config, nil
}

// expandVariables replaces {{NAME}} with the value of the environment
// variable NAME, or nothing when it is unset.
func expandVariables(data []byte) []byte {
	return envVariable.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVariable.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
