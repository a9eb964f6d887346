package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var (
	osReadFile  = os.ReadFile
	osStat      = os.Stat
	osGetwd     = os.Getwd
	osLookupEnv = os.LookupEnv
)

// DefaultManifestName is the file Load looks for when no path is given.
const DefaultManifestName = "stack.yaml"

// Load reads and validates the manifest at path. An empty path discovers
// stack.yaml (or stack.yml) in the current working directory.
func Load(path string) (*Registry, error) {
	if path == "" {
		discovered, err := discoverManifest()
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	data, err := osReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes, expands and validates manifest bytes. Unknown YAML keys
// are rejected so typos surface instead of being silently dropped.
func Parse(data []byte) (*Registry, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Issues: []string{"manifest is empty"}}
		}
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	expandEnvRefs(&m)
	return NewRegistry(&m)
}

func discoverManifest() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", fmt.Errorf("determining working directory: %w", err)
	}
	for _, name := range []string{DefaultManifestName, "stack.yml"} {
		candidate := filepath.Join(wd, name)
		if _, err := osStat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s found in %s", DefaultManifestName, wd)
}

// expandEnvRefs expands ${VAR} and ${VAR:-default} references in service
// environment values. Following shell semantics, the default applies when
// the variable is unset or empty.
func expandEnvRefs(m *Manifest) {
	for i := range m.Services {
		env := m.Services[i].Environment
		for k, v := range env {
			env[k] = expandValue(v)
		}
	}
}

func expandValue(s string) string {
	return os.Expand(s, func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		if val, ok := osLookupEnv(name); ok && val != "" {
			return val
		}
		if hasDefault {
			return def
		}
		return ""
	})
}
