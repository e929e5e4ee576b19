package config

import (
	"path/filepath"
	"strings"
)

var inputExtensions = []string{".vrmgltf", ".vrm"}

// OutputPath derives the output file from the input: a trailing .vrm or
// .vrmgltf (any case) is replaced by the suffix, other names get it appended.
func (c *Config) OutputPath(input string) string {
	dir, base := filepath.Split(input)
	if c.Output.Dir != "" {
		dir = c.Output.Dir
	}
	return filepath.Join(dir, OutputName(base, c.Output.Suffix))
}

func OutputName(base, suffix string) string {
	lower := strings.ToLower(base)
	for _, ext := range inputExtensions {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)] + suffix
		}
	}
	return base + suffix
}
