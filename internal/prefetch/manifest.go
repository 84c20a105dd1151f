// internal/prefetch/manifest.go
package prefetch

import (
	"bytes"
	"strings"
)

// FieldMax is the storage size of each manifest field.
const FieldMax = 32

// Text shown for an entry without a manifest or with missing keys.
const (
	DefaultName    = "Unnamed homebrew"
	DefaultAuthor  = "Unknown author"
	DefaultVersion = "1.0"

	MissingName    = "Corrupted homebrew"
	MissingAuthor  = "The manifest file is missing."
	MissingVersion = "???"
)

// Manifest is the parsed content of MANIFEST.TXT.
type Manifest struct {
	Name    string
	Author  string
	Version string
}

// ParseManifest reads Name=, Author= and Version= lines.
// Empty lines are skipped, a later key overrides an earlier one and each
// value is cut to FieldMax bytes. Content after a NUL byte is ignored.
func ParseManifest(data []byte) Manifest {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}

	m := Manifest{
		Name:    DefaultName,
		Author:  DefaultAuthor,
		Version: DefaultVersion,
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Name="):
			m.Name = field(line[len("Name="):])
		case strings.HasPrefix(line, "Author="):
			m.Author = field(line[len("Author="):])
		case strings.HasPrefix(line, "Version="):
			m.Version = field(line[len("Version="):])
		}
	}
	return m
}

func field(v string) string {
	if len(v) > FieldMax {
		return v[:FieldMax]
	}
	return v
}
