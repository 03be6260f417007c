// Package deployment rewrites the database sections of the application's
// runtime configuration file, keeping enough state to undo the change
// byte-for-byte.
package deployment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ErrConfigFileMissing indicates the configuration file does not exist.
// Fatal, raised before any mutation.
var ErrConfigFileMissing = errors.New("deployment config file missing")

// Mutation records one applied section rewrite. The full pre-mutation file
// content is captured before any byte is modified, so rollback restores
// the exact prior bytes rather than reversing a diff. A Mutation lives for
// exactly one pipeline run and is never persisted.
type Mutation struct {
	Path     string
	Sections []string

	original []byte
	applied  bool
}

// Applied reports whether the file has been rewritten.
func (m *Mutation) Applied() bool { return m.applied }

// Apply removes every named section from the file at path and appends
// newContent in a single write of the rewritten file. A section begins at
// its header line and ends at the first blank line (inclusive); a section
// that is absent is not an error. Section keys name headers without
// brackets, e.g. "database.apim_db".
//
// On a write failure the returned Mutation is still valid and the caller
// must treat the file as inconsistent and roll back immediately.
func Apply(path string, sections []string, newContent []byte) (*Mutation, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileMissing, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	m := &Mutation{Path: path, Sections: sections, original: original}

	stripped := original
	for _, section := range sections {
		stripped = removeSection(stripped, section)
	}

	var buf bytes.Buffer
	buf.Write(stripped)
	if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.Write(newContent)

	m.applied = true
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return m, fmt.Errorf("rewrite %s: %w", path, err)
	}
	return m, nil
}

// Rollback overwrites the file with the captured original content. It is
// idempotent: when the mutation was never applied, or the file already
// matches the original, nothing is written.
func (m *Mutation) Rollback() error {
	if m == nil || !m.applied {
		return nil
	}
	current, err := os.ReadFile(m.Path)
	if err == nil && bytes.Equal(current, m.original) {
		m.applied = false
		return nil
	}
	if err := os.WriteFile(m.Path, m.original, 0o644); err != nil {
		return fmt.Errorf("rollback %s: %w", m.Path, err)
	}
	m.applied = false
	return nil
}

// removeSection drops the block starting at the section's header line and
// ending at the first blank line after it, blank line included.
func removeSection(content []byte, section string) []byte {
	header := []byte("[" + section + "]")
	lines := bytes.SplitAfter(content, []byte("\n"))

	var out bytes.Buffer
	skipping := false
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if skipping {
			if len(trimmed) == 0 {
				skipping = false
			}
			continue
		}
		if bytes.Equal(trimmed, header) {
			skipping = true
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}
