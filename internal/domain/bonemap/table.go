package bonemap

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/okian/immersivescaler/internal/domain/humanoid"
)

//go:embed bone_names.yaml
var defaultTableYAML []byte

// Table lists, per role, the normalised joint names to look for in priority order.
type Table struct {
	Prefixes   []string
	Candidates map[humanoid.Role][]string
}

type tableDocument struct {
	Prefixes []string            `yaml:"prefixes"`
	Roles    map[string][]string `yaml:"roles"`
}

// DefaultTable returns the embedded name table.
func DefaultTable() Table {
	t, err := ParseTable(defaultTableYAML)
	if err != nil {
		// The embedded table is part of the build.
		panic(err)
	}
	return t
}

// ReadTable parses a table document from r.
func ReadTable(r io.Reader) (Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return ParseTable(b)
}

// ParseTable parses a YAML table document.
func ParseTable(b []byte) (Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if len(doc.Roles) == 0 {
		return Table{}, fmt.Errorf("%w: no roles", ErrInvalidTable)
	}
	t := Table{Candidates: make(map[humanoid.Role][]string, len(doc.Roles))}
	for _, p := range doc.Prefixes {
		if n := Normalize(p); n != "" {
			t.Prefixes = append(t.Prefixes, n)
		}
	}
	for name, cands := range doc.Roles {
		role, err := humanoid.ParseRole(name)
		if err != nil {
			return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		for _, c := range cands {
			if n := Normalize(c); n != "" {
				t.Candidates[role] = append(t.Candidates[role], n)
			}
		}
	}
	return t, nil
}

// Normalize lower-cases a joint name and strips separators.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '_', '-', '.', ':', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// key normalises name and removes the first matching rig prefix.
func (t Table) key(name string) string {
	n := Normalize(name)
	for _, p := range t.Prefixes {
		if strings.HasPrefix(n, p) && len(n) > len(p) {
			return n[len(p):]
		}
	}
	return n
}
