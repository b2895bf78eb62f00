// Package bonemap resolves canonical humanoid roles to joints of a skeleton.
package bonemap

import (
	"fmt"
	"strings"

	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// Map binds roles to nodes. A missing role has no entry.
type Map map[humanoid.Role]*skeleton.Node

// Get returns the node for role, or nil when absent.
func (m Map) Get(role humanoid.Role) *skeleton.Node {
	if m == nil {
		return nil
	}
	return m[role]
}

// Has reports whether role is bound.
func (m Map) Has(role humanoid.Role) bool { return m.Get(role) != nil }

// Missing returns the roles of want that are not bound.
func (m Map) Missing(want []humanoid.Role) []humanoid.Role {
	var out []humanoid.Role
	for _, r := range want {
		if !m.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Nodes returns the bound nodes in role order.
func (m Map) Nodes() []*skeleton.Node {
	out := make([]*skeleton.Node, 0, len(m))
	for _, r := range humanoid.All() {
		if n := m.Get(r); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Resolver builds a Map from joint names.
type Resolver struct {
	table Table
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTable replaces the embedded name table.
func WithTable(t Table) Option {
	return func(r *Resolver) {
		if len(t.Candidates) > 0 {
			r.table = t
		}
	}
}

// NewResolver creates a resolver backed by the embedded table unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{table: DefaultTable()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// minFragment is the shortest candidate tried as a substring. Shorter ones
// such as "hip" hit too many unrelated joints.
const minFragment = 4

// Resolve binds roles under root. Explicit bindings win; each names a node by
// Path when it contains a slash and by its first depth-first name otherwise.
// Remaining roles are matched against the table: exact normalised names for
// every role first, then names that contain a candidate. Within a pass
// candidate priority comes first, then depth-first order. A node is bound to
// at most one role.
func (r *Resolver) Resolve(root *skeleton.Node, explicit map[humanoid.Role]string) (Map, error) {
	m := make(Map)
	claimed := make(map[*skeleton.Node]bool)

	for _, role := range humanoid.All() {
		name, ok := explicit[role]
		if !ok || name == "" {
			continue
		}
		n := lookup(root, name)
		if n == nil {
			return nil, fmt.Errorf("%w: %s -> %q", ErrUnknownNode, role, name)
		}
		m[role] = n
		claimed[n] = true
	}

	nodes := root.Descendants()
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = r.table.key(n.Name)
	}

	for _, fn := range []func(key, cand string) bool{exact, contains} {
		for _, role := range humanoid.All() {
			if m.Has(role) {
				continue
			}
			if n := r.match(role, nodes, keys, claimed, fn); n != nil {
				m[role] = n
				claimed[n] = true
			}
		}
	}
	return m, nil
}

func lookup(root *skeleton.Node, name string) *skeleton.Node {
	if strings.Contains(name, "/") {
		return root.FindPath(name)
	}
	return root.Find(name)
}

func exact(key, cand string) bool { return key == cand }

func contains(key, cand string) bool {
	return len(cand) >= minFragment && strings.Contains(key, cand)
}

func (r *Resolver) match(role humanoid.Role, nodes []*skeleton.Node, keys []string, claimed map[*skeleton.Node]bool, fn func(key, cand string) bool) *skeleton.Node {
	for _, cand := range r.table.Candidates[role] {
		for i, k := range keys {
			if fn(k, cand) && !claimed[nodes[i]] {
				return nodes[i]
			}
		}
	}
	return nil
}

// FindUnder looks up role by name below start only, ignoring claims. Used for
// finger joints that are searched relative to a hand. Exact names are tried
// before names containing a candidate.
func (r *Resolver) FindUnder(start *skeleton.Node, role humanoid.Role) *skeleton.Node {
	if start == nil {
		return nil
	}
	nodes := start.Descendants()
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = r.table.key(n.Name)
	}
	for _, fn := range []func(key, cand string) bool{exact, contains} {
		if n := r.match(role, nodes, keys, nil, fn); n != nil {
			return n
		}
	}
	return nil
}
