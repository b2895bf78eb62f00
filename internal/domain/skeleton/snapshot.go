package skeleton

// Snapshot holds the local transform of every node of a tree at one instant.
type Snapshot struct {
	root   *Node
	states map[*Node]Transform
}

// Capture records the local transforms of root and all its descendants.
func Capture(root *Node) *Snapshot {
	s := &Snapshot{root: root, states: make(map[*Node]Transform)}
	root.Walk(func(n *Node) bool {
		s.states[n] = n.Transform
		return true
	})
	return s
}

// Root returns the node the snapshot was taken from.
func (s *Snapshot) Root() *Node { return s.root }

// Len returns the number of captured nodes.
func (s *Snapshot) Len() int { return len(s.states) }

// Transform returns the captured transform of n.
func (s *Snapshot) Transform(n *Node) (Transform, bool) {
	t, ok := s.states[n]
	return t, ok
}

// Restore writes every captured transform back. Nodes added after the
// capture are left untouched.
func (s *Snapshot) Restore() {
	for n, t := range s.states {
		n.Transform = t
	}
}
