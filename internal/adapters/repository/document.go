package repository

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"go.yaml.in/yaml/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// document is the on-disk form of an avatar. Rotations are quaternions
// written x, y, z, w. Omitted position, rotation and scale are identity.
type document struct {
	Name         string            `yaml:"name"`
	ViewPosition []float64         `yaml:"view_position,omitempty"`
	Humanoid     map[string]string `yaml:"humanoid,omitempty"`
	Component    yaml.Node         `yaml:"component,omitempty"`
	Skeleton     nodeDocument      `yaml:"skeleton"`
}

type nodeDocument struct {
	Name     string         `yaml:"name"`
	Position []float64      `yaml:"position,flow,omitempty"`
	Rotation []float64      `yaml:"rotation,flow,omitempty"`
	Scale    []float64      `yaml:"scale,flow,omitempty"`
	Meshes   []meshDocument `yaml:"meshes,omitempty"`
	Children []nodeDocument `yaml:"children,omitempty"`
}

type meshDocument struct {
	Name    string    `yaml:"name"`
	Enabled *bool     `yaml:"enabled,omitempty"`
	Min     []float64 `yaml:"min,flow"`
	Max     []float64 `yaml:"max,flow"`
}

// Decode reads an avatar document and binds its roles with resolver. An
// explicit humanoid section wins over name matching.
func Decode(r io.Reader, resolver *bonemap.Resolver) (*avatar.Avatar, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc.Skeleton.Name == "" {
		return nil, fmt.Errorf("%w: skeleton root has no name", ErrDecode)
	}
	root, err := buildNode(doc.Skeleton)
	if err != nil {
		return nil, err
	}

	explicit := make(map[humanoid.Role]string, len(doc.Humanoid))
	for name, node := range doc.Humanoid {
		role, err := humanoid.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		explicit[role] = node
	}
	bones, err := resolver.Resolve(root, explicit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var opts []avatar.Option
	if doc.ViewPosition != nil {
		v, err := vec3("view_position", doc.ViewPosition, mgl64.Vec3{})
		if err != nil {
			return nil, err
		}
		opts = append(opts, avatar.WithDescriptor(&avatar.Descriptor{ViewPosition: v}))
	}
	if !doc.Component.IsZero() {
		c := avatar.DefaultComponent()
		if err := doc.Component.Decode(&c); err != nil {
			return nil, fmt.Errorf("%w: component: %v", ErrDecode, err)
		}
		opts = append(opts, avatar.WithComponent(&c))
	}
	return avatar.New(doc.Name, root, bones, opts...), nil
}

// Encode writes a as a document. Every bound role is written to the
// humanoid section as the joint's path so the bindings survive a reload
// unchanged even when joint names repeat. A bound joint whose path does not
// lead back to it, because a sibling shares its name, is rejected.
func Encode(w io.Writer, a *avatar.Avatar) error {
	if a.Root == nil {
		return avatar.ErrNoSkeleton
	}
	doc := document{Name: a.Name, Skeleton: encodeNode(a.Root)}
	if a.Descriptor != nil {
		v := a.Descriptor.ViewPosition
		doc.ViewPosition = v[:]
	}
	if len(a.Bones) > 0 {
		doc.Humanoid = make(map[string]string, len(a.Bones))
		for role, n := range a.Bones {
			path := n.Path()
			if a.Root.FindPath(path) != n {
				return fmt.Errorf("%w: %s -> %q", ErrAmbiguousJoint, role, path)
			}
			doc.Humanoid[role.String()] = path
		}
	}
	if a.Component != nil {
		if err := doc.Component.Encode(a.Component); err != nil {
			return fmt.Errorf("encode component: %w", err)
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode avatar %q: %w", a.Name, err)
	}
	return enc.Close()
}

func buildNode(d nodeDocument) (*skeleton.Node, error) {
	n := skeleton.NewNode(d.Name)
	var err error
	if n.Position, err = vec3(d.Name+".position", d.Position, mgl64.Vec3{}); err != nil {
		return nil, err
	}
	if n.Scale, err = vec3(d.Name+".scale", d.Scale, mgl64.Vec3{1, 1, 1}); err != nil {
		return nil, err
	}
	switch len(d.Rotation) {
	case 0:
	case 4:
		n.Rotation = mgl64.Quat{W: d.Rotation[3], V: mgl64.Vec3{d.Rotation[0], d.Rotation[1], d.Rotation[2]}}
		if n.Rotation.Len() == 0 {
			return nil, fmt.Errorf("%w: %s.rotation is zero", ErrDecode, d.Name)
		}
		n.Rotation = n.Rotation.Normalize()
	default:
		return nil, fmt.Errorf("%w: %s.rotation needs 4 values, got %d", ErrDecode, d.Name, len(d.Rotation))
	}
	for _, md := range d.Meshes {
		lo, err := vec3(d.Name+".meshes.min", md.Min, mgl64.Vec3{})
		if err != nil {
			return nil, err
		}
		hi, err := vec3(d.Name+".meshes.max", md.Max, mgl64.Vec3{})
		if err != nil {
			return nil, err
		}
		enabled := md.Enabled == nil || *md.Enabled
		n.Meshes = append(n.Meshes, &skeleton.Mesh{
			Name:    md.Name,
			Enabled: enabled,
			Bounds:  r3.Box{Min: r3.Vec{X: lo[0], Y: lo[1], Z: lo[2]}, Max: r3.Vec{X: hi[0], Y: hi[1], Z: hi[2]}},
		})
	}
	for _, cd := range d.Children {
		if cd.Name == "" {
			return nil, fmt.Errorf("%w: unnamed child of %s", ErrDecode, d.Name)
		}
		c, err := buildNode(cd)
		if err != nil {
			return nil, err
		}
		n.AddChild(c)
	}
	return n, nil
}

func encodeNode(n *skeleton.Node) nodeDocument {
	d := nodeDocument{Name: n.Name}
	if n.Position != (mgl64.Vec3{}) {
		d.Position = append([]float64(nil), n.Position[:]...)
	}
	if n.Rotation != mgl64.QuatIdent() {
		d.Rotation = []float64{n.Rotation.V[0], n.Rotation.V[1], n.Rotation.V[2], n.Rotation.W}
	}
	if n.Scale != (mgl64.Vec3{1, 1, 1}) {
		d.Scale = append([]float64(nil), n.Scale[:]...)
	}
	for _, m := range n.Meshes {
		enabled := m.Enabled
		d.Meshes = append(d.Meshes, meshDocument{
			Name:    m.Name,
			Enabled: &enabled,
			Min:     []float64{m.Bounds.Min.X, m.Bounds.Min.Y, m.Bounds.Min.Z},
			Max:     []float64{m.Bounds.Max.X, m.Bounds.Max.Y, m.Bounds.Max.Z},
		})
	}
	for _, c := range n.Children() {
		d.Children = append(d.Children, encodeNode(c))
	}
	return d
}

func vec3(field string, v []float64, def mgl64.Vec3) (mgl64.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return mgl64.Vec3{v[0], v[1], v[2]}, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("%w: %s needs 3 values, got %d", ErrDecode, field, len(v))
}
