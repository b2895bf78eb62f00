package skeleton_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

func shouldBeVec(actual interface{}, expected ...interface{}) string {
	a := actual.(mgl64.Vec3)
	e := expected[0].(mgl64.Vec3)
	if !a.ApproxEqualThreshold(e, 1e-9) {
		return fmt.Sprintf("expected %v but got %v", e, a)
	}
	return ""
}

func TestNode_Hierarchy(t *testing.T) {
	Convey("Given a parent scaled by two and turned a quarter about Y", t, func() {
		root := skeleton.NewNode("root")
		root.Position = mgl64.Vec3{1, 0, 0}
		root.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
		root.Scale = mgl64.Vec3{2, 2, 2}
		child := root.AddChild(skeleton.NewNode("child"))
		child.Position = mgl64.Vec3{1, 0, 0}

		Convey("Then the child's world origin is rotated and scaled", func() {
			So(child.WorldPosition(), shouldBeVec, mgl64.Vec3{1, 0, -2})
			So(child.Parent(), ShouldEqual, root)
			So(root.ChildCount(), ShouldEqual, 1)
		})

		Convey("When the child is placed at a world point", func() {
			child.SetWorldPosition(mgl64.Vec3{1, 4, 0})

			Convey("Then the local position is solved through the parent", func() {
				So(child.Position, shouldBeVec, mgl64.Vec3{0, 2, 0})
				So(child.WorldPosition(), shouldBeVec, mgl64.Vec3{1, 4, 0})
			})
		})

		Convey("Then points round trip through local space", func() {
			p := mgl64.Vec3{0.3, -0.2, 0.7}
			So(child.InverseTransformPoint(child.TransformPoint(p)), shouldBeVec, p)
		})

		Convey("When the child is moved under another parent", func() {
			other := skeleton.NewNode("other")
			other.AddChild(child)

			Convey("Then it is detached from the first", func() {
				So(root.ChildCount(), ShouldEqual, 0)
				So(other.Child(0), ShouldEqual, child)
				So(child.WorldPosition(), shouldBeVec, mgl64.Vec3{1, 0, 0})
			})
		})
	})
}

func TestNode_Walk(t *testing.T) {
	Convey("Given a small tree", t, func() {
		root := skeleton.NewNode("a")
		b := root.AddChild(skeleton.NewNode("b"))
		b.AddChild(skeleton.NewNode("c"))
		root.AddChild(skeleton.NewNode("d"))

		Convey("Then descendants are listed pre-order", func() {
			var names []string
			for _, n := range root.Descendants() {
				names = append(names, n.Name)
			}
			So(names, ShouldResemble, []string{"a", "b", "c", "d"})
		})

		Convey("Then a walk can stop early", func() {
			visited := 0
			root.Walk(func(n *skeleton.Node) bool {
				visited++
				return n.Name != "b"
			})
			So(visited, ShouldEqual, 2)
		})

		Convey("Then nodes are found by name", func() {
			So(root.Find("c").Parent(), ShouldEqual, b)
			So(root.Find("missing"), ShouldBeNil)
		})

		Convey("Then nodes are found by path when names repeat", func() {
			c := root.Find("c")
			twin := root.Find("d").AddChild(skeleton.NewNode("c"))
			So(c.Path(), ShouldEqual, "a/b/c")
			So(twin.Path(), ShouldEqual, "a/d/c")
			So(root.FindPath("a/d/c"), ShouldEqual, twin)
			So(root.FindPath("a/b/c"), ShouldEqual, c)
			So(root.FindPath("a"), ShouldEqual, root)
			So(root.FindPath("b/c"), ShouldBeNil)
			So(root.FindPath("a/b/x"), ShouldBeNil)
		})
	})
}

func TestTransform_Finite(t *testing.T) {
	Convey("Given transforms", t, func() {
		tr := skeleton.Identity()
		So(tr.Finite(), ShouldBeTrue)
		tr.Scale[1] = math.Inf(1)
		So(tr.Finite(), ShouldBeFalse)
		tr = skeleton.Identity()
		tr.Rotation.W = math.NaN()
		So(tr.Finite(), ShouldBeFalse)
	})
}

func TestMesh_Bounds(t *testing.T) {
	Convey("Given a box mesh on a rotated node", t, func() {
		n := skeleton.NewNode("box")
		n.Position = mgl64.Vec3{0, 1, 0}
		n.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
		mesh := &skeleton.Mesh{Name: "m", Enabled: true, Bounds: r3.Box{
			Min: r3.Vec{X: -0.5, Y: -0.1, Z: -0.2},
			Max: r3.Vec{X: 0.5, Y: 0.1, Z: 0.2},
		}}
		n.Meshes = append(n.Meshes, mesh, &skeleton.Mesh{Name: "hidden", Bounds: r3.Box{Max: r3.Vec{X: 9, Y: 9, Z: 9}}})

		Convey("Then the world box encloses the turned corners", func() {
			b := mesh.WorldBounds(n)
			So(b.Min.Y, ShouldAlmostEqual, 0.5, 1e-9)
			So(b.Max.Y, ShouldAlmostEqual, 1.5, 1e-9)
			size := skeleton.Size(b)
			So(size.X, ShouldAlmostEqual, 0.2, 1e-9)
			So(size.Z, ShouldAlmostEqual, 0.4, 1e-9)
		})

		Convey("Then disabled meshes are skipped", func() {
			So(skeleton.MeshBounds(n), ShouldHaveLength, 1)
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given a captured tree", t, func() {
		root := skeleton.NewNode("root")
		child := root.AddChild(skeleton.NewNode("child"))
		child.Position = mgl64.Vec3{0, 1, 0}
		snap := skeleton.Capture(root)

		Convey("When the tree is changed and restored", func() {
			child.Position = mgl64.Vec3{5, 5, 5}
			root.Scale = mgl64.Vec3{3, 3, 3}
			late := root.AddChild(skeleton.NewNode("late"))
			late.Position = mgl64.Vec3{7, 0, 0}
			snap.Restore()

			Convey("Then captured nodes are back and later nodes untouched", func() {
				So(snap.Len(), ShouldEqual, 2)
				So(snap.Root(), ShouldEqual, root)
				So(child.Position, shouldBeVec, mgl64.Vec3{0, 1, 0})
				So(root.Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
				So(late.Position, shouldBeVec, mgl64.Vec3{7, 0, 0})
				_, ok := snap.Transform(late)
				So(ok, ShouldBeFalse)
			})
		})
	})
}
