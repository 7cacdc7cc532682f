package scene

// Node is an element of the scene graph. Position, Rotation (euler radians)
// and Scale are relative to the parent.
type Node struct {
	Name     string
	Position Vec3
	Rotation Vec3
	Scale    Vec3
	Visible  bool

	Mesh     *Mesh
	Material *Material
	Texture  *Texture

	Children []*Node
	parent   *Node
	disposed bool
}

// NewNode creates a visible node with unit scale.
func NewNode(name string) *Node {
	return &Node{
		Name:    name,
		Scale:   Vec3{1, 1, 1},
		Visible: true,
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child. Returns false if child was not attached to n.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the node this one is attached to, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Alive reports whether the node has not been disposed.
func (n *Node) Alive() bool {
	return n != nil && !n.disposed
}

// Dispose releases every resource in the subtree exactly once and detaches
// the node from its parent. Later calls are no-ops.
func (n *Node) Dispose() {
	if n == nil || n.disposed {
		return
	}
	if n.parent != nil {
		n.parent.Remove(n)
	}
	n.disposeTree()
}

func (n *Node) disposeTree() {
	n.disposed = true
	for _, c := range n.Children {
		c.disposeTree()
		c.parent = nil
	}
	n.Children = nil

	if n.Mesh != nil {
		n.Mesh.Dispose()
	}
	if n.Material != nil {
		n.Material.Dispose()
	}
	if n.Texture != nil {
		n.Texture.Dispose()
	}
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LocalToWorld maps a point in n's local space to world space.
func (n *Node) LocalToWorld(p Vec3) Vec3 {
	for cur := n; cur != nil; cur = cur.parent {
		p = cur.Position.Add(p.Mul(cur.Scale).rotate(cur.Rotation))
	}
	return p
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() Vec3 {
	return n.LocalToWorld(Vec3{})
}

// WorldScale returns the product of scales up the parent chain.
func (n *Node) WorldScale() Vec3 {
	s := Vec3{1, 1, 1}
	for cur := n; cur != nil; cur = cur.parent {
		s = s.Mul(cur.Scale)
	}
	return s
}

// WorldVisible reports whether n and all its ancestors are visible.
func (n *Node) WorldVisible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if !cur.Visible {
			return false
		}
	}
	return true
}
