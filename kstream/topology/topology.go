package topology

import (
	"errors"
)

// SkipChilds returned from a WalkFunc skips the children of the current node.
var SkipChilds = errors.New(`skip childs`)

type WalkFunc func(node Node, depth int) error

// Walk visits node and all of its descendants depth first.
func Walk(node Node, fn WalkFunc) error {
	return walk(node, 0, fn)
}

func walk(node Node, depth int, fn WalkFunc) error {
	if err := fn(node, depth); err != nil {
		if errors.Is(err, SkipChilds) {
			return nil
		}
		return err
	}

	for _, child := range node.Childs() {
		if err := walk(child, depth+1, fn); err != nil {
			return err
		}
	}

	return nil
}

// Lifecycles collects every node below root that owns background work.
func Lifecycles(root Node) []Lifecycle {
	var list []Lifecycle
	_ = Walk(root, func(node Node, _ int) error {
		if l, ok := node.(Lifecycle); ok {
			list = append(list, l)
		}
		return nil
	})

	return list
}

// Topology is the built, frozen set of root nodes keyed by stream name.
type Topology struct {
	names []string
	roots map[string]Node
}

func New() *Topology {
	return &Topology{roots: make(map[string]Node)}
}

func (t *Topology) Add(name string, root Node) {
	if _, ok := t.roots[name]; !ok {
		t.names = append(t.names, name)
	}
	t.roots[name] = root
}

func (t *Topology) Root(name string) (Node, bool) {
	n, ok := t.roots[name]
	return n, ok
}

// Names returns stream names in the order they were added.
func (t *Topology) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *Topology) Walk(fn WalkFunc) error {
	for _, name := range t.names {
		if err := Walk(t.roots[name], fn); err != nil {
			return err
		}
	}

	return nil
}

func (t *Topology) Lifecycles() []Lifecycle {
	var list []Lifecycle
	for _, name := range t.names {
		list = append(list, Lifecycles(t.roots[name])...)
	}

	return list
}
