package topology

import (
	"context"
)

type Type string

const (
	TypeSource      Type = `source`
	TypeSink        Type = `sink`
	TypeBranch      Type = `branch`
	TypeSplitter    Type = `branch_splitter`
	TypeFilter      Type = `filter`
	TypeTransformer Type = `transformer`
	TypeFlatMap     Type = `flat_map`
	TypeProcessor   Type = `processor`
	TypeJoiner      Type = `joiner`
	TypeMaterialize Type = `materializer`
	TypeGroupBy     Type = `group_by`
	TypeAggregate   Type = `aggregate`
	TypeWindow      Type = `window`
)

// Node runs its local effect and hands the result to its children. cont is
// false when the record stopped at or below this node without an error.
type Node interface {
	Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error)
	Type() Type
	Childs() []Node
	AddChild(node Node)
}

type NodeBuilder interface {
	Build() (Node, error)
	Type() Type
	ChildBuilders() []NodeBuilder
	AddChildBuilder(builder NodeBuilder)
}

// Identifiable nodes carry the builder assigned id, used when rendering.
type Identifiable interface {
	ID() int32
}

// Chain holds the children of a node and its builder. Nodes embed it.
type Chain struct {
	childs        []Node
	childBuilders []NodeBuilder
}

func (c *Chain) Childs() []Node {
	return c.childs
}

func (c *Chain) ChildBuilders() []NodeBuilder {
	return c.childBuilders
}

func (c *Chain) AddChild(node Node) {
	c.childs = append(c.childs, node)
}

func (c *Chain) AddChildBuilder(builder NodeBuilder) {
	c.childBuilders = append(c.childBuilders, builder)
}

// BuildChilds builds every child builder into a fresh chain.
func (c *Chain) BuildChilds() (Chain, error) {
	var built Chain
	for _, childBuilder := range c.childBuilders {
		child, err := childBuilder.Build()
		if err != nil {
			return Chain{}, err
		}

		built.childs = append(built.childs, child)
	}

	return built, nil
}

// Forward runs every child with (k, v) and stops at the first error or drop.
func (c *Chain) Forward(ctx context.Context, k, v interface{}) (bool, error) {
	for _, child := range c.childs {
		_, _, next, err := child.Run(ctx, k, v)
		if err != nil || !next {
			return false, err
		}
	}

	return true, nil
}
