package branch

import (
	"context"
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

// Predicate selects the records a branch receives. A nil predicate accepts
// every record.
type Predicate func(ctx context.Context, key interface{}, val interface{}) (bool, error)

type Details struct {
	Name      string
	Predicate Predicate
}

// Splitter hands every record to each matching branch in registration order.
// A branch error stops the remaining branches. A branch dropping the record
// does not.
type Splitter struct {
	Id             int32
	Branches       []topology.Node
	BranchBuilders []topology.NodeBuilder
}

func (bs *Splitter) ChildBuilders() []topology.NodeBuilder {
	return bs.BranchBuilders
}

func (bs *Splitter) Childs() []topology.Node {
	return bs.Branches
}

func (bs *Splitter) AddChildBuilder(builder topology.NodeBuilder) {
	bs.BranchBuilders = append(bs.BranchBuilders, builder)
}

func (bs *Splitter) AddChild(node topology.Node) {
	bs.Branches = append(bs.Branches, node)
}

func (bs *Splitter) Build() (topology.Node, error) {
	var branches []topology.Node
	names := map[string]bool{}

	for _, childBuilder := range bs.BranchBuilders {
		if b, ok := childBuilder.(*Branch); ok {
			if b.Name == `` {
				return nil, errors.New(`branch name cannot be empty`)
			}
			if names[b.Name] {
				return nil, errors.Errorf(`branch [%s] already exist`, b.Name)
			}
			names[b.Name] = true
		}

		branch, err := childBuilder.Build()
		if err != nil {
			return nil, err
		}

		branches = append(branches, branch)
	}

	return &Splitter{
		Branches: branches,
		Id:       bs.Id,
	}, nil
}

func (bs *Splitter) ID() int32 {
	return bs.Id
}

func (bs *Splitter) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	for _, b := range bs.Branches {
		branch, ok := b.(*Branch)
		if !ok {
			return nil, nil, false, errors.Errorf(`splitter child %T is not a branch`, b)
		}

		if branch.Predicate != nil {
			ok, err := branch.Predicate(ctx, kIn, vIn)
			if err != nil {
				return nil, nil, false, errors.WithPrevious(err, fmt.Sprintf(`branch [%s] predicate error`, branch.Name))
			}

			if !ok {
				continue
			}
		}

		if _, _, _, err := branch.Run(ctx, kIn, vIn); err != nil {
			return nil, nil, false, err
		}
	}

	return kIn, vIn, true, nil
}

func (bs *Splitter) Type() topology.Type {
	return topology.TypeSplitter
}

// Names returns the branch names in registration order.
func (bs *Splitter) Names() []string {
	var names []string
	for _, b := range bs.Branches {
		if branch, ok := b.(*Branch); ok {
			names = append(names, branch.Name)
		}
	}

	return names
}

type Branch struct {
	topology.Chain
	Id        int32
	Name      string
	Predicate Predicate
}

func (b *Branch) Build() (topology.Node, error) {
	childs, err := b.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Branch{
		Chain:     childs,
		Name:      b.Name,
		Predicate: b.Predicate,
		Id:        b.Id,
	}, nil
}

func (b *Branch) ID() int32 {
	return b.Id
}

func (b *Branch) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	cont, err = b.Forward(ctx, kIn, vIn)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kIn, vIn, true, nil
}

func (b *Branch) Type() topology.Type {
	return topology.TypeBranch
}
