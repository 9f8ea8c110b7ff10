/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type ProcessFunc func(ctx context.Context, key, value interface{}) error

// Processor runs a side effect and forwards the record unchanged.
type Processor struct {
	topology.Chain
	Id          int32
	ProcessFunc ProcessFunc
}

func (p *Processor) Run(ctx context.Context, kIn, vIn interface{}) (interface{}, interface{}, bool, error) {
	if err := p.ProcessFunc(ctx, kIn, vIn); err != nil {
		return kIn, vIn, false, errors.WithPrevious(err, `process error`)
	}

	next, err := p.Forward(ctx, kIn, vIn)
	if err != nil || !next {
		return nil, nil, false, err
	}

	return kIn, vIn, true, nil
}

func (p *Processor) Build() (topology.Node, error) {
	childs, err := p.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Processor{
		Chain:       childs,
		ProcessFunc: p.ProcessFunc,
		Id:          p.Id,
	}, nil
}

func (p *Processor) Name() string {
	return `processor`
}

func (p *Processor) Type() topology.Type {
	return topology.TypeProcessor
}

func (p *Processor) ID() int32 {
	return p.Id
}
