package scene

import (
	"encoding/json"

	"github.com/mogaika/vrm_transform/graph"
)

const (
	edgeChannels   = "channels"
	edgeSamplers   = "samplers"
	edgeTargetNode = "targetNode"
	edgeSampler    = "sampler"
	edgeInput      = "input"
	edgeOutput     = "output"
)

// Camera keeps the projection as its glTF JSON; no transform edits cameras.
type Camera struct {
	graph.Base
	Data json.RawMessage
}

func (c *Camera) Kind() graph.Kind { return KindCamera }

type Animation struct {
	graph.Base
}

func (a *Animation) Kind() graph.Kind { return KindAnimation }

func (a *Animation) Channels() []*AnimationChannel {
	return graph.As[*AnimationChannel](a.Refs(edgeChannels))
}

func (a *Animation) AddChannel(c *AnimationChannel) { a.AddRef(edgeChannels, c, nil) }

func (a *Animation) Samplers() []*AnimationSampler {
	return graph.As[*AnimationSampler](a.Refs(edgeSamplers))
}

func (a *Animation) AddSampler(s *AnimationSampler) { a.AddRef(edgeSamplers, s, nil) }

type AnimationChannel struct {
	graph.Base
	TargetPath string
}

func (c *AnimationChannel) Kind() graph.Kind { return KindAnimationChannel }

func (c *AnimationChannel) TargetNode() *Node {
	return graph.RefAs[*Node](&c.Base, edgeTargetNode)
}

func (c *AnimationChannel) SetTargetNode(n *Node) { c.SetRef(edgeTargetNode, n, nil) }

func (c *AnimationChannel) Sampler() *AnimationSampler {
	return graph.RefAs[*AnimationSampler](&c.Base, edgeSampler)
}

func (c *AnimationChannel) SetSampler(s *AnimationSampler) { c.SetRef(edgeSampler, s, nil) }

type AnimationSampler struct {
	graph.Base
	Interpolation string
}

func (s *AnimationSampler) Kind() graph.Kind { return KindAnimationSampler }

func (s *AnimationSampler) Input() *Accessor { return graph.RefAs[*Accessor](&s.Base, edgeInput) }

func (s *AnimationSampler) SetInput(a *Accessor) { s.SetRef(edgeInput, a, nil) }

func (s *AnimationSampler) Output() *Accessor { return graph.RefAs[*Accessor](&s.Base, edgeOutput) }

func (s *AnimationSampler) SetOutput(a *Accessor) { s.SetRef(edgeOutput, a, nil) }
