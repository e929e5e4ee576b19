// Package scene is the in-memory glTF document model the transforms operate on.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
)

const (
	KindRoot             graph.Kind = "Root"
	KindScene            graph.Kind = "Scene"
	KindNode             graph.Kind = "Node"
	KindMesh             graph.Kind = "Mesh"
	KindPrimitive        graph.Kind = "Primitive"
	KindPrimitiveTarget  graph.Kind = "PrimitiveTarget"
	KindAccessor         graph.Kind = "Accessor"
	KindSkin             graph.Kind = "Skin"
	KindMaterial         graph.Kind = "Material"
	KindTexture          graph.Kind = "Texture"
	KindTextureInfo      graph.Kind = "TextureInfo"
	KindCamera           graph.Kind = "Camera"
	KindAnimation        graph.Kind = "Animation"
	KindAnimationChannel graph.Kind = "AnimationChannel"
	KindAnimationSampler graph.Kind = "AnimationSampler"
)

type Document struct {
	graph  *graph.Graph
	root   *Root
	logger *zap.Logger
}

func NewDocument() *Document {
	d := &Document{
		graph:  graph.New(),
		logger: zap.NewNop(),
	}
	d.root = &Root{}
	d.root.Asset.Version = "2.0"
	d.graph.Add(d.root)
	return d
}

func (d *Document) Graph() *graph.Graph { return d.graph }

func (d *Document) Root() *Root { return d.root }

func (d *Document) Logger() *zap.Logger { return d.logger }

func (d *Document) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	d.logger = l
}

// Add registers an extension property or other free-standing property.
func (d *Document) Add(p graph.Property) graph.Property {
	return d.graph.Add(p)
}

func (d *Document) CreateScene(name string) *Scene {
	s := &Scene{}
	s.Name = name
	d.root.AddRef(edgeScenes, s, nil)
	return s
}

func (d *Document) CreateNode(name string) *Node {
	n := &Node{
		Rotation: identityQuat(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
	n.Name = name
	d.root.AddRef(edgeNodes, n, nil)
	return n
}

func (d *Document) CreateMesh(name string) *Mesh {
	m := &Mesh{}
	m.Name = name
	d.root.AddRef(edgeMeshes, m, nil)
	return m
}

// CreatePrimitive creates a primitive owned by nobody until it is added to a mesh.
func (d *Document) CreatePrimitive() *Primitive {
	p := &Primitive{Mode: ModeTriangles}
	d.graph.Add(p)
	return p
}

func (d *Document) CreatePrimitiveTarget() *PrimitiveTarget {
	t := &PrimitiveTarget{}
	d.graph.Add(t)
	return t
}

func (d *Document) CreateAccessor(name string, t AccessorType, ct ComponentType) *Accessor {
	a := &Accessor{Type: t, ComponentType: ct}
	a.Name = name
	d.root.AddRef(edgeAccessors, a, nil)
	return a
}

// CloneAccessor copies a into a new root-level accessor.
func (d *Document) CloneAccessor(a *Accessor) *Accessor {
	c := d.CreateAccessor(a.Name, a.Type, a.ComponentType)
	c.Normalized = a.Normalized
	c.Array = make([]float64, len(a.Array))
	copy(c.Array, a.Array)
	c.Extras = copyExtras(a.Extras)
	return c
}

func (d *Document) CreateSkin(name string) *Skin {
	s := &Skin{}
	s.Name = name
	d.root.AddRef(edgeSkins, s, nil)
	return s
}

func (d *Document) CreateMaterial(name string) *Material {
	m := newMaterial()
	m.Name = name
	d.root.AddRef(edgeMaterials, m, nil)
	return m
}

func (d *Document) CreateTexture(name string) *Texture {
	t := &Texture{}
	t.Name = name
	d.root.AddRef(edgeTextures, t, nil)
	return t
}

func (d *Document) CreateCamera(name string) *Camera {
	c := &Camera{}
	c.Name = name
	d.root.AddRef(edgeCameras, c, nil)
	return c
}

func (d *Document) CreateAnimation(name string) *Animation {
	a := &Animation{}
	a.Name = name
	d.root.AddRef(edgeAnimations, a, nil)
	return a
}

func (d *Document) CreateAnimationChannel() *AnimationChannel {
	c := &AnimationChannel{}
	d.graph.Add(c)
	return c
}

func (d *Document) CreateAnimationSampler() *AnimationSampler {
	s := &AnimationSampler{Interpolation: "LINEAR"}
	d.graph.Add(s)
	return s
}

func copyExtras(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
