package scene

import "github.com/mogaika/vrm_transform/graph"

const (
	edgeScenes       = "scenes"
	edgeNodes        = "nodes"
	edgeMeshes       = "meshes"
	edgeAccessors    = "accessors"
	edgeSkins        = "skins"
	edgeMaterials    = "materials"
	edgeTextures     = "textures"
	edgeCameras      = "cameras"
	edgeAnimations   = "animations"
	edgeDefaultScene = "scene"
)

type Asset struct {
	Version    string
	Generator  string
	Copyright  string
	MinVersion string
}

// Root lists every top-level property of a document. Root edges never count as usage.
type Root struct {
	graph.Base
	Asset Asset
}

func (r *Root) Kind() graph.Kind { return KindRoot }

func (r *Root) ListScenes() []*Scene { return graph.As[*Scene](r.Refs(edgeScenes)) }

func (r *Root) ListNodes() []*Node { return graph.As[*Node](r.Refs(edgeNodes)) }

func (r *Root) ListMeshes() []*Mesh { return graph.As[*Mesh](r.Refs(edgeMeshes)) }

func (r *Root) ListAccessors() []*Accessor { return graph.As[*Accessor](r.Refs(edgeAccessors)) }

func (r *Root) ListSkins() []*Skin { return graph.As[*Skin](r.Refs(edgeSkins)) }

func (r *Root) ListMaterials() []*Material { return graph.As[*Material](r.Refs(edgeMaterials)) }

func (r *Root) ListTextures() []*Texture { return graph.As[*Texture](r.Refs(edgeTextures)) }

func (r *Root) ListCameras() []*Camera { return graph.As[*Camera](r.Refs(edgeCameras)) }

func (r *Root) ListAnimations() []*Animation { return graph.As[*Animation](r.Refs(edgeAnimations)) }

func (r *Root) DefaultScene() *Scene {
	return graph.RefAs[*Scene](&r.Base, edgeDefaultScene)
}

func (r *Root) SetDefaultScene(s *Scene) {
	r.SetRef(edgeDefaultScene, s, nil)
}

// FindNode returns the first node called name.
func (r *Root) FindNode(name string) *Node {
	for _, n := range r.ListNodes() {
		if n.Name == name {
			return n
		}
	}
	return nil
}
