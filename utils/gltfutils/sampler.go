package gltfutils

import (
	"github.com/qmuntal/gltf"

	"github.com/mogaika/vrm_transform/scene"
)

// glTF sampler codes as stored on scene.TextureInfo.
const (
	filterNearest              = 9728
	filterLinear               = 9729
	filterNearestMipmapNearest = 9984
	filterLinearMipmapNearest  = 9985
	filterNearestMipmapLinear  = 9986
	filterLinearMipmapLinear   = 9987

	wrapClampToEdge    = 33071
	wrapMirroredRepeat = 33648
	wrapRepeat         = 10497
)

func applySampler(doc *gltf.Document, tex *gltf.Texture, ti *scene.TextureInfo) {
	ti.WrapS, ti.WrapT = wrapRepeat, wrapRepeat
	if tex == nil || tex.Sampler == nil || int(*tex.Sampler) >= len(doc.Samplers) {
		return
	}
	s := doc.Samplers[*tex.Sampler]
	ti.MagFilter = magFilterFromGLTF(s.MagFilter)
	ti.MinFilter = minFilterFromGLTF(s.MinFilter)
	ti.WrapS = wrapFromGLTF(s.WrapS)
	ti.WrapT = wrapFromGLTF(s.WrapT)
}

func magFilterFromGLTF(f gltf.MagFilter) int {
	switch f {
	case gltf.MagNearest:
		return filterNearest
	case gltf.MagLinear:
		return filterLinear
	default:
		return 0
	}
}

func magFilterToGLTF(code int) gltf.MagFilter {
	switch code {
	case filterNearest:
		return gltf.MagNearest
	case filterLinear:
		return gltf.MagLinear
	default:
		var unset gltf.MagFilter
		return unset
	}
}

func minFilterFromGLTF(f gltf.MinFilter) int {
	switch f {
	case gltf.MinNearest:
		return filterNearest
	case gltf.MinLinear:
		return filterLinear
	case gltf.MinNearestMipMapNearest:
		return filterNearestMipmapNearest
	case gltf.MinLinearMipMapNearest:
		return filterLinearMipmapNearest
	case gltf.MinNearestMipMapLinear:
		return filterNearestMipmapLinear
	case gltf.MinLinearMipMapLinear:
		return filterLinearMipmapLinear
	default:
		return 0
	}
}

func minFilterToGLTF(code int) gltf.MinFilter {
	switch code {
	case filterNearest:
		return gltf.MinNearest
	case filterLinear:
		return gltf.MinLinear
	case filterNearestMipmapNearest:
		return gltf.MinNearestMipMapNearest
	case filterLinearMipmapNearest:
		return gltf.MinLinearMipMapNearest
	case filterNearestMipmapLinear:
		return gltf.MinNearestMipMapLinear
	case filterLinearMipmapLinear:
		return gltf.MinLinearMipMapLinear
	default:
		var unset gltf.MinFilter
		return unset
	}
}

func wrapFromGLTF(w gltf.WrappingMode) int {
	switch w {
	case gltf.WrapClampToEdge:
		return wrapClampToEdge
	case gltf.WrapMirroredRepeat:
		return wrapMirroredRepeat
	default:
		return wrapRepeat
	}
}

func wrapToGLTF(code int) gltf.WrappingMode {
	switch code {
	case wrapClampToEdge:
		return gltf.WrapClampToEdge
	case wrapMirroredRepeat:
		return gltf.WrapMirroredRepeat
	default:
		return gltf.WrapRepeat
	}
}
