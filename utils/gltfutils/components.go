package gltfutils

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/vrm_transform/scene"
)

func componentTypeFromGLTF(c gltf.ComponentType) scene.ComponentType {
	switch c {
	case gltf.ComponentByte:
		return scene.ComponentByte
	case gltf.ComponentUbyte:
		return scene.ComponentUnsignedByte
	case gltf.ComponentShort:
		return scene.ComponentShort
	case gltf.ComponentUshort:
		return scene.ComponentUnsignedShort
	case gltf.ComponentUint:
		return scene.ComponentUnsignedInt
	default:
		return scene.ComponentFloat
	}
}

func componentTypeToGLTF(c scene.ComponentType) gltf.ComponentType {
	switch c {
	case scene.ComponentByte:
		return gltf.ComponentByte
	case scene.ComponentUnsignedByte:
		return gltf.ComponentUbyte
	case scene.ComponentShort:
		return gltf.ComponentShort
	case scene.ComponentUnsignedShort:
		return gltf.ComponentUshort
	case scene.ComponentUnsignedInt:
		return gltf.ComponentUint
	default:
		return gltf.ComponentFloat
	}
}

func accessorTypeFromGLTF(t gltf.AccessorType) scene.AccessorType {
	switch t {
	case gltf.AccessorVec2:
		return scene.TypeVec2
	case gltf.AccessorVec3:
		return scene.TypeVec3
	case gltf.AccessorVec4:
		return scene.TypeVec4
	case gltf.AccessorMat2:
		return scene.TypeMat2
	case gltf.AccessorMat3:
		return scene.TypeMat3
	case gltf.AccessorMat4:
		return scene.TypeMat4
	default:
		return scene.TypeScalar
	}
}

func accessorTypeToGLTF(t scene.AccessorType) gltf.AccessorType {
	switch t {
	case scene.TypeVec2:
		return gltf.AccessorVec2
	case scene.TypeVec3:
		return gltf.AccessorVec3
	case scene.TypeVec4:
		return gltf.AccessorVec4
	case scene.TypeMat2:
		return gltf.AccessorMat2
	case scene.TypeMat3:
		return gltf.AccessorMat3
	case scene.TypeMat4:
		return gltf.AccessorMat4
	default:
		return gltf.AccessorScalar
	}
}

// elementLayout describes how one element is laid out in a buffer view.
// Matrix columns of 1 and 2 byte components are padded to 4 bytes.
type elementLayout struct {
	components int
	compSize   int
	rows       int
	colStride  int
}

func newElementLayout(t scene.AccessorType, c scene.ComponentType) elementLayout {
	l := elementLayout{components: t.ElementSize(), compSize: c.ByteSize()}
	switch t {
	case scene.TypeMat2:
		l.rows = 2
	case scene.TypeMat3:
		l.rows = 3
	case scene.TypeMat4:
		l.rows = 4
	}
	if l.rows != 0 {
		l.colStride = align4(l.rows * l.compSize)
	}
	return l
}

func (l elementLayout) offset(component int) int {
	if l.rows == 0 {
		return component * l.compSize
	}
	return (component/l.rows)*l.colStride + (component%l.rows)*l.compSize
}

func (l elementLayout) byteSize() int {
	if l.rows == 0 {
		return l.components * l.compSize
	}
	return l.components / l.rows * l.colStride
}

func align4(n int) int {
	return (n + 3) &^ 3
}

func decodeComponent(data []byte, c scene.ComponentType, normalized bool) float64 {
	var v float64
	switch c {
	case scene.ComponentByte:
		v = float64(int8(data[0]))
		if normalized {
			return math.Max(v/127, -1)
		}
	case scene.ComponentUnsignedByte:
		v = float64(data[0])
		if normalized {
			return v / 255
		}
	case scene.ComponentShort:
		v = float64(int16(binary.LittleEndian.Uint16(data)))
		if normalized {
			return math.Max(v/32767, -1)
		}
	case scene.ComponentUnsignedShort:
		v = float64(binary.LittleEndian.Uint16(data))
		if normalized {
			return v / 65535
		}
	case scene.ComponentUnsignedInt:
		v = float64(binary.LittleEndian.Uint32(data))
	default:
		v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	}
	return v
}

func encodeComponent(dst []byte, v float64, c scene.ComponentType, normalized bool) {
	if c != scene.ComponentFloat {
		if normalized {
			lo := 0.0
			if c == scene.ComponentByte || c == scene.ComponentShort {
				lo = -1
			}
			v = math.Max(lo, math.Min(1, v)) * c.MaxValue()
		}
		v = math.Round(v)
	}
	switch c {
	case scene.ComponentByte:
		dst[0] = byte(int8(v))
	case scene.ComponentUnsignedByte:
		dst[0] = byte(v)
	case scene.ComponentShort:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case scene.ComponentUnsignedShort:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case scene.ComponentUnsignedInt:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	default:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	}
}

// decodeElements reads count elements starting at offset with the given stride.
func decodeElements(data []byte, offset, stride, count int, l elementLayout, c scene.ComponentType, normalized bool, out []float64) error {
	if stride == 0 {
		stride = l.byteSize()
	}
	for i := 0; i < count; i++ {
		base := offset + i*stride
		for k := 0; k < l.components; k++ {
			at := base + l.offset(k)
			if at < 0 || at+l.compSize > len(data) {
				return errors.Errorf("Element %d out of buffer bounds (%d > %d)", i, at+l.compSize, len(data))
			}
			out[i*l.components+k] = decodeComponent(data[at:], c, normalized)
		}
	}
	return nil
}

func encodeElement(dst []byte, values []float64, l elementLayout, c scene.ComponentType, normalized bool) {
	for k := 0; k < l.components; k++ {
		encodeComponent(dst[l.offset(k):], values[k], c, normalized)
	}
}

func primitiveModeFromGLTF(m gltf.PrimitiveMode) scene.PrimitiveMode {
	switch m {
	case gltf.PrimitivePoints:
		return scene.ModePoints
	case gltf.PrimitiveLines:
		return scene.ModeLines
	case gltf.PrimitiveLineLoop:
		return scene.ModeLineLoop
	case gltf.PrimitiveLineStrip:
		return scene.ModeLineStrip
	case gltf.PrimitiveTriangleStrip:
		return scene.ModeTriangleStrip
	case gltf.PrimitiveTriangleFan:
		return scene.ModeTriangleFan
	default:
		return scene.ModeTriangles
	}
}

func primitiveModeToGLTF(m scene.PrimitiveMode) gltf.PrimitiveMode {
	switch m {
	case scene.ModePoints:
		return gltf.PrimitivePoints
	case scene.ModeLines:
		return gltf.PrimitiveLines
	case scene.ModeLineLoop:
		return gltf.PrimitiveLineLoop
	case scene.ModeLineStrip:
		return gltf.PrimitiveLineStrip
	case scene.ModeTriangleStrip:
		return gltf.PrimitiveTriangleStrip
	case scene.ModeTriangleFan:
		return gltf.PrimitiveTriangleFan
	default:
		return gltf.PrimitiveTriangles
	}
}

func interpolationFromGLTF(i gltf.Interpolation) string {
	switch i {
	case gltf.InterpolationStep:
		return "STEP"
	case gltf.InterpolationCubicSpline:
		return "CUBICSPLINE"
	default:
		return "LINEAR"
	}
}

func interpolationToGLTF(s string) gltf.Interpolation {
	switch s {
	case "STEP":
		return gltf.InterpolationStep
	case "CUBICSPLINE":
		return gltf.InterpolationCubicSpline
	default:
		return gltf.InterpolationLinear
	}
}

func pathFromGLTF(p gltf.TRSProperty) string {
	switch p {
	case gltf.TRSRotation:
		return "rotation"
	case gltf.TRSScale:
		return "scale"
	case gltf.TRSWeights:
		return "weights"
	default:
		return "translation"
	}
}

func pathToGLTF(s string) gltf.TRSProperty {
	switch s {
	case "rotation":
		return gltf.TRSRotation
	case "scale":
		return gltf.TRSScale
	case "weights":
		return gltf.TRSWeights
	default:
		return gltf.TRSTranslation
	}
}

// sortSemantics orders attributes the way exporters usually emit them:
// POSITION, NORMAL, TANGENT, then the indexed sets alphabetically.
func sortSemantics(semantics []string) {
	rank := func(s string) int {
		switch s {
		case "POSITION":
			return 0
		case "NORMAL":
			return 1
		case "TANGENT":
			return 2
		}
		return 3
	}
	sort.Slice(semantics, func(i, j int) bool {
		ri, rj := rank(semantics[i]), rank(semantics[j])
		if ri != rj {
			return ri < rj
		}
		return semantics[i] < semantics[j]
	})
}
