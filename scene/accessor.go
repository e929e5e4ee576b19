package scene

import (
	"math"

	"github.com/mogaika/vrm_transform/graph"
)

type AccessorType string

const (
	TypeScalar AccessorType = "SCALAR"
	TypeVec2   AccessorType = "VEC2"
	TypeVec3   AccessorType = "VEC3"
	TypeVec4   AccessorType = "VEC4"
	TypeMat2   AccessorType = "MAT2"
	TypeMat3   AccessorType = "MAT3"
	TypeMat4   AccessorType = "MAT4"
)

func (t AccessorType) ElementSize() int {
	switch t {
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4, TypeMat2:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	default:
		return 1
	}
}

// ComponentType uses the glTF component codes.
type ComponentType uint16

const (
	ComponentByte          ComponentType = 5120
	ComponentUnsignedByte  ComponentType = 5121
	ComponentShort         ComponentType = 5122
	ComponentUnsignedShort ComponentType = 5123
	ComponentUnsignedInt   ComponentType = 5125
	ComponentFloat         ComponentType = 5126
)

func (c ComponentType) ByteSize() int {
	switch c {
	case ComponentByte, ComponentUnsignedByte:
		return 1
	case ComponentShort, ComponentUnsignedShort:
		return 2
	default:
		return 4
	}
}

// MaxValue is the largest integer storable in the component, 0 for floats.
func (c ComponentType) MaxValue() float64 {
	switch c {
	case ComponentByte:
		return math.MaxInt8
	case ComponentUnsignedByte:
		return math.MaxUint8
	case ComponentShort:
		return math.MaxInt16
	case ComponentUnsignedShort:
		return math.MaxUint16
	case ComponentUnsignedInt:
		return math.MaxUint32
	default:
		return 0
	}
}

// Accessor holds element data as a flat array. Normalized integer data is
// kept in its denormalized float form and quantized again on write.
type Accessor struct {
	graph.Base
	Type          AccessorType
	ComponentType ComponentType
	Normalized    bool
	Array         []float64
}

func (a *Accessor) Kind() graph.Kind { return KindAccessor }

func (a *Accessor) ElementSize() int { return a.Type.ElementSize() }

func (a *Accessor) Count() int {
	return len(a.Array) / a.ElementSize()
}

// Element copies element i into dst, allocating when dst is too short.
func (a *Accessor) Element(i int, dst []float64) []float64 {
	size := a.ElementSize()
	if len(dst) < size {
		dst = make([]float64, size)
	}
	copy(dst, a.Array[i*size:(i+1)*size])
	return dst[:size]
}

func (a *Accessor) SetElement(i int, v []float64) {
	size := a.ElementSize()
	copy(a.Array[i*size:(i+1)*size], v[:size])
}

// AppendElement grows the array by one element.
func (a *Accessor) AppendElement(v []float64) {
	a.Array = append(a.Array, v[:a.ElementSize()]...)
}

// MinMax returns per-component bounds, nil for an empty accessor.
func (a *Accessor) MinMax() (min, max []float64) {
	size := a.ElementSize()
	if len(a.Array) < size {
		return nil, nil
	}
	min = make([]float64, size)
	max = make([]float64, size)
	copy(min, a.Array[:size])
	copy(max, a.Array[:size])
	for i := size; i < len(a.Array); i++ {
		c := i % size
		v := a.Array[i]
		if v < min[c] {
			min[c] = v
		}
		if v > max[c] {
			max[c] = v
		}
	}
	return min, max
}
