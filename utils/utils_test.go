package utils

import (
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestQuatToEuler(t *testing.T) {
	for _, test := range []struct {
		axis  mgl32.Vec3
		angle float32
		index int
	}{
		{mgl32.Vec3{1, 0, 0}, 0.5, 0},
		{mgl32.Vec3{0, 1, 0}, -0.7, 1},
		{mgl32.Vec3{0, 0, 1}, 1.2, 2},
	} {
		e := QuatToEuler(mgl32.QuatRotate(test.angle, test.axis))
		for i := 0; i < 3; i++ {
			expected := float32(0)
			if i == test.index {
				expected = test.angle
			}
			assert.InDelta(t, expected, e[i], 1e-5)
		}
	}

	deg := RadiansToDegreesV3(mgl32.Vec3{math.Pi, math.Pi / 2, 0})
	assert.InDelta(t, 180, deg[0], 1e-4)
	assert.InDelta(t, 90, deg[1], 1e-4)
}

func TestTransformPoint(t *testing.T) {
	p := TransformPoint(mgl32.Translate3D(1, 2, 3), mgl32.Vec3{1, 1, 1})
	assert.True(t, p.ApproxEqual(mgl32.Vec3{2, 3, 4}))
}

func TestSRGBToLinear(t *testing.T) {
	for _, test := range []struct {
		in, out float32
	}{
		{0, 0},
		{1, 1},
		{0.04, 0.04 * 0.0773993808},
		{0.5, 0.21404114},
	} {
		assert.InDelta(t, test.out, SRGBToLinear(test.in), 1e-5)
	}

	c := SRGBToLinearColor(mgl32.Vec4{1, 0, 0.5, 0.3})
	assert.InDelta(t, 0.3, c[3], 1e-6)
	assert.InDelta(t, 0.21404114, c[2], 1e-5)

	assert.Equal(t, mgl32.Vec4{255, 128, 0, 64}, NRGBAToVec4(color.NRGBA{R: 255, G: 128, A: 64}))
}

func TestSDump(t *testing.T) {
	out := SDump(struct {
		Name  string
		Count int
	}{"skin", 3})
	assert.Contains(t, out, "Name: (string) (len=4) \"skin\"")
	assert.Contains(t, out, "Count: (int) 3")
}
