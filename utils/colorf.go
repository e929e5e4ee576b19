package utils

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// NRGBAToVec4 returns the 0..255 channels of any colour without alpha premultiplication.
func NRGBAToVec4(c color.Color) mgl32.Vec4 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return mgl32.Vec4{float32(n.R), float32(n.G), float32(n.B), float32(n.A)}
}

func SRGBToLinear(c float32) float32 {
	if c < 0.04045 {
		return c * 0.0773993808
	}
	return float32(math.Pow(float64(c)*0.9478672986+0.0521327014, 2.4))
}

// SRGBToLinearColor converts rgb and keeps alpha.
func SRGBToLinearColor(c mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{SRGBToLinear(c[0]), SRGBToLinear(c[1]), SRGBToLinear(c[2]), c[3]}
}
