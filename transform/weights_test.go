package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestRedistributeWeights(t *testing.T) {
	r := buildRig(t, true)
	AddConstraints(r.doc, DefaultConstraintOptions())

	hips := float64(r.jointIndex("J_Bip_C_Hips"))
	ua := float64(r.jointIndex("J_Bip_L_UpperArm"))
	la := float64(r.jointIndex("J_Bip_L_LowerArm"))
	hand := float64(r.jointIndex("J_Bip_L_Hand"))
	rollLower := float64(r.jointIndex("J_Roll_L_LowerArm"))
	rollHand := float64(r.jointIndex("J_Roll_L_Hand"))

	r.joints.Array = []float64{
		la, ua, 0, 0,
		la, hand, 0, 0,
		la, hand, 0, 0,
		la, ua, hand, hips,
	}
	r.weights.Array = []float64{
		0.8, 0.2, 0, 0,
		0.2, 0.8, 0, 0,
		0.5, 0.5, 0, 0,
		0.8, 0.1, 0.05, 0.05,
	}

	stats := RedistributeWeights(r.doc)
	assert.Equal(t, WeightStats{Vertices: 2, Moves: 2, Skipped: 1}, stats)

	j := r.joints.Element(0, nil)
	w := r.weights.Element(0, nil)
	assert.Equal(t, rollLower, j[2])
	assert.InDeltaSlice(t, []float64{0.68, 0.2, 0.12, 0}, w, 1e-9)

	j = r.joints.Element(1, nil)
	w = r.weights.Element(1, nil)
	assert.Equal(t, rollHand, j[2])
	assert.InDeltaSlice(t, []float64{0.15, 0.8, 0.05, 0}, w, 1e-9)

	assert.Equal(t, []float64{0.5, 0.5, 0, 0}, r.weights.Element(2, nil))
	assert.Equal(t, []float64{la, ua, hand, hips}, r.joints.Element(3, nil))

	for v := 0; v < r.weights.Count(); v++ {
		w := r.weights.Element(v, nil)
		assert.InDelta(t, 1, floats.Sum(w), 1e-6)
		assert.GreaterOrEqual(t, floats.Min(w), 0.0)
	}
}

func TestRedistributeWeightsWithoutRollBones(t *testing.T) {
	r := buildRig(t, true)
	la := float64(r.jointIndex("J_Bip_L_LowerArm"))
	r.joints.Array[0] = la
	r.weights.Array[0] = 1
	before := append([]float64(nil), r.weights.Array...)

	stats := RedistributeWeights(r.doc)

	assert.Equal(t, WeightStats{}, stats)
	assert.Equal(t, before, r.weights.Array)
}

func TestRedistributeWeightsSharedAccessor(t *testing.T) {
	r := buildRig(t, true)
	AddConstraints(r.doc, DefaultConstraintOptions())
	r.joints.Array[0] = float64(r.jointIndex("J_Bip_L_LowerArm"))

	// a second node instancing the same mesh must not move weight twice
	twin := r.doc.CreateNode("BodyTwin")
	twin.SetMesh(r.body.Mesh())
	twin.SetSkin(r.skin)

	stats := RedistributeWeights(r.doc)
	require.Equal(t, 1, stats.Vertices)
	assert.InDelta(t, 0.85, r.weights.Array[0], 1e-9)
}
