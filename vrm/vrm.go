// Package vrm holds the VRM 1.0 glTF extensions as typed graph properties.
package vrm

import (
	"encoding/json"
	"sort"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const (
	ExtVrm            = "VRMC_vrm"
	ExtMaterialsMToon = "VRMC_materials_mtoon"
	ExtNodeConstraint = "VRMC_node_constraint"
	ExtSpringBone     = "VRMC_springBone"

	SpecVersion = "1.0"
)

var PresetExpressionNames = []string{
	"happy",
	"angry",
	"sad",
	"relaxed",
	"surprised",
	"aa",
	"ih",
	"ou",
	"ee",
	"oh",
	"blink",
	"blinkLeft",
	"blinkRight",
	"lookUp",
	"lookDown",
	"lookLeft",
	"lookRight",
	"neutral",
}

func IsPresetExpression(name string) bool {
	for _, preset := range PresetExpressionNames {
		if preset == name {
			return true
		}
	}
	return false
}

func init() {
	gltf.RegisterExtension(ExtNodeConstraint, unmarshalInto[nodeConstraintDef])
	gltf.RegisterExtension(ExtSpringBone, unmarshalInto[springBoneDef])
	gltf.RegisterExtension(ExtMaterialsMToon, unmarshalInto[mtoonDef])
	gltf.RegisterExtension(ExtVrm, unmarshalInto[vrmDef])

	gltfutils.RegisterCodec(nodeConstraintCodec{})
	gltfutils.RegisterCodec(springBoneCodec{})
	gltfutils.RegisterCodec(mtoonCodec{})
	gltfutils.RegisterCodec(vrmCodec{})
}

func unmarshalInto[T any](data []byte) (interface{}, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// decode returns the extension definition whether the decoder already typed it or left it raw.
func decode[T any](ext gltf.Extensions, name string) (*T, error) {
	if v, ok := ext[name].(*T); ok {
		return v, nil
	}
	v := new(T)
	ok, err := gltfutils.DecodeExtension(ext, name, v)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func setExtension(ext *gltf.Extensions, name string, v interface{}) {
	if *ext == nil {
		*ext = make(gltf.Extensions)
	}
	(*ext)[name] = v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
