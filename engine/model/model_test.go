package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUVertexLayout(t *testing.T) {
	v := GPUVertex{
		Position: [3]float32{1, 2, 3},
		Normal:   [3]float32{0, 1, 0},
		UV:       [2]float32{0.25, 0.75},
	}
	require.Equal(t, GPUVertexStride, v.Size())

	buf := v.Marshal()
	require.Len(t, buf, GPUVertexStride)
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, float32(0.75), math.Float32frombits(binary.LittleEndian.Uint32(buf[28:])))

	packed := MarshalVertices([]GPUVertex{v, v})
	assert.Equal(t, buf, packed[GPUVertexStride:])
}

func TestMarshalIndices(t *testing.T) {
	buf := MarshalIndices([]uint32{0, 7, 65536})
	require.Len(t, buf, 12)
	assert.Equal(t, uint32(65536), binary.LittleEndian.Uint32(buf[8:]))
}

func TestSceneNodeDefaults(t *testing.T) {
	n := NewSceneNode("wall-1")
	assert.Equal(t, "wall-1", n.Name())
	assert.Equal(t, mgl32.Ident4(), n.Transform())
	assert.Nil(t, n.Mesh())
	assert.Equal(t, DefaultMaterial(), n.Material(3))
}

func TestSceneNodeMaterialsAreCopied(t *testing.T) {
	mats := []MaterialDescriptor{{Name: "steel", Metallic: 1}}
	n := NewSceneNode("beam", WithMaterials(mats), WithName("Beam"), WithTransform(mgl32.Translate3D(1, 0, 0)))
	mats[0].Name = "mutated"

	assert.Equal(t, "steel", n.Material(0).Name)
	got := n.Materials()
	got[0].Name = "mutated"
	assert.Equal(t, "steel", n.Material(0).Name)
	assert.Equal(t, "Beam", n.Name())
	assert.Equal(t, float32(1), n.Transform().Col(3)[0])
}

func TestEventConstructors(t *testing.T) {
	mesh := &MeshDescriptor{Positions: [][3]float32{{0, 0, 0}}, Indices: []uint32{0, 0, 0}}
	add := NodeAdded("a", mesh, mgl32.Ident4(), DefaultMaterial())
	assert.Equal(t, EventNodeAdded, add.Kind)
	assert.Len(t, add.Materials, 1)
	assert.Equal(t, "NodeAdded", add.Kind.String())

	upd := NodeUpdated("a", mesh)
	assert.Equal(t, EventNodeUpdated, upd.Kind)
	assert.Same(t, mesh, upd.Mesh)

	rm := NodeRemoved("a")
	assert.Equal(t, "NodeRemoved", rm.Kind.String())
	assert.Equal(t, 1, mesh.TriangleCount())
	assert.Equal(t, "a@2", MeshRef{Node: "a", Generation: 2}.String())
}
