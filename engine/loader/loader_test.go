package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/procgen"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadBin lays out positions (48 bytes), UVs (32 bytes) and uint16 indices (12 bytes).
func quadBin(t *testing.T, indices []uint16) []byte {
	t.Helper()
	var b bytes.Buffer
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}
	uvs := [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	require.NoError(t, binary.Write(&b, binary.LittleEndian, positions))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, uvs))
	require.NoError(t, binary.Write(&b, binary.LittleEndian, indices))
	return b.Bytes()
}

var quadIndices = []uint16{0, 2, 1, 0, 3, 2}

// sceneDoc varies the test scene: a root with a translated, scaled "panel" child and a
// "floor" root node instancing the same mesh.
type sceneDoc struct {
	translation [3]float32
	baseColor   [4]float32
	dropPanel   bool
	indexCount  int
}

func defaultDoc() sceneDoc {
	return sceneDoc{translation: [3]float32{1, 2, 3}, baseColor: [4]float32{1, 0, 0, 1}, indexCount: 6}
}

func (s sceneDoc) document(t *testing.T, bin []byte, embed bool) []byte {
	t.Helper()
	buffer := map[string]any{"byteLength": len(bin)}
	if embed {
		buffer["uri"] = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
	}
	children := []int{1}
	if s.dropPanel {
		children = nil
	}

	doc := map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"nodes": []int{0, 2}}},
		"nodes": []any{
			map[string]any{"name": "root", "children": children, "translation": s.translation},
			map[string]any{"name": "panel", "mesh": 0, "scale": []float32{2, 2, 2}},
			map[string]any{"name": "floor", "mesh": 0},
		},
		"meshes": []any{map[string]any{
			"name": "quad",
			"primitives": []any{map[string]any{
				"attributes": map[string]int{"POSITION": 0, "TEXCOORD_0": 1},
				"indices":    2,
				"material":   0,
			}},
		}},
		"materials": []any{map[string]any{
			"name": "paint",
			"pbrMetallicRoughness": map[string]any{
				"baseColorFactor": s.baseColor,
				"metallicFactor":  0,
			},
		}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": 5126, "count": 4, "type": "VEC2"},
			map[string]any{"bufferView": 2, "componentType": 5123, "count": s.indexCount, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 48},
			map[string]any{"buffer": 0, "byteOffset": 48, "byteLength": 32},
			map[string]any{"buffer": 0, "byteOffset": 80, "byteLength": 12},
		},
		"buffers": []any{buffer},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func glb(jsonChunk, bin []byte) []byte {
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var b bytes.Buffer
	total := 12 + 8 + len(jsonChunk) + 8 + len(bin)
	_ = binary.Write(&b, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: 2, Length: uint32(total)})
	_ = binary.Write(&b, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(jsonChunk)), ChunkType: gltfGLBChunkJSON})
	b.Write(jsonChunk)
	_ = binary.Write(&b, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	b.Write(bin)
	return b.Bytes()
}

func loadDoc(t *testing.T, l Loader, s sceneDoc) []model.Event {
	t.Helper()
	doc := s.document(t, quadBin(t, quadIndices), true)
	events, err := l.LoadReader("scene", bytes.NewReader(doc), FormatGLTF)
	require.NoError(t, err)
	return events
}

func TestLoadReaderGLTF(t *testing.T) {
	l := NewLoader()
	events := loadDoc(t, l, defaultDoc())
	require.Len(t, events, 2)

	panel, floor := events[0], events[1]
	assert.Equal(t, model.EventNodeAdded, panel.Kind)
	assert.Equal(t, model.NodeID("scene/panel"), panel.Node)
	assert.Equal(t, model.NodeID("scene/floor"), floor.Node)
	assert.Equal(t, "panel", panel.Name)

	want := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, panel.Transform.ApproxEqual(want), "panel transform %v", panel.Transform)
	assert.True(t, floor.Transform.ApproxEqual(mgl32.Ident4()))

	assert.Same(t, panel.Mesh, floor.Mesh)
	assert.Len(t, panel.Mesh.Positions, 4)
	assert.Len(t, panel.Mesh.UVs, 4)
	assert.Empty(t, panel.Mesh.Normals)
	assert.Equal(t, []uint32{0, 2, 1, 0, 3, 2}, panel.Mesh.Indices)
	require.Len(t, panel.Mesh.Sections, 1)
	assert.Equal(t, model.MeshSection{FirstIndex: 0, IndexCount: 6, MaterialSlot: 0}, panel.Mesh.Sections[0])

	require.Len(t, panel.Materials, 1)
	assert.Equal(t, "paint", panel.Materials[0].Name)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, panel.Materials[0].BaseColor)
	assert.Equal(t, float32(0), panel.Materials[0].Metallic)
	assert.Equal(t, float32(1), panel.Materials[0].Roughness)

	synth := synthesis.NewEngine(gpu.NewMemoryDevice())
	t.Cleanup(synth.Close)
	mesh, err := synth.Synthesize(panel.Node, panel.Mesh)
	require.NoError(t, err)
	assert.True(t, mesh.HasUVs())
}

func TestReimportDiffs(t *testing.T) {
	l := NewLoader()
	loadDoc(t, l, defaultDoc())

	assert.Empty(t, loadDoc(t, l, defaultDoc()), "identical re-import")

	recolored := defaultDoc()
	recolored.baseColor = [4]float32{0, 0, 1, 1}
	events := loadDoc(t, l, recolored)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, model.EventNodeUpdated, ev.Kind)
		require.Len(t, ev.Materials, 1)
		assert.Equal(t, [4]float32{0, 0, 1, 1}, ev.Materials[0].BaseColor)
	}

	moved := recolored
	moved.translation = [3]float32{5, 0, 0}
	events = loadDoc(t, l, moved)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNodeAdded, events[0].Kind)
	assert.Equal(t, model.NodeID("scene/panel"), events[0].Node)

	dropped := moved
	dropped.dropPanel = true
	events = loadDoc(t, l, dropped)
	require.Len(t, events, 1)
	assert.Equal(t, model.NodeRemoved("scene/panel"), events[0])
	assert.Equal(t, []model.NodeID{"scene/floor"}, l.Nodes("scene"))
}

func TestFailedImportKeepsState(t *testing.T) {
	l := NewLoader()
	loadDoc(t, l, defaultDoc())

	bad := defaultDoc()
	doc := bad.document(t, quadBin(t, []uint16{0, 2, 9, 0, 3, 2}), true)
	_, err := l.LoadReader("scene", bytes.NewReader(doc), FormatGLTF)
	assert.ErrorIs(t, err, common.ErrInvalidGeometry)

	overrun := defaultDoc()
	overrun.indexCount = 60
	doc = overrun.document(t, quadBin(t, quadIndices), true)
	_, err = l.LoadReader("scene", bytes.NewReader(doc), FormatGLTF)
	assert.ErrorIs(t, err, errAccessorRange)

	assert.Equal(t, []model.NodeID{"scene/floor", "scene/panel"}, l.Nodes("scene"))
	assert.Empty(t, loadDoc(t, l, defaultDoc()))
}

func TestLoadGLBFile(t *testing.T) {
	bin := quadBin(t, quadIndices)
	data := glb(defaultDoc().document(t, bin, false), bin)

	path := filepath.Join(t.TempDir(), "room.glb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l := NewLoader(WithIDPrefix("assets"))
	events, err := l.Load(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	source := filepath.ToSlash(filepath.Clean(path))
	assert.Equal(t, model.NodeID("assets/"+strings.TrimPrefix(source, "/")+"/panel"), events[0].Node)
	assert.Equal(t, []string{source}, l.Sources())

	events, err = l.LoadReader("stream", bytes.NewReader(data), FormatGLB)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGLBRejectsBadHeader(t *testing.T) {
	data := glb(defaultDoc().document(t, nil, false), nil)
	binary.LittleEndian.PutUint32(data[0:4], 0xdeadbeef)
	_, err := NewLoader().LoadReader("bad", bytes.NewReader(data), FormatGLB)
	assert.ErrorIs(t, err, errInvalidGLBMagic)
}

func TestUnsupportedFormat(t *testing.T) {
	l := NewLoader()
	_, err := l.Load("model.fbx")
	assert.Error(t, err)
	_, err = l.LoadReader("x", strings.NewReader(""), FormatUnknown)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatGLTF, FormatFromPath("a/b.GLTF"))
	assert.Equal(t, FormatGLB, FormatFromPath("b.glb"))
	assert.Equal(t, FormatCSV, FormatFromPath("data.tsv"))
	assert.Equal(t, FormatJSON, FormatFromPath("data.json"))
	assert.Equal(t, FormatUnknown, FormatFromPath("data"))
}

func TestDatasetCharts(t *testing.T) {
	csv := "region;sales;units\nnorth;10;1\nsouth;20;2\neast;5;3\n"
	l := NewLoader(WithBoxGrid(procgen.BoxGridParams{Spacing: 0.25, MaxHeight: 4}))

	events, err := l.LoadReader("sales", strings.NewReader(csv), FormatCSV)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.NodeID("sales/sales"), events[0].Node)
	assert.Equal(t, model.NodeID("sales/units"), events[1].Node)
	assert.Len(t, events[0].Mesh.Positions, 3*procgen.VerticesPerBox)
	assert.NotEqual(t, events[0].Materials[0].BaseColor, events[1].Materials[0].BaseColor)
	assert.Greater(t, events[1].Transform.Col(3).X(), events[0].Transform.Col(3).X())

	l = NewLoader(WithValueColumns("units"), WithBoxGrid(procgen.BoxGridParams{Cols: 1}))
	events, err = l.LoadReader("sales", strings.NewReader(csv), FormatCSV)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "units", events[0].Name)
}

func TestDatasetPieCharts(t *testing.T) {
	csv := "region;sales;units\nnorth;10;1\nsouth;20;2\neast;5;3\n"
	l := NewLoader(WithPieChart(procgen.PieChartParams{InnerRadius: 0.25, GapAngle: 4}))

	events, err := l.LoadReader("sales", strings.NewReader(csv), FormatCSV)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		require.Len(t, ev.Materials, 3)
		require.Len(t, ev.Mesh.Sections, 3)
		for i, s := range ev.Mesh.Sections {
			assert.Equal(t, i, s.MaterialSlot)
		}
	}
	assert.Equal(t, "sales[1]", events[0].Materials[1].Name)
	assert.NotEqual(t, events[0].Materials[0].BaseColor, events[0].Materials[1].BaseColor)
	assert.InDelta(t, 1, events[0].Transform.Col(3).X(), 1e-6)
	assert.InDelta(t, 1+2+chartGap, events[1].Transform.Col(3).X(), 1e-6)
}

func TestDatasetLineChart(t *testing.T) {
	csv := "day,sales,units\n1,10,1\n2,20,2\n3,5,3\n"
	l := NewLoader(WithValueColumns("sales", "units"), WithLineChart(procgen.LineChartParams{MaxHeight: 2}))

	events, err := l.LoadReader("week", strings.NewReader(csv), FormatCSV)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.NodeID("week/line"), events[0].Node)
	assert.Equal(t, []string{"sales", "units"}, []string{events[0].Materials[0].Name, events[0].Materials[1].Name})
	require.Len(t, events[0].Mesh.Sections, 2)

	_, err = NewLoader(WithChart(procgen.ChartLine)).
		LoadReader("one", strings.NewReader("v\n1\n"), FormatCSV)
	assert.ErrorIs(t, err, common.ErrInvalidGeometry)
}

func TestDatasetJSONAndUnload(t *testing.T) {
	l := NewLoader()
	events, err := l.LoadReader("metrics", strings.NewReader(`[{"v":1},{"v":2}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, events, 1)

	removed := l.Unload("metrics")
	assert.Equal(t, []model.Event{model.NodeRemoved("metrics/v")}, removed)
	assert.Empty(t, l.Sources())
	assert.Empty(t, l.Unload("metrics"))

	_, err = l.LoadReader("words", strings.NewReader(`[{"w":"a"}]`), FormatJSON)
	assert.Error(t, err)
}
