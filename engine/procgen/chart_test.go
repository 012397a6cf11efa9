package procgen

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertWellFormed checks winding against the stored normals, that every section covers whole
// triangles, and that faces occupy disjoint lightmap cells inside the unit square.
func assertWellFormed(t *testing.T, mesh *model.MeshDescriptor) {
	t.Helper()
	require.Len(t, mesh.Normals, len(mesh.Positions))
	require.Len(t, mesh.UVs, len(mesh.Positions))
	require.Zero(t, len(mesh.Indices)%3)

	var covered uint32
	for _, s := range mesh.Sections {
		assert.Equal(t, covered, s.FirstIndex)
		assert.Zero(t, s.IndexCount%3)
		covered += s.IndexCount
	}
	assert.Equal(t, uint32(len(mesh.Indices)), covered)

	type rect struct{ u0, v0, u1, v1 float32 }
	faces := map[uint32]rect{}
	for tri := 0; tri < len(mesh.Indices); tri += 3 {
		idx := mesh.Indices[tri : tri+3]
		a := mgl32.Vec3(mesh.Positions[idx[0]])
		b := mgl32.Vec3(mesh.Positions[idx[1]])
		c := mgl32.Vec3(mesh.Positions[idx[2]])
		require.Greater(t, common.TriangleArea(a, b, c), float32(0), "triangle %d", tri/3)
		geometric := b.Sub(a).Cross(c.Sub(a)).Normalize()
		assert.InDelta(t, 1, geometric.Dot(mgl32.Vec3(mesh.Normals[idx[0]])), 1e-3, "triangle %d", tri/3)

		key := min(idx[0], idx[1], idx[2])
		r, ok := faces[key]
		if !ok {
			r = rect{1, 1, 0, 0}
		}
		for _, i := range idx {
			uv := mesh.UVs[i]
			assert.True(t, uv[0] >= 0 && uv[0] <= 1 && uv[1] >= 0 && uv[1] <= 1, "uv %v", uv)
			r.u0, r.v0 = min(r.u0, uv[0]), min(r.v0, uv[1])
			r.u1, r.v1 = max(r.u1, uv[0]), max(r.v1, uv[1])
		}
		faces[key] = r
	}

	rects := make([]rect, 0, len(faces))
	for _, r := range faces {
		rects = append(rects, r)
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			a, b := rects[i], rects[j]
			assert.False(t, a.u0 < b.u1 && b.u0 < a.u1 && a.v0 < b.v1 && b.v0 < a.v1, "lightmap cells overlap")
		}
	}
}

// assertOutward checks every face normal points away from a point inside a convex solid.
func assertOutward(t *testing.T, mesh *model.MeshDescriptor, inside mgl32.Vec3) {
	t.Helper()
	for tri := 0; tri < len(mesh.Indices); tri += 3 {
		idx := mesh.Indices[tri : tri+3]
		centroid := mgl32.Vec3(mesh.Positions[idx[0]]).
			Add(mgl32.Vec3(mesh.Positions[idx[1]])).
			Add(mgl32.Vec3(mesh.Positions[idx[2]])).Mul(1.0 / 3)
		assert.Greater(t, mgl32.Vec3(mesh.Normals[idx[0]]).Dot(centroid.Sub(inside)), float32(0), "triangle %d", tri/3)
	}
}

// sectionRadius returns the largest XZ distance from the axis among a section's vertices.
func sectionRadius(mesh *model.MeshDescriptor, s model.MeshSection) float32 {
	var r float32
	for _, i := range mesh.Indices[s.FirstIndex : s.FirstIndex+s.IndexCount] {
		p := mesh.Positions[i]
		r = max(r, float32(math.Hypot(float64(p[0]), float64(p[2]))))
	}
	return r
}

func TestPieChartFullDisc(t *testing.T) {
	mesh, err := PieChart(PieChartParams{Values: []float32{5}, Segments: 16})
	require.NoError(t, err)
	assertWellFormed(t, mesh)
	assertOutward(t, mesh, mgl32.Vec3{0, 0.1, 0})

	require.Len(t, mesh.Sections, 1)
	assert.Equal(t, uint32(16*(3+3+6)), mesh.Sections[0].IndexCount, "top and bottom triangles plus an outer quad per segment, no caps")
	assert.InDelta(t, 1, sectionRadius(mesh, mesh.Sections[0]), 1e-5)
}

func TestPieChartRingWithGaps(t *testing.T) {
	mesh, err := PieChart(PieChartParams{
		Values:      []float32{1, 1, 2},
		InnerRadius: 0.3,
		GapAngle:    10,
		Height:      0.5,
	})
	require.NoError(t, err)
	assertWellFormed(t, mesh)

	require.Len(t, mesh.Sections, 3)
	for i, s := range mesh.Sections {
		assert.Equal(t, i, s.MaterialSlot)
	}
	for _, p := range mesh.Positions {
		assert.GreaterOrEqual(t, float32(math.Hypot(float64(p[0]), float64(p[2]))), float32(0.3)-1e-5)
		assert.True(t, p[1] == 0 || p[1] == 0.5)
	}
	assert.Greater(t, mesh.Sections[2].IndexCount, mesh.Sections[0].IndexCount, "larger value, more arc segments")
}

func TestPieChartRadiusStepAndSkippedValues(t *testing.T) {
	mesh, err := PieChart(PieChartParams{Values: []float32{1, 0, 1, 1}, RadiusStep: 0.5})
	require.NoError(t, err)
	assertWellFormed(t, mesh)

	require.Len(t, mesh.Sections, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{
		mesh.Sections[0].MaterialSlot,
		mesh.Sections[1].MaterialSlot,
		mesh.Sections[2].MaterialSlot,
	})
	assert.InDelta(t, 1, sectionRadius(mesh, mesh.Sections[0]), 1e-5)
	assert.InDelta(t, 2, sectionRadius(mesh, mesh.Sections[1]), 1e-5)
	assert.InDelta(t, 2.5, sectionRadius(mesh, mesh.Sections[2]), 1e-5)
}

func TestPieChartRejectsUnusableInput(t *testing.T) {
	tests := []struct {
		name   string
		params PieChartParams
	}{
		{"no values", PieChartParams{}},
		{"no positive value", PieChartParams{Values: []float32{0, -2}}},
		{"inner radius too large", PieChartParams{Values: []float32{1}, Radius: 1, InnerRadius: 1}},
		{"gaps swallow slices", PieChartParams{Values: []float32{1, 1, 1, 1}, GapAngle: 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PieChart(tt.params)
			assert.ErrorIs(t, err, common.ErrInvalidGeometry)
		})
	}
}

func TestLineChartSingleSegment(t *testing.T) {
	mesh, err := LineChart(LineChartParams{Series: [][]float32{{1, 3}}})
	require.NoError(t, err)
	assertWellFormed(t, mesh)
	assertOutward(t, mesh, mgl32.Vec3{0, 1, 0})

	assert.Len(t, mesh.Positions, 6*4, "four sides plus two end caps")
	require.Len(t, mesh.Sections, 1)
}

func TestLineChartSeriesLayout(t *testing.T) {
	mesh, err := LineChart(LineChartParams{
		Series:    [][]float32{{2, 4}, {1, 1, 1}},
		MaxHeight: 8,
	})
	require.NoError(t, err)
	assertWellFormed(t, mesh)

	require.Len(t, mesh.Sections, 2)
	assert.Equal(t, 0, mesh.Sections[0].MaterialSlot)
	assert.Equal(t, 1, mesh.Sections[1].MaterialSlot)

	lo, hi := mgl32.Vec3{}, mgl32.Vec3{}
	for _, p := range mesh.Positions {
		for k := range 3 {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	assert.InDelta(t, 8, hi.Y(), 1e-5)
	assert.InDelta(t, -1, lo.X(), 1e-5)
	assert.InDelta(t, 1, hi.X(), 1e-5)
	assert.InDelta(t, -0.6, lo.Z(), 1e-5)
	assert.InDelta(t, 0.6, hi.Z(), 1e-5)
}

func TestLineChartRejectsShortSeries(t *testing.T) {
	_, err := LineChart(LineChartParams{})
	assert.ErrorIs(t, err, common.ErrInvalidGeometry)

	_, err = LineChart(LineChartParams{Series: [][]float32{{1, 2}, {3}}})
	assert.ErrorIs(t, err, common.ErrInvalidGeometry)
}

func TestParseChartKind(t *testing.T) {
	for name, want := range map[string]ChartKind{"bar": ChartBar, "Pie": ChartPie, " line ": ChartLine} {
		kind, ok := ParseChartKind(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, kind, name)
		assert.Equal(t, want.String(), kind.String())
	}
	_, ok := ParseChartKind("scatter")
	assert.False(t, ok)
}
