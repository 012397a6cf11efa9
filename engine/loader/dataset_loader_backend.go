package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/dataset"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/procgen"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// chartGap separates neighbouring charts along X, in world units.
const chartGap float32 = 2

// chartPalette colors successive value columns.
var chartPalette = [][4]float32{
	{0.36, 0.55, 0.85, 1},
	{0.93, 0.49, 0.19, 1},
	{0.44, 0.68, 0.28, 1},
	{0.80, 0.25, 0.33, 1},
	{0.55, 0.40, 0.72, 1},
	{0.95, 0.77, 0.20, 1},
}

// chartTemplates holds the chart kind and the per-kind parameter templates.
type chartTemplates struct {
	kind procgen.ChartKind
	grid procgen.BoxGridParams
	pie  procgen.PieChartParams
	line procgen.LineChartParams
}

// datasetLoaderBackendImpl turns tabular data into charts: a box grid or a pie per value column, or
// one line chart holding every column.
type datasetLoaderBackendImpl struct {
	csv     dataset.Reader
	json    dataset.Reader
	columns []string
	charts  chartTemplates
}

var _ loaderBackend = &datasetLoaderBackendImpl{}

// newDatasetLoaderBackend creates the chart data backend.
//
// Parameters:
//   - csv: the reader for delimiter-separated sources
//   - json: the reader for JSON sources
//   - columns: the value columns to chart, empty for every numeric column
//   - charts: the chart kind and templates; values are filled in per column
//
// Returns:
//   - loaderBackend: the dataset backend
func newDatasetLoaderBackend(csv, json dataset.Reader, columns []string, charts chartTemplates) loaderBackend {
	return &datasetLoaderBackendImpl{csv: csv, json: json, columns: columns, charts: charts}
}

func (b *datasetLoaderBackendImpl) Load(path string) ([]ImportedNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return b.LoadReader(f, FormatFromPath(path))
}

func (b *datasetLoaderBackendImpl) LoadReader(r io.Reader, format Format) ([]ImportedNode, error) {
	var reader dataset.Reader
	switch format {
	case FormatCSV:
		reader = b.csv
	case FormatJSON:
		reader = b.json
	default:
		return nil, fmt.Errorf("dataset backend cannot read %s", format)
	}

	table, err := reader.Read(r)
	if err != nil {
		return nil, err
	}
	return b.build(table)
}

// build builds the configured chart kind from the selected columns.
func (b *datasetLoaderBackendImpl) build(table *dataset.Table) ([]ImportedNode, error) {
	columns := b.columns
	if len(columns) == 0 {
		columns = table.NumericColumns()
	}
	if len(columns) == 0 {
		return nil, errors.New("dataset has no numeric columns")
	}
	if len(table.Rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}

	values := make([][]float32, len(columns))
	for i, col := range columns {
		v, err := table.Floats(col)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	switch b.charts.kind {
	case procgen.ChartPie:
		return b.pies(columns, values)
	case procgen.ChartLine:
		return b.lines(columns, values)
	default:
		return b.bars(columns, values)
	}
}

// bars lays out one box grid per value column side by side along X.
func (b *datasetLoaderBackendImpl) bars(columns []string, values [][]float32) ([]ImportedNode, error) {
	var out []ImportedNode
	var offset float32
	for i, col := range columns {
		params := b.charts.grid
		params.Heights = values[i]
		if params.Cols > 0 {
			params.Rows = (len(values[i]) + params.Cols - 1) / params.Cols
		} else {
			params.Rows, params.Cols = procgen.GridFor(len(values[i]))
		}
		params.Slots = 1

		mesh, err := procgen.BoxGrid(params)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		mesh.Name = col

		extent := float32(params.Cols)*(common.Coalesce(params.Width, 1)+params.Spacing) - params.Spacing
		out = append(out, ImportedNode{
			Key:       col,
			Name:      col,
			Mesh:      mesh,
			Transform: mgl32.Translate3D(offset+extent/2, 0, 0),
			Materials: []model.MaterialDescriptor{chartMaterial(col, i)},
		})
		offset += extent + chartGap

		logger.L().Debug("loader: bar chart column",
			zap.String("column", col),
			zap.Int("values", len(values[i])),
			zap.Int("rows", params.Rows),
			zap.Int("cols", params.Cols))
	}
	return out, nil
}

// pies lays out one pie per value column side by side along X. Every slice gets its own material.
func (b *datasetLoaderBackendImpl) pies(columns []string, values [][]float32) ([]ImportedNode, error) {
	var out []ImportedNode
	var offset float32
	for i, col := range columns {
		params := b.charts.pie
		params.Values = values[i]
		params.Slots = len(values[i])

		mesh, err := procgen.PieChart(params)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		mesh.Name = col

		materials := make([]model.MaterialDescriptor, len(values[i]))
		for j := range materials {
			materials[j] = chartMaterial(fmt.Sprintf("%s[%d]", col, j), j)
		}

		radius := common.Coalesce(params.Radius, 1) + float32(max(len(values[i])-1, 0))*max(params.RadiusStep, 0)
		out = append(out, ImportedNode{
			Key:       col,
			Name:      col,
			Mesh:      mesh,
			Transform: mgl32.Translate3D(offset+radius, 0, 0),
			Materials: materials,
		})
		offset += 2*radius + chartGap

		logger.L().Debug("loader: pie chart column",
			zap.String("column", col),
			zap.Int("slices", len(values[i])))
	}
	return out, nil
}

// lines builds a single line chart node with one series per value column.
func (b *datasetLoaderBackendImpl) lines(columns []string, values [][]float32) ([]ImportedNode, error) {
	params := b.charts.line
	params.Series = values
	params.Slots = len(columns)

	mesh, err := procgen.LineChart(params)
	if err != nil {
		return nil, fmt.Errorf("line chart: %w", err)
	}
	mesh.Name = "line"

	materials := make([]model.MaterialDescriptor, len(columns))
	for i, col := range columns {
		materials[i] = chartMaterial(col, i)
	}

	logger.L().Debug("loader: line chart",
		zap.Strings("columns", columns),
		zap.Int("values", len(values[0])))
	return []ImportedNode{{
		Key:       "line",
		Name:      "line",
		Mesh:      mesh,
		Transform: mgl32.Ident4(),
		Materials: materials,
	}}, nil
}

func chartMaterial(name string, i int) model.MaterialDescriptor {
	return model.MaterialDescriptor{
		Name:      name,
		BaseColor: chartPalette[i%len(chartPalette)],
		Roughness: 0.6,
	}
}
