package loader

import (
	"github.com/Carmen-Shannon/oxy-xrvis/engine/dataset"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/procgen"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithIDPrefix prepends a namespace to every node ID the Loader produces.
//
// Parameters:
//   - prefix: the namespace, e.g. "assets"
//
// Returns:
//   - LoaderBuilderOption: a function that applies the prefix option to a loader
func WithIDPrefix(prefix string) LoaderBuilderOption {
	return func(l *loader) {
		l.prefix = prefix
	}
}

// WithBaseDir sets the directory that external glTF buffers resolve against for LoadReader imports.
//
// Parameters:
//   - dir: the base directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the base directory option to a loader
func WithBaseDir(dir string) LoaderBuilderOption {
	return func(l *loader) {
		l.baseDir = dir
	}
}

// WithCSVOptions configures the CSV reader used for chart data.
//
// Parameters:
//   - options: the CSV reader options
//
// Returns:
//   - LoaderBuilderOption: a function that applies the CSV options to a loader
func WithCSVOptions(options ...dataset.CSVReaderBuilderOption) LoaderBuilderOption {
	return func(l *loader) {
		l.csvOptions = append(l.csvOptions, options...)
	}
}

// WithJSONOptions configures the JSON reader used for chart data.
//
// Parameters:
//   - options: the JSON reader options
//
// Returns:
//   - LoaderBuilderOption: a function that applies the JSON options to a loader
func WithJSONOptions(options ...dataset.JSONReaderBuilderOption) LoaderBuilderOption {
	return func(l *loader) {
		l.jsonOptions = append(l.jsonOptions, options...)
	}
}

// WithValueColumns restricts chart generation to the named columns. By default every numeric column is charted.
//
// Parameters:
//   - columns: the value column names
//
// Returns:
//   - LoaderBuilderOption: a function that applies the column selection to a loader
func WithValueColumns(columns ...string) LoaderBuilderOption {
	return func(l *loader) {
		l.columns = columns
	}
}

// WithBoxGrid sets the box grid template for chart data. Rows and Heights are derived from
// each column; a positive Cols fixes the grid width.
//
// Parameters:
//   - params: the template parameters
//
// Returns:
//   - LoaderBuilderOption: a function that applies the grid template to a loader
func WithBoxGrid(params procgen.BoxGridParams) LoaderBuilderOption {
	return func(l *loader) {
		l.charts.grid = params
	}
}

// WithChart selects the chart generated from tabular data. The default is procgen.ChartBar.
//
// Parameters:
//   - kind: the chart kind
//
// Returns:
//   - LoaderBuilderOption: a function that applies the chart kind to a loader
func WithChart(kind procgen.ChartKind) LoaderBuilderOption {
	return func(l *loader) {
		l.charts.kind = kind
	}
}

// WithPieChart selects pie charts, one per value column, and sets their template. Values and
// Slots are derived from each column.
//
// Parameters:
//   - params: the template parameters
//
// Returns:
//   - LoaderBuilderOption: a function that applies the pie template to a loader
func WithPieChart(params procgen.PieChartParams) LoaderBuilderOption {
	return func(l *loader) {
		l.charts.kind = procgen.ChartPie
		l.charts.pie = params
	}
}

// WithLineChart selects a single line chart with one series per value column and sets its
// template. Series and Slots are derived from the columns.
//
// Parameters:
//   - params: the template parameters
//
// Returns:
//   - LoaderBuilderOption: a function that applies the line template to a loader
func WithLineChart(params procgen.LineChartParams) LoaderBuilderOption {
	return func(l *loader) {
		l.charts.kind = procgen.ChartLine
		l.charts.line = params
	}
}
