package procgen

import "strings"

// ChartKind selects the geometry a data series is turned into.
type ChartKind int

const (
	// ChartBar is a grid of boxes, one per value.
	ChartBar ChartKind = iota
	// ChartPie is an extruded pie with one slice per value.
	ChartPie
	// ChartLine is a ribbon per series following its values.
	ChartLine
)

func (k ChartKind) String() string {
	switch k {
	case ChartBar:
		return "bar"
	case ChartPie:
		return "pie"
	case ChartLine:
		return "line"
	default:
		return "unknown"
	}
}

// ParseChartKind maps a chart name to its kind.
//
// Parameters:
//   - name: "bar", "pie" or "line", case-insensitive
//
// Returns:
//   - ChartKind: the chart kind
//   - bool: false if the name is not recognised
func ParseChartKind(name string) (ChartKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bar", "box", "":
		return ChartBar, true
	case "pie":
		return ChartPie, true
	case "line":
		return ChartLine, true
	default:
		return ChartBar, false
	}
}
