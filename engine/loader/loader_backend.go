package loader

import (
	"io"
	"path/filepath"
	"strings"
)

// Format identifies a source file format and the backend that reads it.
type Format int

const (
	// FormatUnknown is any unsupported format.
	FormatUnknown Format = iota
	// FormatGLTF is glTF 2.0 JSON (.gltf).
	FormatGLTF
	// FormatGLB is binary glTF 2.0 (.glb).
	FormatGLB
	// FormatCSV is delimiter-separated chart data (.csv, .tsv).
	FormatCSV
	// FormatJSON is JSON chart data (.json).
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatGLTF:
		return "gltf"
	case FormatGLB:
		return "glb"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// FormatFromPath selects the format by file extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the matching format, or FormatUnknown
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf":
		return FormatGLTF
	case ".glb":
		return FormatGLB
	case ".csv", ".tsv", ".txt":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// loaderBackend reads one family of formats into imported nodes. Node keys must be stable
// across re-imports of the same source so the loader can diff them.
type loaderBackend interface {
	// Load imports the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - []ImportedNode: the imported nodes
	//   - error: error if loading fails
	Load(path string) ([]ImportedNode, error)

	// LoadReader imports from a stream.
	//
	// Parameters:
	//   - r: the reader providing the data
	//   - format: the format of the data
	//
	// Returns:
	//   - []ImportedNode: the imported nodes
	//   - error: error if loading fails
	LoadReader(r io.Reader, format Format) ([]ImportedNode, error)
}
