// Package loader is the import adapter in front of the scene controller. It reads glTF/GLB assets
// and CSV/JSON chart data, and turns each (re-)import of a source into the scene events that
// bring the scene in line with it.
package loader

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/dataset"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ImportedNode is one renderable node produced by a backend, before it becomes a scene event.
type ImportedNode struct {
	// Key identifies the node within its source and must be stable across re-imports.
	Key       string
	Name      string
	Mesh      *model.MeshDescriptor
	Transform mgl32.Mat4
	Materials []model.MaterialDescriptor
}

// importedState is what the loader remembers about a node from the last import of its source.
type importedState struct {
	content   uint64
	transform mgl32.Mat4
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.Mutex

	prefix  string
	baseDir string

	csvOptions  []dataset.CSVReaderBuilderOption
	jsonOptions []dataset.JSONReaderBuilderOption
	columns     []string
	charts      chartTemplates

	backends map[Format]loaderBackend
	sources  map[string]map[model.NodeID]importedState
}

// Loader imports sources and reports scene changes as events. Each source (a file path or a
// caller-chosen name) is tracked: importing it again yields only the differences since the
// previous import.
type Loader interface {
	// Load imports a file, selecting the backend by extension (.gltf, .glb, .csv, .tsv, .json).
	//
	// Parameters:
	//   - path: the file path, also used as the source name
	//
	// Returns:
	//   - []model.Event: NodeAdded for new nodes, NodeUpdated or NodeAdded for changed nodes,
	//     NodeRemoved for nodes that disappeared; unchanged nodes produce nothing
	//   - error: error if the format is unsupported or the import fails, in which case the
	//     source's tracked state is unchanged
	Load(path string) ([]model.Event, error)

	// LoadReader imports a stream under a source name.
	//
	// Parameters:
	//   - source: the name identifying this source across re-imports
	//   - r: the reader providing the data
	//   - format: the data format
	//
	// Returns:
	//   - []model.Event: the changes since the previous import of source
	//   - error: error if the import fails
	LoadReader(source string, r io.Reader, format Format) ([]model.Event, error)

	// Unload forgets a source and returns NodeRemoved for each of its nodes.
	//
	// Parameters:
	//   - source: the source name
	//
	// Returns:
	//   - []model.Event: removal events, empty if the source is unknown
	Unload(source string) []model.Event

	// Nodes lists the node IDs a source currently contributes, sorted.
	//
	// Parameters:
	//   - source: the source name
	//
	// Returns:
	//   - []model.NodeID: the node IDs
	Nodes(source string) []model.NodeID

	// Sources lists every tracked source name, sorted.
	//
	// Returns:
	//   - []string: the source names
	Sources() []string
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with every backend registered.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		sources: make(map[string]map[model.NodeID]importedState),
	}
	for _, option := range options {
		option(l)
	}

	gltf := newGLTFLoaderBackend(l.baseDir)
	data := newDatasetLoaderBackend(
		dataset.NewCSVReader(l.csvOptions...),
		dataset.NewJSONReader(l.jsonOptions...),
		l.columns,
		l.charts,
	)
	l.backends = map[Format]loaderBackend{
		FormatGLTF: gltf,
		FormatGLB:  gltf,
		FormatCSV:  data,
		FormatJSON: data,
	}
	return l
}

func (l *loader) Load(p string) ([]model.Event, error) {
	format := FormatFromPath(p)
	backend, ok := l.backends[format]
	if !ok {
		return nil, fmt.Errorf("loader: unsupported format: %s", filepath.Ext(p))
	}

	nodes, err := backend.Load(p)
	if err != nil {
		return nil, fmt.Errorf("loader: failed to load %s: %w", p, err)
	}
	return l.reconcile(filepath.ToSlash(filepath.Clean(p)), nodes)
}

func (l *loader) LoadReader(source string, r io.Reader, format Format) ([]model.Event, error) {
	backend, ok := l.backends[format]
	if !ok {
		return nil, fmt.Errorf("loader: unsupported format: %s", format)
	}

	nodes, err := backend.LoadReader(r, format)
	if err != nil {
		return nil, fmt.Errorf("loader: failed to load %q: %w", source, err)
	}
	return l.reconcile(source, nodes)
}

func (l *loader) Unload(source string) []model.Event {
	l.mu.Lock()
	prev := l.sources[source]
	delete(l.sources, source)
	l.mu.Unlock()

	ids := sortedIDs(prev)
	events := make([]model.Event, len(ids))
	for i, id := range ids {
		events[i] = model.NodeRemoved(id)
	}
	return events
}

func (l *loader) Nodes(source string) []model.NodeID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedIDs(l.sources[source])
}

func (l *loader) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.sources))
	for s := range l.sources {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// reconcile diffs an import against the previous one for the same source and records the new state.
// A node whose transform moved is re-added, since updates keep the previous transform.
func (l *loader) reconcile(source string, nodes []ImportedNode) ([]model.Event, error) {
	next := make(map[model.NodeID]importedState, len(nodes))
	var events []model.Event

	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.sources[source]

	for _, n := range nodes {
		id := l.nodeID(source, n.Key)
		if _, dup := next[id]; dup {
			return nil, fmt.Errorf("loader: %q: duplicate node key %q", source, n.Key)
		}
		state := importedState{content: fingerprint(n), transform: n.Transform}
		next[id] = state

		old, existed := prev[id]
		switch {
		case !existed || old.transform != state.transform:
			ev := model.NodeAdded(id, n.Mesh, n.Transform, n.Materials...)
			ev.Name = n.Name
			events = append(events, ev)
		case old.content != state.content:
			ev := model.NodeUpdated(id, n.Mesh)
			ev.Materials = n.Materials
			events = append(events, ev)
		}
	}

	for _, id := range sortedIDs(prev) {
		if _, ok := next[id]; !ok {
			events = append(events, model.NodeRemoved(id))
		}
	}

	l.sources[source] = next
	logger.L().Info("loader: imported",
		zap.String("source", source),
		zap.Int("nodes", len(nodes)),
		zap.Int("events", len(events)))
	return events, nil
}

// nodeID joins the optional prefix, the source and the node key.
func (l *loader) nodeID(source, key string) model.NodeID {
	if l.prefix == "" {
		return model.NodeID(source + "/" + key)
	}
	return model.NodeID(path.Join(l.prefix, source) + "/" + key)
}

func sortedIDs(m map[model.NodeID]importedState) []model.NodeID {
	out := make([]model.NodeID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// fingerprint hashes a node's mesh and materials so re-imports can skip unchanged nodes.
func fingerprint(n ImportedNode) uint64 {
	h := fnv.New64a()
	if m := n.Mesh; m != nil {
		writeLE(h, uint64(len(m.Positions)), m.Positions)
		writeLE(h, uint64(len(m.Normals)), m.Normals)
		writeLE(h, uint64(len(m.UVs)), m.UVs)
		writeLE(h, uint64(len(m.Indices)), m.Indices)
		for _, s := range m.Sections {
			writeLE(h, s.FirstIndex, s.IndexCount, int64(s.MaterialSlot))
		}
	}
	for _, mat := range n.Materials {
		h.Write([]byte(mat.Name))
		writeLE(h, mat.BaseColor, mat.Metallic, mat.Roughness)
	}
	return h.Sum64()
}

func writeLE(h hash.Hash64, values ...any) {
	for _, v := range values {
		// Writes to a hash never fail and every value here has a fixed size.
		_ = binary.Write(h, binary.LittleEndian, v)
	}
}
