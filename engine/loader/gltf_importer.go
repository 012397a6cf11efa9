package loader

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	baseDir string
}

// gltfImporter orchestrates a glTF/GLB import: parse, walk the scene hierarchy, and extract one
// ImportedNode per node that references a mesh.
type gltfImporter interface {
	// Import loads a glTF/GLB file.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - []ImportedNode: one node per mesh-bearing scene node, in traversal order
	//   - error: error if import fails
	Import(path string) ([]ImportedNode, error)

	// ImportReader loads a glTF document from a reader.
	//
	// Parameters:
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//
	// Returns:
	//   - []ImportedNode: one node per mesh-bearing scene node, in traversal order
	//   - error: error if import fails
	ImportReader(r io.Reader, isGLB bool) ([]ImportedNode, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Parameters:
//   - baseDir: directory used to resolve external buffers of reader imports
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(baseDir string) gltfImporter {
	return &gltfImporterImpl{baseDir: baseDir}
}

func (imp *gltfImporterImpl) Import(path string) ([]ImportedNode, error) {
	parser := newGLTFParser("")
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importFromParser(parser)
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader, isGLB bool) ([]ImportedNode, error) {
	parser := newGLTFParser(imp.baseDir)
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importFromParser(parser)
}

// gltfVisit is one pending node of the scene walk with its parent's world transform.
type gltfVisit struct {
	node   int
	parent mgl32.Mat4
}

// importFromParser walks the active scene depth-first, composing world transforms, and
// extracts each mesh-bearing node.
func (imp *gltfImporterImpl) importFromParser(parser gltfParser) ([]ImportedNode, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}

	meshes := newGLTFMeshExtractor(parser)
	materials := newGLTFMaterialExtractor(parser)
	names := newGLTFNodeNamer(doc)

	var stack []gltfVisit
	roots := gltfSceneRoots(doc)
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, gltfVisit{node: roots[i], parent: mgl32.Ident4()})
	}

	var out []ImportedNode
	visited := make(map[int]bool)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.node < 0 || v.node >= len(doc.Nodes) {
			return nil, fmt.Errorf("node index %d out of range", v.node)
		}
		if visited[v.node] {
			return nil, fmt.Errorf("node %d appears twice in the hierarchy", v.node)
		}
		visited[v.node] = true

		node := &doc.Nodes[v.node]
		world := v.parent.Mul4(gltfLocalTransform(node))

		if node.Mesh != nil {
			extracted, err := meshes.ExtractMesh(*node.Mesh)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", v.node, err)
			}
			mats, err := materials.ExtractSlots(extracted.Slots)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", v.node, err)
			}
			out = append(out, ImportedNode{
				Key:       names.key(v.node),
				Name:      common.Coalesce(node.Name, extracted.Descriptor.Name),
				Mesh:      extracted.Descriptor,
				Transform: world,
				Materials: mats,
			})
		}

		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, gltfVisit{node: node.Children[i], parent: world})
		}
	}
	return out, nil
}

// gltfSceneRoots returns the root nodes of the default scene, the first scene, or, for a
// document without scenes, every node that is nobody's child.
func gltfSceneRoots(doc *gltfDocument) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// gltfLocalTransform returns the node's matrix, or T * R * S from its components.
func gltfLocalTransform(node *gltfNode) mgl32.Mat4 {
	if node.Matrix != nil {
		return mgl32.Mat4(*node.Matrix)
	}

	m := mgl32.Ident4()
	if t := node.Translation; t != nil {
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if r := node.Rotation; r != nil {
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		if q.Len() > 0 {
			m = m.Mul4(q.Normalize().Mat4())
		}
	}
	if s := node.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

// gltfNodeNamer derives stable per-document keys: the node name when it is unique in the
// document, otherwise the name suffixed with the node index, or "node<index>" when unnamed.
type gltfNodeNamer struct {
	doc    *gltfDocument
	counts map[string]int
}

func newGLTFNodeNamer(doc *gltfDocument) *gltfNodeNamer {
	counts := make(map[string]int)
	for _, n := range doc.Nodes {
		if n.Name != "" {
			counts[n.Name]++
		}
	}
	return &gltfNodeNamer{doc: doc, counts: counts}
}

func (n *gltfNodeNamer) key(index int) string {
	name := n.doc.Nodes[index].Name
	switch {
	case name == "":
		return fmt.Sprintf("node%d", index)
	case n.counts[name] > 1:
		return fmt.Sprintf("%s#%d", name, index)
	default:
		return name
	}
}
