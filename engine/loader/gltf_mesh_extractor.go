package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"go.uber.org/zap"
)

// gltfLightmapUVSets lists UV attributes in lightmap preference order. A dedicated second
// set is the usual convention for lightmap coordinates.
var gltfLightmapUVSets = []string{"TEXCOORD_1", "TEXCOORD_0"}

// gltfExtractedMesh is one glTF mesh merged into a single descriptor. Slots maps each
// material slot of the descriptor's sections to a document material index, or -1 for the default material.
type gltfExtractedMesh struct {
	Descriptor *model.MeshDescriptor
	Slots      []int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
	cache  map[int]*gltfExtractedMesh
}

// gltfMeshExtractor converts glTF meshes into mesh descriptors, one per mesh with one section
// per triangle primitive.
type gltfMeshExtractor interface {
	// ExtractMesh extracts a mesh by index. Repeated calls for the same index return the same
	// descriptor, so nodes instancing one mesh share it.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh to extract
	//
	// Returns:
	//   - *gltfExtractedMesh: the merged descriptor and its slot mapping
	//   - error: error if the mesh is missing or its data is malformed
	ExtractMesh(meshIndex int) (*gltfExtractedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser, cache: make(map[int]*gltfExtractedMesh)}
}

// gltfPrimitiveData is the decoded vertex data of one primitive before merging.
type gltfPrimitiveData struct {
	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32
	indices   []uint32
	material  int
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) (*gltfExtractedMesh, error) {
	if cached, ok := e.cache[meshIndex]; ok {
		return cached, nil
	}

	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := &doc.Meshes[meshIndex]

	uvSet := e.lightmapUVSet(mesh)
	var prims []gltfPrimitiveData
	for primIdx := range mesh.Primitives {
		prim := &mesh.Primitives[primIdx]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			logger.L().Warn("loader: skipping non-triangle primitive",
				zap.Int("mesh", meshIndex),
				zap.Int("primitive", primIdx),
				zap.Int("mode", *prim.Mode))
			continue
		}
		data, err := e.extractPrimitive(prim, uvSet)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIdx, err)
		}
		prims = append(prims, *data)
	}
	if len(prims) == 0 {
		return nil, fmt.Errorf("mesh %d has no triangle primitives: %w", meshIndex, common.ErrInvalidGeometry)
	}

	extracted := mergePrimitives(prims)
	extracted.Descriptor.Name = common.Coalesce(mesh.Name, fmt.Sprintf("mesh_%d", meshIndex))
	if uvSet == "" {
		logger.L().Debug("loader: mesh has no complete UV set, it will render unlit",
			zap.String("mesh", extracted.Descriptor.Name))
	}

	e.cache[meshIndex] = extracted
	return extracted, nil
}

// lightmapUVSet picks the first preferred UV attribute present on every triangle primitive,
// or "" when none is.
func (e *gltfMeshExtractorImpl) lightmapUVSet(mesh *gltfMesh) string {
	for _, set := range gltfLightmapUVSets {
		complete := true
		for i := range mesh.Primitives {
			prim := &mesh.Primitives[i]
			if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
				continue
			}
			if _, ok := prim.Attributes[set]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return set
		}
	}
	return ""
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, uvSet string) (*gltfPrimitiveData, error) {
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute: %w", common.ErrInvalidGeometry)
	}

	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	data := &gltfPrimitiveData{positions: positions, material: -1}
	if prim.Material != nil {
		data.material = *prim.Material
	}

	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3Accessor(normalAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		if len(normals) == len(positions) {
			data.normals = normals
		}
	}

	if uvSet != "" {
		uvs, err := e.parser.ReadVec2Accessor(prim.Attributes[uvSet])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", uvSet, err)
		}
		if len(uvs) == len(positions) {
			data.uvs = uvs
		}
	}

	if prim.Indices != nil {
		data.indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range data.indices {
			if int(idx) >= len(positions) {
				return nil, fmt.Errorf("index %d out of range for %d vertices: %w", idx, len(positions), common.ErrInvalidGeometry)
			}
		}
	} else {
		data.indices = make([]uint32, len(positions))
		for i := range data.indices {
			data.indices[i] = uint32(i)
		}
	}
	return data, nil
}

// mergePrimitives concatenates primitives into one descriptor with a section per primitive.
// An optional stream survives only if every primitive supplied it. Primitives sharing a
// material share a slot.
func mergePrimitives(prims []gltfPrimitiveData) *gltfExtractedMesh {
	keepNormals, keepUVs := true, true
	for _, p := range prims {
		keepNormals = keepNormals && p.normals != nil
		keepUVs = keepUVs && p.uvs != nil
	}

	desc := &model.MeshDescriptor{}
	out := &gltfExtractedMesh{Descriptor: desc}
	slotOf := make(map[int]int)

	for _, p := range prims {
		base := uint32(len(desc.Positions))
		first := uint32(len(desc.Indices))

		desc.Positions = append(desc.Positions, p.positions...)
		if keepNormals {
			desc.Normals = append(desc.Normals, p.normals...)
		}
		if keepUVs {
			desc.UVs = append(desc.UVs, p.uvs...)
		}
		for _, idx := range p.indices {
			desc.Indices = append(desc.Indices, idx+base)
		}

		slot, ok := slotOf[p.material]
		if !ok {
			slot = len(out.Slots)
			slotOf[p.material] = slot
			out.Slots = append(out.Slots, p.material)
		}
		desc.Sections = append(desc.Sections, model.MeshSection{
			FirstIndex:   first,
			IndexCount:   uint32(len(p.indices)),
			MaterialSlot: slot,
		})
	}
	return out
}
