package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser
}

// gltfMaterialExtractor converts glTF materials into material descriptors. Only the
// metallic-roughness factors are read; textures are not part of the lightmapped surface model.
type gltfMaterialExtractor interface {
	// ExtractMaterial extracts a single material by index. Index -1 yields the default material.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document, or -1
	//
	// Returns:
	//   - model.MaterialDescriptor: the extracted material
	//   - error: error if the index is out of range
	ExtractMaterial(materialIndex int) (model.MaterialDescriptor, error)

	// ExtractSlots resolves a slot mapping produced by the mesh extractor.
	//
	// Parameters:
	//   - slots: document material indices, -1 for the default material
	//
	// Returns:
	//   - []model.MaterialDescriptor: one descriptor per slot
	//   - error: error if any index is out of range
	ExtractSlots(slots []int) ([]model.MaterialDescriptor, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (model.MaterialDescriptor, error) {
	if materialIndex < 0 {
		return model.DefaultMaterial(), nil
	}
	doc := e.parser.Document()
	if doc == nil {
		return model.MaterialDescriptor{}, fmt.Errorf("no document loaded")
	}
	if materialIndex >= len(doc.Materials) {
		return model.MaterialDescriptor{}, fmt.Errorf("material index %d out of range", materialIndex)
	}

	mat := &doc.Materials[materialIndex]

	// glTF defaults for an absent pbrMetallicRoughness block.
	result := model.MaterialDescriptor{
		Name:      common.Coalesce(mat.Name, fmt.Sprintf("material_%d", materialIndex)),
		BaseColor: [4]float32{1, 1, 1, 1},
		Metallic:  1,
		Roughness: 1,
	}

	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metallic = common.Clamp(*pbr.MetallicFactor, 0, 1)
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = common.Clamp(*pbr.RoughnessFactor, 0, 1)
		}
	}
	return result, nil
}

func (e *gltfMaterialExtractorImpl) ExtractSlots(slots []int) ([]model.MaterialDescriptor, error) {
	out := make([]model.MaterialDescriptor, len(slots))
	for i, idx := range slots {
		mat, err := e.ExtractMaterial(idx)
		if err != nil {
			return nil, err
		}
		out[i] = mat
	}
	return out, nil
}
