package loader

import (
	"io"
)

// gltfLoaderBackendImpl is the loaderBackend for glTF and GLB sources.
type gltfLoaderBackendImpl struct {
	importer gltfImporter
}

var _ loaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - baseDir: directory used to resolve external buffers of reader imports
//
// Returns:
//   - loaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(baseDir string) loaderBackend {
	return &gltfLoaderBackendImpl{
		importer: newGLTFImporter(baseDir),
	}
}

func (b *gltfLoaderBackendImpl) Load(path string) ([]ImportedNode, error) {
	return b.importer.Import(path)
}

func (b *gltfLoaderBackendImpl) LoadReader(r io.Reader, format Format) ([]ImportedNode, error) {
	return b.importer.ImportReader(r, format == FormatGLB)
}
