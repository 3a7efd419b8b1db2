// Package mesh implements the runtime mesh-cache/optimization core:
// OBJ-subset parsing, vertex welding, degenerate-triangle removal,
// Forsyth vertex-cache-aware triangle reordering, vertex-order
// optimization, and a versioned, checksummed binary cache.
package mesh

// CacheVersion is embedded in every cache file; a mismatch is treated as
// staleness, not an error.
const CacheVersion uint16 = 1

// VertexCacheSize is the simulated GPU post-transform vertex cache used by
// both the Forsyth optimizer and the ACMR diagnostic.
const VertexCacheSize = 32

// Mesh is an in-memory triangle mesh and every derived field the loader
// computes.
type Mesh struct {
	// Vertices, Normals, Tangents, Bitangents are flattened xyz triples,
	// one triple per vertex.
	Vertices   []float32
	Normals    []float32
	Tangents   []float32
	Bitangents []float32

	// TexCoords, TexCoords2 are flattened uv pairs, one pair per vertex.
	// TexCoords2 is populated only when a "<name>_UV2" sibling was merged.
	TexCoords  []float32
	TexCoords2 []float32

	// Aux carries three auxiliary floats per vertex; BoneWeights and
	// BoneIDs carry four per vertex. All three are empty for sources that
	// supply no rig data and ride along through welding and reordering.
	Aux         []float32
	BoneWeights []float32
	BoneIDs     []float32

	// Faces holds vertex indices, three per triangle.
	Faces []uint32
	// FaceNormals holds one flattened xyz triple per triangle.
	FaceNormals []float32

	// UseTangent mirrors the load flag: when false, vertex welding ignores
	// normal data when deduplicating.
	UseTangent bool

	MinCoords    [3]float32
	MaxCoords    [3]float32
	CenterCoords [3]float32
	OldCenter    [3]float32

	BoundingSphereOrigin [3]float32
	BoundingSphereRadius float32

	TexelDensity              float32
	AverageTriangleEdgeLength float32

	// Checksum is the 16-bit checksum of the parsed source file, stored in
	// and verified against the cache.
	Checksum uint16

	// Path is the sanitized (slash-normalized) source path this mesh was
	// parsed from.
	Path string

	// PrecollapseNumVertices is the vertex count before welding collapsed
	// duplicates, captured by the loader immediately before
	// RemoveDuplicatedVerts runs. PrecollapseVertReorder indexes into an
	// array of this length.
	PrecollapseNumVertices int

	// PrecollapseVertReorder is the permutation produced by vertex welding:
	// PrecollapseVertReorder[i] is the pre-weld index that became welded
	// index i.
	PrecollapseVertReorder []int32
	// OptimizeVertReorder is the permutation produced by vertex-order
	// optimization, applied on top of PrecollapseVertReorder.
	OptimizeVertReorder []int32
}

// NumVertices returns the current vertex count.
func (m *Mesh) NumVertices() int {
	return len(m.Vertices) / 3
}

// NumFaces returns the current triangle count.
func (m *Mesh) NumFaces() int {
	return len(m.Faces) / 3
}
