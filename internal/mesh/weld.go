package mesh

import "sort"

// vertInfo is one pre-weld vertex's dedup key plus its pre-weld index;
// welding sorts these and scans for runs of equal keys.
type vertInfo struct {
	position vec3
	normal   vec3
	uv       vec2
	oldID    int
}

func (a vertInfo) less(b vertInfo) bool {
	switch {
	case a.position.x != b.position.x:
		return a.position.x < b.position.x
	case a.position.y != b.position.y:
		return a.position.y < b.position.y
	case a.position.z != b.position.z:
		return a.position.z < b.position.z
	case a.normal.x != b.normal.x:
		return a.normal.x < b.normal.x
	case a.normal.y != b.normal.y:
		return a.normal.y < b.normal.y
	case a.normal.z != b.normal.z:
		return a.normal.z < b.normal.z
	case a.uv.u != b.uv.u:
		return a.uv.u < b.uv.u
	default:
		return a.uv.v < b.uv.v
	}
}

func (a vertInfo) equal(b vertInfo) bool {
	return a.position == b.position && a.normal == b.normal && a.uv == b.uv
}

// RemoveDuplicatedVerts identifies duplicate vertices (same position, and
// same normal when m.UseTangent, and same uv) and collapses them to one,
// rewriting face indices and recording PrecollapseVertReorder such that
// applying it to the pre-weld arrays yields the welded arrays.
func RemoveDuplicatedVerts(m *Mesh) {
	n := m.NumVertices()
	if n == 0 {
		return
	}

	infos := make([]vertInfo, n)
	for i := 0; i < n; i++ {
		infos[i] = vertInfo{position: vec3At(m.Vertices, i), oldID: i}
		if m.UseTangent && len(m.Normals) > 0 {
			infos[i].normal = vec3At(m.Normals, i)
		}
		if len(m.TexCoords) > 0 {
			infos[i].uv = vec2At(m.TexCoords, i)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].less(infos[j]) })

	newVert := make([]int32, n)
	var unique []int
	for i, info := range infos {
		if i == 0 || !info.equal(infos[i-1]) {
			unique = append(unique, i)
		}
		newVert[info.oldID] = int32(len(unique) - 1)
	}

	m.PrecollapseVertReorder = make([]int32, len(unique))
	for i, idx := range unique {
		m.PrecollapseVertReorder[i] = int32(infos[idx].oldID)
	}

	for i, f := range m.Faces {
		m.Faces[i] = uint32(newVert[f])
	}

	rearrangeVertices(m, m.PrecollapseVertReorder)
}

// rearrangeVertices reindexes every per-vertex array of m according to
// newOrder: the vertex at output slot i is the one previously at
// newOrder[i].
func rearrangeVertices(m *Mesh, newOrder []int32) {
	m.Vertices = reorderComponents(m.Vertices, newOrder, 3)
	m.Normals = reorderComponents(m.Normals, newOrder, 3)
	m.TexCoords = reorderComponents(m.TexCoords, newOrder, 2)
	m.TexCoords2 = reorderComponents(m.TexCoords2, newOrder, 2)
	m.Tangents = reorderComponents(m.Tangents, newOrder, 3)
	m.Bitangents = reorderComponents(m.Bitangents, newOrder, 3)
	m.Aux = reorderComponents(m.Aux, newOrder, 3)
	m.BoneWeights = reorderComponents(m.BoneWeights, newOrder, 4)
	m.BoneIDs = reorderComponents(m.BoneIDs, newOrder, 4)
}

// reorderComponents gathers comps consecutive floats per entry of newOrder;
// an empty input stays empty.
func reorderComponents(old []float32, newOrder []int32, comps int) []float32 {
	if len(old) == 0 {
		return old
	}
	out := make([]float32, len(newOrder)*comps)
	for i, oldID := range newOrder {
		copy(out[i*comps:(i+1)*comps], old[int(oldID)*comps:int(oldID)*comps+comps])
	}
	return out
}
