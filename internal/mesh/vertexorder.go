package mesh

// OptimizeVertexOrder walks the (already triangle-order-optimized) face
// stream and assigns each vertex the next free new-index the first time it
// is referenced, rewriting faces through the map and recording
// OptimizeVertReorder so that applying it to the pre-pass arrays yields
// the post-pass arrays.
func OptimizeVertexOrder(m *Mesh) {
	numVerts := m.NumVertices()
	order := make([]int32, numVerts)
	for i := range order {
		order[i] = -1
	}

	index := int32(0)
	for i, f := range m.Faces {
		if order[f] == -1 {
			order[f] = index
			index++
		}
		m.Faces[i] = uint32(order[f])
	}

	m.OptimizeVertReorder = make([]int32, index)
	for i := range m.OptimizeVertReorder {
		m.OptimizeVertReorder[i] = -1
	}
	for oldID, newID := range order {
		if newID >= 0 && int(newID) < len(m.OptimizeVertReorder) {
			m.OptimizeVertReorder[newID] = int32(oldID)
		}
	}

	rearrangeVertices(m, m.OptimizeVertReorder)
}
