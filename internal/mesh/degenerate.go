package mesh

// RemoveDegenerateTriangles drops every triangle with two equal indices via
// an in-place two-cursor compaction, trimming FaceNormals to match, and
// preserving the relative order of the surviving triangles.
func RemoveDegenerateTriangles(m *Mesh) int {
	numTris := m.NumFaces()
	hasFaceNormals := len(m.FaceNormals) == numTris*3

	removed := 0
	writeFace := 0
	writeNormal := 0
	for readTri := 0; readTri < numTris; readTri++ {
		base := readTri * 3
		a, b, c := m.Faces[base], m.Faces[base+1], m.Faces[base+2]
		if a == b || b == c || a == c {
			removed++
			continue
		}
		wb := writeFace * 3
		m.Faces[wb], m.Faces[wb+1], m.Faces[wb+2] = a, b, c
		writeFace++
		if hasFaceNormals {
			rb := readTri * 3
			wnb := writeNormal * 3
			m.FaceNormals[wnb], m.FaceNormals[wnb+1], m.FaceNormals[wnb+2] =
				m.FaceNormals[rb], m.FaceNormals[rb+1], m.FaceNormals[rb+2]
			writeNormal++
		}
	}
	m.Faces = m.Faces[:writeFace*3]
	if hasFaceNormals {
		m.FaceNormals = m.FaceNormals[:writeNormal*3]
	}
	return removed
}
