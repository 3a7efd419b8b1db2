package mesh

import "sort"

// SortBackToFront reorders m.Faces by descending squared distance from
// camera to each triangle's centroid, for correct translucent-mesh
// blending. Per-triangle data beyond Faces (e.g. FaceNormals) is
// reordered alongside it.
func SortBackToFront(m *Mesh, camera [3]float32) {
	numTris := m.NumFaces()
	if numTris < 2 {
		return
	}
	cam := vec3{camera[0], camera[1], camera[2]}

	type scoredTri struct {
		index  int
		distSq float32
	}
	scored := make([]scoredTri, numTris)
	for i := 0; i < numTris; i++ {
		base := i * 3
		centroid := vec3At(m.Vertices, int(m.Faces[base])).
			add(vec3At(m.Vertices, int(m.Faces[base+1]))).
			add(vec3At(m.Vertices, int(m.Faces[base+2]))).
			scale(1.0 / 3.0)
		scored[i] = scoredTri{i, centroid.sub(cam).lengthSq()}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].distSq > scored[j].distSq })

	oldFaces := m.Faces
	hasFaceNormals := len(m.FaceNormals) == numTris*3
	oldFaceNormals := m.FaceNormals

	m.Faces = make([]uint32, numTris*3)
	if hasFaceNormals {
		m.FaceNormals = make([]float32, numTris*3)
	}
	for newIdx, s := range scored {
		srcBase := s.index * 3
		dstBase := newIdx * 3
		m.Faces[dstBase], m.Faces[dstBase+1], m.Faces[dstBase+2] =
			oldFaces[srcBase], oldFaces[srcBase+1], oldFaces[srcBase+2]
		if hasFaceNormals {
			m.FaceNormals[dstBase], m.FaceNormals[dstBase+1], m.FaceNormals[dstBase+2] =
				oldFaceNormals[srcBase], oldFaceNormals[srcBase+1], oldFaceNormals[srcBase+2]
		}
	}
}
