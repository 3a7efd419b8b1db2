package mesh

import "math"

// ComputeFaceNormals (re)computes one normal per triangle from its
// vertex positions.
func ComputeFaceNormals(m *Mesh) {
	numTris := m.NumFaces()
	m.FaceNormals = make([]float32, numTris*3)
	for i := 0; i < numTris; i++ {
		base := i * 3
		a := vec3At(m.Vertices, int(m.Faces[base]))
		b := vec3At(m.Vertices, int(m.Faces[base+1]))
		c := vec3At(m.Vertices, int(m.Faces[base+2]))
		n := b.sub(a).cross(c.sub(a)).normalized()
		setVec3At(m.FaceNormals, i, n)
	}
}

// ComputeVertexNormals fills m.Normals. When hadSourceNormals is false it
// sums each vertex's incident face normals and renormalizes; otherwise it
// renormalizes the normals already present.
func ComputeVertexNormals(m *Mesh, hadSourceNormals bool) {
	numVerts := m.NumVertices()
	if !hadSourceNormals || len(m.Normals) != numVerts*3 {
		m.Normals = make([]float32, numVerts*3)
		numTris := m.NumFaces()
		for i := 0; i < numTris; i++ {
			base := i * 3
			fn := vec3At(m.FaceNormals, i)
			for _, idx := range m.Faces[base : base+3] {
				accum := vec3At(m.Normals, int(idx)).add(fn)
				setVec3At(m.Normals, int(idx), accum)
			}
		}
	}
	for i := 0; i < numVerts; i++ {
		setVec3At(m.Normals, i, vec3At(m.Normals, i).normalized())
	}
}

// ComputeTangentBitangents derives per-vertex tangent/bitangent basis
// vectors by the standard texture-gradient method, Gram-Schmidt
// orthonormalized against each vertex's normal.
func ComputeTangentBitangents(m *Mesh) {
	numVerts := m.NumVertices()
	if len(m.TexCoords) != numVerts*2 {
		m.Tangents = make([]float32, numVerts*3)
		m.Bitangents = make([]float32, numVerts*3)
		return
	}

	tan := make([]vec3, numVerts)
	bitan := make([]vec3, numVerts)

	numTris := m.NumFaces()
	for i := 0; i < numTris; i++ {
		base := i * 3
		i0, i1, i2 := m.Faces[base], m.Faces[base+1], m.Faces[base+2]
		p0, p1, p2 := vec3At(m.Vertices, int(i0)), vec3At(m.Vertices, int(i1)), vec3At(m.Vertices, int(i2))
		uv0, uv1, uv2 := vec2At(m.TexCoords, int(i0)), vec2At(m.TexCoords, int(i1)), vec2At(m.TexCoords, int(i2))

		edge1, edge2 := p1.sub(p0), p2.sub(p0)
		du1, dv1 := uv1.u-uv0.u, uv1.v-uv0.v
		du2, dv2 := uv2.u-uv0.u, uv2.v-uv0.v

		det := du1*dv2 - du2*dv1
		if det == 0 {
			continue
		}
		r := 1.0 / det
		tangent := edge1.scale(dv2 * r).sub(edge2.scale(dv1 * r))
		bitangent := edge2.scale(du1 * r).sub(edge1.scale(du2 * r))

		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].add(tangent)
			bitan[idx] = bitan[idx].add(bitangent)
		}
	}

	m.Tangents = make([]float32, numVerts*3)
	m.Bitangents = make([]float32, numVerts*3)
	for i := 0; i < numVerts; i++ {
		n := vec3At(m.Normals, i)
		t := tan[i].sub(n.scale(n.dot(tan[i]))).normalized()
		b := bitan[i].sub(n.scale(n.dot(bitan[i]))).sub(t.scale(t.dot(bitan[i]))).normalized()
		setVec3At(m.Tangents, i, t)
		setVec3At(m.Bitangents, i, b)
	}
}

// ComputeBounds fills MinCoords/MaxCoords/CenterCoords/BoundingSphere*,
// optionally recentering vertices around the bounding-box center when
// center is true.
func ComputeBounds(m *Mesh, center bool) {
	numVerts := m.NumVertices()
	if numVerts == 0 {
		return
	}

	minC := vec3At(m.Vertices, 0)
	maxC := minC
	for i := 1; i < numVerts; i++ {
		v := vec3At(m.Vertices, i)
		minC = vec3{min32(minC.x, v.x), min32(minC.y, v.y), min32(minC.z, v.z)}
		maxC = vec3{max32(maxC.x, v.x), max32(maxC.y, v.y), max32(maxC.z, v.z)}
	}
	center3 := minC.add(maxC).scale(0.5)

	m.MinCoords, m.MaxCoords, m.OldCenter = [3]float32(minC.arr()), [3]float32(maxC.arr()), [3]float32(center3.arr())
	m.CenterCoords = m.OldCenter

	if center {
		for i := 0; i < numVerts; i++ {
			setVec3At(m.Vertices, i, vec3At(m.Vertices, i).sub(center3))
		}
		m.MinCoords = minC.sub(center3).arr()
		m.MaxCoords = maxC.sub(center3).arr()
		m.CenterCoords = [3]float32{}
	}

	var radiusSq float32
	sphereOrigin := vec3{m.CenterCoords[0], m.CenterCoords[1], m.CenterCoords[2]}
	for i := 0; i < numVerts; i++ {
		d := vec3At(m.Vertices, i).sub(sphereOrigin).lengthSq()
		if d > radiusSq {
			radiusSq = d
		}
	}
	m.BoundingSphereOrigin = m.CenterCoords
	m.BoundingSphereRadius = float32(math.Sqrt(float64(radiusSq)))
}

// ComputeTexelDensity and ComputeAverageTriangleEdgeLength derive the two
// scalar diagnostics stored alongside the mesh.
func ComputeTexelDensity(m *Mesh) {
	numTris := m.NumFaces()
	if numTris == 0 || len(m.TexCoords) == 0 {
		m.TexelDensity = 1
		return
	}
	var worldArea, uvArea float64
	for i := 0; i < numTris; i++ {
		base := i * 3
		i0, i1, i2 := m.Faces[base], m.Faces[base+1], m.Faces[base+2]
		p0, p1, p2 := vec3At(m.Vertices, int(i0)), vec3At(m.Vertices, int(i1)), vec3At(m.Vertices, int(i2))
		worldArea += float64(p1.sub(p0).cross(p2.sub(p0)).length()) * 0.5

		uv0, uv1, uv2 := vec2At(m.TexCoords, int(i0)), vec2At(m.TexCoords, int(i1)), vec2At(m.TexCoords, int(i2))
		uvArea += math.Abs(float64((uv1.u-uv0.u)*(uv2.v-uv0.v)-(uv2.u-uv0.u)*(uv1.v-uv0.v))) * 0.5
	}
	if worldArea == 0 {
		m.TexelDensity = 1
		return
	}
	m.TexelDensity = float32(uvArea / worldArea)
}

func ComputeAverageTriangleEdgeLength(m *Mesh) {
	numTris := m.NumFaces()
	if numTris == 0 {
		m.AverageTriangleEdgeLength = 0
		return
	}
	var total float64
	for i := 0; i < numTris; i++ {
		base := i * 3
		p0 := vec3At(m.Vertices, int(m.Faces[base]))
		p1 := vec3At(m.Vertices, int(m.Faces[base+1]))
		p2 := vec3At(m.Vertices, int(m.Faces[base+2]))
		total += float64(p1.sub(p0).length() + p2.sub(p1).length() + p0.sub(p2).length())
	}
	m.AverageTriangleEdgeLength = float32(total / float64(numTris*3))
}

func (a vec3) arr() [3]float32 { return [3]float32{a.x, a.y, a.z} }

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
