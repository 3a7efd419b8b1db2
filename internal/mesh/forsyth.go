package mesh

import "math"

// Forsyth's vertex-cache-optimization constants, after
// http://home.comcast.net/~tom_forsyth/papers/fast_vert_cache_opt.html.
const (
	fvsCacheDecayPower   = 1.5
	fvsLastTriScore      = 0.75
	fvsValenceBoostScale = 2.0
	fvsValenceBoostPower = 0.5
)

type vertCacheData struct {
	cachePos          int
	score             float32
	notAddedTriangles int
}

type triCacheData struct {
	added bool
	score float32
	verts [3]uint32
}

// findVertexScore scores one vertex from its cache position and its
// remaining (not yet emitted) triangle count.
func findVertexScore(v *vertCacheData) float32 {
	if v.notAddedTriangles == 0 {
		return -1.0
	}

	var score float32
	if v.cachePos < 0 {
		score = 0
	} else if v.cachePos < 3 {
		score = fvsLastTriScore
	} else {
		scaler := float32(1.0 / (VertexCacheSize - 3))
		base := 1.0 - float32(v.cachePos-3)*scaler
		score = float32(math.Pow(float64(base), fvsCacheDecayPower))
	}

	valenceBoost := float32(math.Pow(float64(v.notAddedTriangles), -fvsValenceBoostPower))
	score += fvsValenceBoostScale * valenceBoost
	return score
}

// OptimizeTriangleOrder reorders m.Faces with Forsyth's greedy vertex-cache
// simulation: repeatedly emit the highest-scored not-yet-emitted triangle
// (ties broken by lowest triangle index), slide its vertices to the front
// of a simulated K=32 LRU cache, and recompute the scores of every vertex
// whose cache position changed.
func OptimizeTriangleOrder(m *Mesh) {
	numTris := m.NumFaces()
	if numTris == 0 {
		return
	}
	numVerts := m.NumVertices()

	tris := make([]triCacheData, numTris)
	verts := make([]vertCacheData, numVerts)

	for i := 0; i < numTris; i++ {
		base := i * 3
		tris[i].verts = [3]uint32{m.Faces[base], m.Faces[base+1], m.Faces[base+2]}
		for _, v := range tris[i].verts {
			verts[v].notAddedTriangles++
		}
	}
	for i := range verts {
		verts[i].cachePos = -1
		verts[i].score = findVertexScore(&verts[i])
	}

	triScore := func(t *triCacheData) float32 {
		return verts[t.verts[0]].score + verts[t.verts[1]].score + verts[t.verts[2]].score
	}
	for i := range tris {
		tris[i].score = triScore(&tris[i])
	}

	bestTriangle := 0
	bestScore := float32(0)
	for i := range tris {
		if tris[i].score > bestScore {
			bestScore = tris[i].score
			bestTriangle = i
		}
	}

	lru := make([]int, VertexCacheSize)
	for i := range lru {
		lru[i] = -1
	}
	drawList := make([]int, numTris)
	drawIndex := 0

	for drawIndex < numTris {
		drawList[drawIndex] = bestTriangle
		drawIndex++
		if drawIndex == numTris {
			break
		}
		tris[bestTriangle].added = true

		for _, v := range tris[bestTriangle].verts {
			verts[v].notAddedTriangles--
		}

		for _, vertID := range tris[bestTriangle].verts {
			cp := verts[vertID].cachePos
			if cp != -1 {
				for j := cp; j < VertexCacheSize; j++ {
					if j == VertexCacheSize-1 {
						lru[j] = -1
					} else {
						lru[j] = lru[j+1]
						if lru[j] != -1 {
							verts[lru[j]].cachePos--
						}
					}
				}
			}
			for j := VertexCacheSize - 1; j >= 0; j-- {
				if lru[j] != -1 {
					verts[lru[j]].cachePos++
					if j >= VertexCacheSize-1 {
						verts[lru[j]].cachePos = -1
					}
					verts[lru[j]].score = findVertexScore(&verts[lru[j]])
				}
				if j != 0 {
					lru[j] = lru[j-1]
				}
			}
			lru[0] = int(vertID)
			verts[vertID].cachePos = 0
			verts[vertID].score = findVertexScore(&verts[vertID])
		}

		bestScore = 0
		bestTriangle = -1
		for i := range tris {
			if tris[i].added {
				continue
			}
			tris[i].score = triScore(&tris[i])
			if bestTriangle == -1 || tris[i].score > bestScore {
				bestScore = tris[i].score
				bestTriangle = i
			}
		}
	}

	index := 0
	for _, triIdx := range drawList {
		m.Faces[index], m.Faces[index+1], m.Faces[index+2] = tris[triIdx].verts[0], tris[triIdx].verts[1], tris[triIdx].verts[2]
		index += 3
	}
}
