package mesh

// ComputeACMR simulates a 32-entry FIFO vertex cache over faces and
// reports 3*(total-hits)/total, a diagnostic-only average cache-miss
// ratio.
//
// Each index is checked for a hit against the FIFO as it stood before
// the index arrived, and is then written at the cursor with the cursor
// advanced whether it hit or missed, so a hit also consumes a slot and
// can leave the same vertex in the FIFO more than once. This affects only
// the reported ratio, never OptimizeTriangleOrder's emitted order.
func ComputeACMR(faces []uint32) float64 {
	total := len(faces)
	if total == 0 {
		return 0
	}

	fifo := make([]int32, VertexCacheSize)
	for i := range fifo {
		fifo[i] = -1
	}
	cacheHits := 0
	index := 0
	for _, face := range faces {
		for _, slot := range fifo {
			if slot == int32(face) {
				cacheHits++
				break
			}
		}
		fifo[index] = int32(face)
		index = (index + 1) % len(fifo)
	}

	return float64(total-cacheHits) / float64(total) * 3.0
}
