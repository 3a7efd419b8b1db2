package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseDiagnostic is a non-fatal finding from parsing one OBJ-subset
// source (an out-of-range index clamped to 0, a mismatched UV2 sibling
// vertex count, and the like); the caller classifies these as
// CategoryMeshParse warnings.
type ParseDiagnostic struct {
	Line    int
	Message string
}

type faceVertex struct {
	vertex, texcoord, normal int // 0-based; -1 means absent
}

// ParseOBJ parses a newline-oriented triangle/quad soup with v/vn/vt/f
// records. Quads are split into two triangles (v0,v1,v2) and
// (v0,v2,v3). 1-based indices are decremented; indices that fall outside
// the vertex range encountered so far are clamped to 0 and reported as a
// diagnostic, parsing continues. The returned bool reports whether the
// source carried any "vn" records at all; buildMesh always fills
// m.Normals with a zero-filled entry per corner lacking one, so that
// slice's length is never a reliable signal of this on its own.
func ParseOBJ(r io.Reader) (*Mesh, bool, []ParseDiagnostic, error) {
	var positions, normals []vec3
	var texcoords []vec2
	var faceVerts [][3]faceVertex
	var diagnostics []ParseDiagnostic

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			v, err := parseFloatTriple(fields[1:])
			if err != nil {
				diagnostics = append(diagnostics, ParseDiagnostic{line, fmt.Sprintf("malformed vertex: %v", err)})
				continue
			}
			positions = append(positions, v)
		case "vn":
			v, err := parseFloatTriple(fields[1:])
			if err != nil {
				diagnostics = append(diagnostics, ParseDiagnostic{line, fmt.Sprintf("malformed normal: %v", err)})
				continue
			}
			normals = append(normals, v)
		case "vt":
			if len(fields) < 3 {
				diagnostics = append(diagnostics, ParseDiagnostic{line, "malformed texcoord"})
				continue
			}
			u, errU := strconv.ParseFloat(fields[1], 32)
			v, errV := strconv.ParseFloat(fields[2], 32)
			if errU != nil || errV != nil {
				diagnostics = append(diagnostics, ParseDiagnostic{line, "malformed texcoord"})
				continue
			}
			texcoords = append(texcoords, vec2{float32(u), float32(v)})
		case "f":
			entries := make([]faceVertex, 0, len(fields)-1)
			for _, field := range fields[1:] {
				fv, err := parseFaceVertex(field)
				if err != nil {
					diagnostics = append(diagnostics, ParseDiagnostic{line, fmt.Sprintf("malformed face entry %q: %v", field, err)})
					continue
				}
				fv = clampFaceVertex(fv, len(positions), len(texcoords), len(normals), line, &diagnostics)
				entries = append(entries, fv)
			}
			if len(entries) == 3 {
				faceVerts = append(faceVerts, [3]faceVertex{entries[0], entries[1], entries[2]})
			} else if len(entries) == 4 {
				faceVerts = append(faceVerts, [3]faceVertex{entries[0], entries[1], entries[2]})
				faceVerts = append(faceVerts, [3]faceVertex{entries[0], entries[2], entries[3]})
			} else if len(entries) > 0 {
				diagnostics = append(diagnostics, ParseDiagnostic{line, fmt.Sprintf("unsupported face with %d vertices", len(entries))})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, diagnostics, err
	}

	return buildMesh(positions, normals, texcoords, faceVerts), len(normals) > 0, diagnostics, nil
}

func parseFloatTriple(fields []string) (vec3, error) {
	if len(fields) < 3 {
		return vec3{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	x, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return vec3{}, err
	}
	y, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return vec3{}, err
	}
	z, err := strconv.ParseFloat(fields[2], 32)
	if err != nil {
		return vec3{}, err
	}
	return vec3{float32(x), float32(y), float32(z)}, nil
}

// parseFaceVertex parses one OBJ face entry of the form v, v/vt, v//vn, or
// v/vt/vn, converting from 1-based to 0-based indices.
func parseFaceVertex(field string) (faceVertex, error) {
	parts := strings.Split(field, "/")
	fv := faceVertex{vertex: -1, texcoord: -1, normal: -1}

	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return fv, err
	}
	fv.vertex = v - 1

	if len(parts) > 1 && parts[1] != "" {
		vt, err := strconv.Atoi(parts[1])
		if err != nil {
			return fv, err
		}
		fv.texcoord = vt - 1
	}
	if len(parts) > 2 && parts[2] != "" {
		vn, err := strconv.Atoi(parts[2])
		if err != nil {
			return fv, err
		}
		fv.normal = vn - 1
	}
	return fv, nil
}

func clampFaceVertex(fv faceVertex, numPositions, numTexcoords, numNormals, line int, diagnostics *[]ParseDiagnostic) faceVertex {
	if fv.vertex < 0 || fv.vertex >= numPositions {
		*diagnostics = append(*diagnostics, ParseDiagnostic{line, fmt.Sprintf("vertex index %d out of range, clamped to 0", fv.vertex)})
		fv.vertex = 0
	}
	if fv.texcoord >= numTexcoords {
		fv.texcoord = -1
	}
	if fv.normal >= numNormals {
		fv.normal = -1
	}
	return fv
}

// buildMesh expands the indexed OBJ data into a per-corner flat vertex
// soup: every distinct (vertex, texcoord, normal) triple referenced by a
// face becomes its own vertex, matching the source format's lack of a
// single unified index space. Vertex welding (RemoveDuplicatedVerts)
// subsequently collapses identical corners.
func buildMesh(positions, normals []vec3, texcoords []vec2, faceVerts [][3]faceVertex) *Mesh {
	m := &Mesh{}
	type cornerKey struct{ v, vt, vn int }
	seen := map[cornerKey]int{}

	emit := func(fv faceVertex) int {
		key := cornerKey{fv.vertex, fv.texcoord, fv.normal}
		if idx, ok := seen[key]; ok {
			return idx
		}
		idx := m.NumVertices()
		m.Vertices = append(m.Vertices, positions[fv.vertex].x, positions[fv.vertex].y, positions[fv.vertex].z)
		if fv.normal >= 0 {
			n := normals[fv.normal]
			m.Normals = append(m.Normals, n.x, n.y, n.z)
		} else {
			m.Normals = append(m.Normals, 0, 0, 0)
		}
		if fv.texcoord >= 0 {
			uv := texcoords[fv.texcoord]
			m.TexCoords = append(m.TexCoords, uv.u, uv.v)
		} else {
			m.TexCoords = append(m.TexCoords, 0, 0)
		}
		seen[key] = idx
		return idx
	}

	for _, tri := range faceVerts {
		for _, fv := range tri {
			m.Faces = append(m.Faces, uint32(emit(fv)))
		}
	}
	return m
}

// MergeUV2 merges a "<name>_UV2" sibling's texcoord channel into m as
// TexCoords2. secondary must have the same vertex count as m; otherwise
// the merge is discarded and a diagnostic reported.
func MergeUV2(m *Mesh, secondary *Mesh) []ParseDiagnostic {
	if secondary.NumVertices() != m.NumVertices() {
		return []ParseDiagnostic{{Message: fmt.Sprintf(
			"UV2 sibling vertex count %d does not match primary %d, discarding", secondary.NumVertices(), m.NumVertices())}}
	}
	m.TexCoords2 = append([]float32(nil), secondary.TexCoords...)
	return nil
}
