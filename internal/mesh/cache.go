package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ErrCacheStale is returned by ReadCache when the stored checksum or
// format version does not match, signaling the caller to reparse the
// source rather than treating this as a hard error.
var ErrCacheStale = fmt.Errorf("mesh cache stale or version mismatch")

// WriteCache serializes m to path in the versioned binary layout: a
// header (version, checksum) followed by every per-vertex/per-face array
// and the two reorder permutations needed to replay welding and
// vertex-order optimization against fresh source data.
func WriteCache(path string, m *Mesh, checksum uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := &binaryEncoder{w: w}

	enc.u16(CacheVersion)
	enc.u16(checksum)

	enc.u32(uint32(m.NumVertices()))
	enc.f32s(m.Vertices)
	enc.f32s(m.Normals)
	enc.f32s(m.Tangents)
	enc.f32s(m.Bitangents)
	enc.f32s(m.TexCoords)
	enc.f32s(m.TexCoords2)
	enc.f32s(m.Aux)
	enc.f32s(m.BoneWeights)
	enc.f32s(m.BoneIDs)

	enc.u32(uint32(m.NumFaces()))
	enc.u32s(m.Faces)
	enc.f32s(m.FaceNormals)

	enc.u32(uint32(m.PrecollapseNumVertices))
	enc.i32count(m.PrecollapseVertReorder)
	enc.i32s(m.PrecollapseVertReorder)
	enc.i32count(m.OptimizeVertReorder)
	enc.i32s(m.OptimizeVertReorder)

	enc.f32(m.MinCoords[0])
	enc.f32(m.MinCoords[1])
	enc.f32(m.MinCoords[2])
	enc.f32(m.MaxCoords[0])
	enc.f32(m.MaxCoords[1])
	enc.f32(m.MaxCoords[2])
	enc.f32(m.CenterCoords[0])
	enc.f32(m.CenterCoords[1])
	enc.f32(m.CenterCoords[2])
	enc.f32(m.BoundingSphereOrigin[0])
	enc.f32(m.BoundingSphereOrigin[1])
	enc.f32(m.BoundingSphereOrigin[2])
	enc.f32(m.BoundingSphereRadius)
	enc.f32(m.TexelDensity)
	enc.f32(m.AverageTriangleEdgeLength)
	enc.u16(checksum)

	if enc.err != nil {
		return enc.err
	}
	return w.Flush()
}

// ReadCache deserializes a cache file written by WriteCache, returning
// ErrCacheStale if its embedded version or checksum does not match
// wantChecksum.
func ReadCache(path string, wantChecksum uint16) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	dec := &binaryDecoder{r: r}

	version := dec.u16()
	checksum := dec.u16()
	if dec.err != nil {
		return nil, dec.err
	}
	if version != CacheVersion || checksum != wantChecksum {
		return nil, ErrCacheStale
	}

	m := &Mesh{Checksum: checksum}
	numVerts := int(dec.u32())
	_ = dec.u32() // length prefix f32s writes ahead of Vertices
	m.Vertices = dec.f32sOfLen(numVerts * 3)
	m.Normals = dec.f32sPrefixed()
	m.Tangents = dec.f32sPrefixed()
	m.Bitangents = dec.f32sPrefixed()
	m.TexCoords = dec.f32sPrefixed()
	m.TexCoords2 = dec.f32sPrefixed()
	m.Aux = dec.f32sPrefixed()
	m.BoneWeights = dec.f32sPrefixed()
	m.BoneIDs = dec.f32sPrefixed()

	numFaces := int(dec.u32())
	m.Faces = dec.u32sOfLen(numFaces * 3)
	m.FaceNormals = dec.f32sPrefixed()

	m.PrecollapseNumVertices = int(dec.u32())
	preCount := dec.u32()
	m.PrecollapseVertReorder = dec.i32sOfLen(int(preCount))
	optCount := dec.u32()
	m.OptimizeVertReorder = dec.i32sOfLen(int(optCount))

	m.MinCoords = [3]float32{dec.f32(), dec.f32(), dec.f32()}
	m.MaxCoords = [3]float32{dec.f32(), dec.f32(), dec.f32()}
	m.CenterCoords = [3]float32{dec.f32(), dec.f32(), dec.f32()}
	m.BoundingSphereOrigin = [3]float32{dec.f32(), dec.f32(), dec.f32()}
	m.BoundingSphereRadius = dec.f32()
	m.TexelDensity = dec.f32()
	m.AverageTriangleEdgeLength = dec.f32()
	_ = dec.u16() // trailing checksum duplicate, unused on read

	if dec.err != nil {
		return nil, dec.err
	}
	return m, nil
}

// binaryEncoder/binaryDecoder wrap encoding/binary with sticky-error
// writes/reads so every cache field doesn't need its own error check.
type binaryEncoder struct {
	w   io.Writer
	err error
}

func (e *binaryEncoder) u16(v uint16) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *binaryEncoder) u32(v uint32) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *binaryEncoder) f32(v float32) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *binaryEncoder) f32s(v []float32) {
	e.u32(uint32(len(v)))
	if e.err != nil || len(v) == 0 {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *binaryEncoder) u32s(v []uint32) {
	if e.err != nil || len(v) == 0 {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *binaryEncoder) i32count(v []int32) {
	e.u32(uint32(len(v)))
}

func (e *binaryEncoder) i32s(v []int32) {
	if e.err != nil || len(v) == 0 {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

type binaryDecoder struct {
	r   io.Reader
	err error
}

func (d *binaryDecoder) u16() uint16 {
	var v uint16
	if d.err != nil {
		return 0
	}
	d.err = binary.Read(d.r, binary.LittleEndian, &v)
	return v
}

func (d *binaryDecoder) u32() uint32 {
	var v uint32
	if d.err != nil {
		return 0
	}
	d.err = binary.Read(d.r, binary.LittleEndian, &v)
	return v
}

func (d *binaryDecoder) f32() float32 {
	var v float32
	if d.err != nil {
		return 0
	}
	d.err = binary.Read(d.r, binary.LittleEndian, &v)
	return v
}

func (d *binaryDecoder) f32sOfLen(n int) []float32 {
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]float32, n)
	d.err = binary.Read(d.r, binary.LittleEndian, out)
	return out
}

func (d *binaryDecoder) f32sPrefixed() []float32 {
	n := int(d.u32())
	return d.f32sOfLen(n)
}

func (d *binaryDecoder) u32sOfLen(n int) []uint32 {
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]uint32, n)
	d.err = binary.Read(d.r, binary.LittleEndian, out)
	return out
}

func (d *binaryDecoder) i32sOfLen(n int) []int32 {
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]int32, n)
	d.err = binary.Read(d.r, binary.LittleEndian, out)
	return out
}
