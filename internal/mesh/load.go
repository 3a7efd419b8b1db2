package mesh

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wolfire/ogda/internal/logfields"
	"github.com/wolfire/ogda/internal/metrics"
)

// LoadOptions are the per-load flags a caller passes into Load.
type LoadOptions struct {
	Center     bool
	Simple     bool
	FlipFaces  bool
	UseTangent bool
}

// Loader owns the logger/recorder a pipeline injects into every mesh
// load. A Loader may be shared across concurrent loads; each Mesh is
// owned by exactly one load at a time.
type Loader struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// NewLoader returns a Loader with nil-safe defaults.
func NewLoader(logger *slog.Logger, recorder metrics.Recorder) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Loader{Logger: logger, Recorder: recorder}
}

// cachePath returns the sibling cache file path for a source model.
func cachePath(absPath string) string {
	return absPath + ".meshcache"
}

// Load runs the full load path: checksum the source, attempt a cache
// hit, else parse + postprocess + weld + degenerate-removal +
// triangle-order + vertex-order, then write a fresh cache.
func (l *Loader) Load(absPath string, opts LoadOptions) (*Mesh, error) {
	start := time.Now()
	checksum, err := Checksum16(absPath)
	if err != nil {
		return nil, err
	}

	cp := cachePath(absPath)
	if m, err := ReadCache(cp, checksum); err == nil {
		m.Path = filepath.ToSlash(absPath)
		l.Recorder.ObserveMeshLoadDuration(true, time.Since(start))
		return m, nil
	} else if !errors.Is(err, ErrCacheStale) && !os.IsNotExist(err) {
		l.Logger.Warn("mesh cache unreadable, reparsing", logfields.Path(cp), logfields.Error(err))
	}

	m, hadSourceNormals, diagnostics, err := l.parseSource(absPath, opts)
	if err != nil {
		return nil, err
	}
	for _, d := range diagnostics {
		l.Logger.Warn("mesh parse diagnostic", logfields.Path(absPath), slog.Int("line", d.Line), slog.String("detail", d.Message))
	}

	m.Path = filepath.ToSlash(absPath)
	m.UseTangent = opts.UseTangent
	if opts.FlipFaces {
		flipFaceWinding(m)
	}

	ComputeFaceNormals(m)
	ComputeVertexNormals(m, hadSourceNormals)
	ComputeTangentBitangents(m)
	ComputeBounds(m, opts.Center)
	ComputeTexelDensity(m)
	ComputeAverageTriangleEdgeLength(m)

	m.PrecollapseNumVertices = m.NumVertices()
	RemoveDuplicatedVerts(m)
	removed := RemoveDegenerateTriangles(m)
	if removed > 0 {
		l.Logger.Info("removed degenerate triangles", logfields.Path(absPath), slog.Int("count", removed))
	}
	if !opts.Simple {
		OptimizeTriangleOrder(m)
		OptimizeVertexOrder(m)
	}
	m.Checksum = checksum

	if err := WriteCache(cp, m, checksum); err != nil {
		l.Logger.Warn("failed to write mesh cache", logfields.Path(cp), logfields.Error(err))
	}

	l.Recorder.ObserveMeshLoadDuration(false, time.Since(start))
	l.Recorder.SetMeshACMR(absPath, ComputeACMR(m.Faces))
	return m, nil
}

func (l *Loader) parseSource(absPath string, opts LoadOptions) (*Mesh, bool, []ParseDiagnostic, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, false, nil, err
	}
	defer f.Close()

	m, hadNormals, diagnostics, err := ParseOBJ(f)
	if err != nil {
		return nil, false, diagnostics, err
	}

	uv2Path := uv2SiblingPath(absPath)
	if uv2File, err := os.Open(uv2Path); err == nil {
		defer uv2File.Close()
		secondary, _, uv2Diagnostics, parseErr := ParseOBJ(uv2File)
		if parseErr != nil {
			diagnostics = append(diagnostics, ParseDiagnostic{Message: "failed to parse UV2 sibling: " + parseErr.Error()})
		} else {
			diagnostics = append(diagnostics, uv2Diagnostics...)
			diagnostics = append(diagnostics, MergeUV2(m, secondary)...)
		}
	}

	return m, hadNormals, diagnostics, nil
}

// uv2SiblingPath computes "<name>_UV2<ext>" beside a model path.
func uv2SiblingPath(absPath string) string {
	ext := filepath.Ext(absPath)
	base := strings.TrimSuffix(absPath, ext)
	return base + "_UV2" + ext
}

func flipFaceWinding(m *Mesh) {
	for i := 0; i+2 < len(m.Faces); i += 3 {
		m.Faces[i+1], m.Faces[i+2] = m.Faces[i+2], m.Faces[i+1]
	}
}
