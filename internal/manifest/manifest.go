// Package manifest records the outputs of a pipeline run and the shared
// content-addressed database of previously built artifacts.
package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wolfire/ogda/internal/atomicfile"
)

// ResultKind distinguishes how a manifest record's destination was produced.
type ResultKind string

const (
	KindBuilt     ResultKind = "BUILT"
	KindDatabase  ResultKind = "DATABASE"
	KindGenerated ResultKind = "GENERATED"
)

// SourceItem is one source item recorded against a BUILT or DATABASE result.
type SourceItem struct {
	Path string `xml:"path,attr"`
	Type string `xml:"type,attr"`
	Hash string `xml:"hash,attr"`
}

// ProgramInfo identifies the program that produced a manifest.
type ProgramInfo struct {
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr"`
}

// ExecutionInfo records when, and under what run, a manifest was written.
type ExecutionInfo struct {
	RunID     string    `xml:"run_id,attr"`
	Timestamp time.Time `xml:"timestamp,attr"`
}

// Result is one produced output recorded in a Manifest or DatabaseManifest.
type Result struct {
	Kind            ResultKind   `xml:"-"`
	Dest            string       `xml:"dest,attr"`
	DestHash        string       `xml:"dest_hash,attr"`
	ProducerName    string       `xml:"producer_name,attr"`
	ProducerVersion string       `xml:"producer_version,attr"`
	Type            string       `xml:"type,attr"`
	Success         bool         `xml:"success,attr"`
	FreshBuilt      bool         `xml:"fresh_built,attr"`
	Sources         []SourceItem `xml:"Item"`
}

func (r *Result) hasSourceHash(hash string) bool {
	for _, s := range r.Sources {
		if s.Hash == hash {
			return true
		}
	}
	return false
}

func elementNameForKind(k ResultKind) string {
	switch k {
	case KindDatabase:
		return "DatabaseResult"
	case KindGenerated:
		return "GeneratorResult"
	default:
		return "BuilderResult"
	}
}

func kindForElementName(name string) (ResultKind, bool) {
	switch name {
	case "BuilderResult", "Result": // legacy element name, synonym of BuilderResult
		return KindBuilt, true
	case "DatabaseResult":
		return KindDatabase, true
	case "GeneratorResult":
		return KindGenerated, true
	default:
		return "", false
	}
}

// hashPrefix parses the first 16 hex characters of a content hash as a real
// uint64, used as the short-prefix index key. This is a proper numeric parse,
// not an endian-sensitive reinterpretation of the ASCII bytes.
func hashPrefix(hexHash string) (uint64, bool) {
	if len(hexHash) < 16 {
		return 0, false
	}
	v, err := strconv.ParseUint(hexHash[:16], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Manifest is an ordered record of every output produced by a pipeline run.
type Manifest struct {
	ProgramInfo   ProgramInfo
	ExecutionInfo ExecutionInfo
	Results       []Result

	index map[uint64][]int
}

// NewManifest returns an empty manifest stamped with a fresh RunID.
func NewManifest(programName, programVersion string) *Manifest {
	return &Manifest{
		ProgramInfo:   ProgramInfo{Name: programName, Version: programVersion},
		ExecutionInfo: ExecutionInfo{RunID: uuid.NewString(), Timestamp: time.Now()},
		index:         map[uint64][]int{},
	}
}

// AddResult appends a result and indexes it by its sources' hash prefixes.
func (m *Manifest) AddResult(r Result) {
	if m.index == nil {
		m.index = map[uint64][]int{}
	}
	idx := len(m.Results)
	m.Results = append(m.Results, r)
	for _, s := range r.Sources {
		if prefix, ok := hashPrefix(s.Hash); ok {
			m.index[prefix] = append(m.index[prefix], idx)
		}
	}
}

// Lookup finds the candidate record for (sourceHash, producerName,
// producerVersion) without checking destination freshness, so a caller can
// hash the record's own Dest path before deciding whether to reuse it via
// IsUpToDate.
func (m *Manifest) Lookup(sourceHash, producerName, producerVersion string) (*Result, bool) {
	prefix, ok := hashPrefix(sourceHash)
	if !ok {
		return nil, false
	}
	for _, idx := range m.index[prefix] {
		r := &m.Results[idx]
		if r.Kind != KindBuilt && r.Kind != KindDatabase {
			continue
		}
		if r.ProducerName == producerName && r.ProducerVersion == producerVersion && r.hasSourceHash(sourceHash) {
			return r, true
		}
	}
	return nil, false
}

// IsUpToDate reports whether an existing record covers (sourceHash,
// producerName, producerVersion) and its stored destination hash still
// matches the file currently on disk at the destination. A version change
// on the producer, even with identical source bytes, is treated as stale
// (ManifestVersionMismatch) rather than as an error: IsUpToDate simply
// returns false and the builder is re-run.
func (m *Manifest) IsUpToDate(sourceHash, producerName, producerVersion, currentDestHash string) (*Result, bool) {
	if currentDestHash == "" {
		return nil, false
	}
	prefix, ok := hashPrefix(sourceHash)
	if !ok {
		return nil, false
	}
	for _, idx := range m.index[prefix] {
		r := &m.Results[idx]
		if r.Kind != KindBuilt && r.Kind != KindDatabase {
			continue
		}
		if r.ProducerName != producerName || r.ProducerVersion != producerVersion {
			continue
		}
		if !r.hasSourceHash(sourceHash) {
			continue
		}
		if r.DestHash == currentDestHash {
			return r, true
		}
	}
	return nil, false
}

// HasError reports whether any recorded result failed, the aggregate signal
// the reconciler consults before deleting unlisted files.
func (m *Manifest) HasError() bool {
	for _, r := range m.Results {
		if !r.Success {
			return true
		}
	}
	return false
}

// DestPaths returns the set of destination paths recorded in the manifest.
func (m *Manifest) DestPaths() map[string]bool {
	out := make(map[string]bool, len(m.Results))
	for _, r := range m.Results {
		out[r.Dest] = true
	}
	return out
}

// MarshalXML writes the manifest as an ordered sequence of typed result
// elements; Go's struct-tag based slice encoding cannot express an ordered
// sequence mixing BuilderResult/DatabaseResult/GeneratorResult element names,
// so encoding walks the token stream directly.
func (m *Manifest) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "Manifest"}
	start.Attr = nil
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeElement(m.ProgramInfo, xml.StartElement{Name: xml.Name{Local: "ProgramInfo"}}); err != nil {
		return err
	}
	if err := e.EncodeElement(m.ExecutionInfo, xml.StartElement{Name: xml.Name{Local: "ExecutionInfo"}}); err != nil {
		return err
	}
	for i := range m.Results {
		name := elementNameForKind(m.Results[i].Kind)
		if err := e.EncodeElement(&m.Results[i], xml.StartElement{Name: xml.Name{Local: name}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML reads the manifest back from its mixed-element-name sequence,
// accepting the legacy "Result" element name as a synonym of BuilderResult.
func (m *Manifest) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	m.index = map[uint64][]int{}
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "ProgramInfo":
				if err := d.DecodeElement(&m.ProgramInfo, &t); err != nil {
					return err
				}
			case "ExecutionInfo":
				if err := d.DecodeElement(&m.ExecutionInfo, &t); err != nil {
					return err
				}
			default:
				kind, ok := kindForElementName(t.Name.Local)
				if !ok {
					if err := d.Skip(); err != nil {
						return err
					}
					continue
				}
				var r Result
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				r.Kind = kind
				m.AddResult(r)
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// Load reads a manifest from path. A missing file is not an error: it yields
// a fresh empty manifest, matching the pipeline's optional-prior-manifest
// contract (no --manifest-input means build everything).
func Load(path, programName, programVersion string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(programName, programVersion), nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest atomically, creating parent directories if needed.
func Save(path string, m *Manifest) error {
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	return atomicfile.ReplaceCreatingDirs(path, data, 0644)
}

// DatabaseManifest is the content-addressed shared store's own record of
// what it holds, indexed by (source_item_hash, producer_name,
// producer_version). The stored payload for a record lives on disk at
// PayloadPath(sourceHash, destHash).
type DatabaseManifest struct {
	ProgramInfo   ProgramInfo
	ExecutionInfo ExecutionInfo
	Results       []Result

	index     map[uint64][]int
	sqliteIdx *SQLiteIndex
}

// sqliteIndexThreshold is the Results count past which EnableSQLiteIndex
// backs lookups with an on-disk SQLiteIndex instead of relying solely on
// the in-memory prefix map: large shared databases (many teams, many
// builders, long history) stop fitting comfortably in memory well before
// they stop being useful to query. A var, not a const, so tests can lower
// it rather than constructing thousands of Results.
var sqliteIndexThreshold = 5000

// EnableSQLiteIndex opens (creating if absent) an on-disk index file at
// path and backs dm's Lookup with it once dm.Results has grown past
// sqliteIndexThreshold. Below the threshold it is a no-op: the in-memory
// map already answers lookups in O(1) without the extra file. If the index
// file has no rows (for instance, freshly created) it is populated from
// dm.Results before being attached; an index file that already has rows is
// attached as it is, without being compared against dm.Results.
func (dm *DatabaseManifest) EnableSQLiteIndex(path string) error {
	if len(dm.Results) < sqliteIndexThreshold {
		return nil
	}
	idx, err := OpenSQLiteIndex(path)
	if err != nil {
		return err
	}
	count, err := idx.Count()
	if err != nil {
		_ = idx.Close()
		return err
	}
	if count == 0 {
		for _, r := range dm.Results {
			for _, s := range r.Sources {
				if putErr := idx.Put(s.Hash, r.ProducerName, r.ProducerVersion, r.DestHash, r.Dest); putErr != nil {
					_ = idx.Close()
					return putErr
				}
			}
		}
	}
	dm.sqliteIdx = idx
	return nil
}

// Close releases the on-disk index opened by EnableSQLiteIndex, if any.
func (dm *DatabaseManifest) Close() error {
	if dm.sqliteIdx == nil {
		return nil
	}
	return dm.sqliteIdx.Close()
}

// NewDatabaseManifest returns an empty database manifest stamped with a fresh RunID.
func NewDatabaseManifest(programName, programVersion string) *DatabaseManifest {
	return &DatabaseManifest{
		ProgramInfo:   ProgramInfo{Name: programName, Version: programVersion},
		ExecutionInfo: ExecutionInfo{RunID: uuid.NewString(), Timestamp: time.Now()},
		index:         map[uint64][]int{},
	}
}

// AddResult records a new database entry, tagging it KindDatabase.
func (dm *DatabaseManifest) AddResult(r Result) {
	r.Kind = KindDatabase
	if dm.index == nil {
		dm.index = map[uint64][]int{}
	}
	idx := len(dm.Results)
	dm.Results = append(dm.Results, r)
	for _, s := range r.Sources {
		if prefix, ok := hashPrefix(s.Hash); ok {
			dm.index[prefix] = append(dm.index[prefix], idx)
		}
		if dm.sqliteIdx != nil {
			_ = dm.sqliteIdx.Put(s.Hash, r.ProducerName, r.ProducerVersion, r.DestHash, r.Dest)
		}
	}
}

// Lookup finds a stored entry keyed by (sourceHash, producerName, producerVersion).
// When EnableSQLiteIndex has attached an on-disk index, it is consulted
// first; a query error falls back to the in-memory map rather than
// reporting a spurious miss.
func (dm *DatabaseManifest) Lookup(sourceHash, producerName, producerVersion string) (*Result, bool) {
	if dm.sqliteIdx != nil {
		if destHash, dest, ok, err := dm.sqliteIdx.Lookup(sourceHash, producerName, producerVersion); err == nil && ok {
			return &Result{
				Kind:            KindDatabase,
				Dest:            dest,
				DestHash:        destHash,
				ProducerName:    producerName,
				ProducerVersion: producerVersion,
				Sources:         []SourceItem{{Hash: sourceHash}},
			}, true
		}
	}

	prefix, ok := hashPrefix(sourceHash)
	if !ok {
		return nil, false
	}
	for _, idx := range dm.index[prefix] {
		r := &dm.Results[idx]
		if r.ProducerName == producerName && r.ProducerVersion == producerVersion && r.hasSourceHash(sourceHash) {
			return r, true
		}
	}
	return nil, false
}

// PayloadPath returns the on-disk path of a stored payload, relative to the
// database root: files/<source_item_hash>/<dest_hash>.
func PayloadPath(sourceHash, destHash string) string {
	return filepath.Join("files", sourceHash, destHash)
}

// MarshalXML mirrors Manifest's, rooted at DatabaseManifest.
func (dm *DatabaseManifest) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "DatabaseManifest"}
	start.Attr = nil
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeElement(dm.ProgramInfo, xml.StartElement{Name: xml.Name{Local: "ProgramInfo"}}); err != nil {
		return err
	}
	if err := e.EncodeElement(dm.ExecutionInfo, xml.StartElement{Name: xml.Name{Local: "ExecutionInfo"}}); err != nil {
		return err
	}
	for i := range dm.Results {
		if err := e.EncodeElement(&dm.Results[i], xml.StartElement{Name: xml.Name{Local: "DatabaseResult"}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML mirrors Manifest's.
func (dm *DatabaseManifest) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	dm.index = map[uint64][]int{}
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "ProgramInfo":
				if err := d.DecodeElement(&dm.ProgramInfo, &t); err != nil {
					return err
				}
			case "ExecutionInfo":
				if err := d.DecodeElement(&dm.ExecutionInfo, &t); err != nil {
					return err
				}
			case "DatabaseResult":
				var r Result
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				dm.AddResult(r)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// LoadDatabase reads a DatabaseManifest from path, yielding an empty one if
// the file does not yet exist.
func LoadDatabase(path, programName, programVersion string) (*DatabaseManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDatabaseManifest(programName, programVersion), nil
		}
		return nil, fmt.Errorf("read database manifest %s: %w", path, err)
	}
	var dm DatabaseManifest
	if err := xml.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("parse database manifest %s: %w", path, err)
	}
	return &dm, nil
}

// SaveDatabase writes the database manifest atomically.
func SaveDatabase(path string, dm *DatabaseManifest) error {
	data, err := xml.MarshalIndent(dm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal database manifest: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	return atomicfile.ReplaceCreatingDirs(path, data, 0644)
}
