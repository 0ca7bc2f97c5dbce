package chunk

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundqa/internal/model"
)

// File maps each chunk type to its chunks. It marshals with categories in
// canonical order so regenerating from the same data is byte-identical.
type File map[model.ChunkType][]model.Chunk

// All flattens the file in canonical category order.
func (f File) All() []model.Chunk {
	var out []model.Chunk
	for _, ct := range f.types() {
		out = append(out, f[ct]...)
	}
	return out
}

// Len is the total number of chunks.
func (f File) Len() int {
	n := 0
	for _, cs := range f {
		n += len(cs)
	}
	return n
}

// types returns the non-empty categories, known ones first in canonical
// order, unknown ones after in name order.
func (f File) types() []model.ChunkType {
	var out []model.ChunkType
	known := map[model.ChunkType]bool{}
	for _, ct := range model.AllChunkTypes() {
		known[ct] = true
		if len(f[ct]) > 0 {
			out = append(out, ct)
		}
	}
	var extra []string
	for ct, cs := range f {
		if !known[ct] && len(cs) > 0 {
			extra = append(extra, string(ct))
		}
	}
	sort.Strings(extra)
	for _, ct := range extra {
		out = append(out, model.ChunkType(ct))
	}
	return out
}

func (f File) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ct := range f.types() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(ct))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f[ct])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Write saves the file as indented JSON, replacing any existing file
// atomically.
func Write(path string, f File) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "chunk: marshal")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return eris.Wrap(err, "chunk: indent")
	}
	out.WriteByte('\n')
	return writeAtomic(path, out.Bytes())
}

// Load reads a chunk file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "chunk: read %s", path)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "chunk: parse %s", path)
	}
	return f, nil
}

// WriteCSV exports chunks with one row per chunk and the data as JSON.
func WriteCSV(w io.Writer, f File) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Chunk Type", "Fund Name", "Source URL", "Data"}); err != nil {
		return eris.Wrap(err, "chunk: write csv header")
	}
	for _, c := range f.All() {
		data, err := json.Marshal(c.Data)
		if err != nil {
			return eris.Wrap(err, "chunk: marshal csv data")
		}
		if err := cw.Write([]string{string(c.ChunkType), c.FundName, c.SourceURL, string(data)}); err != nil {
			return eris.Wrap(err, "chunk: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "chunk: flush csv")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "chunk: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".chunks-*.json")
	if err != nil {
		return eris.Wrap(err, "chunk: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "chunk: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "chunk: close temp file")
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "chunk: rename to %s", path)
}
