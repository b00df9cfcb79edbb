package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// JSONLWriter writes the record stream as newline-delimited JSON: one
// object per frame, appended in order, followed by a terminal object of
// the form {"manifest": {...}}. The file stays parseable line-by-line even
// when a run is cancelled mid-stream.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// NewJSONLWriter creates (or truncates) the output file.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating record stream %s: %w", path, err)
	}
	return &JSONLWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *JSONLWriter) WriteRecord(r EstimateRecord) error {
	return w.writeLine(r)
}

func (w *JSONLWriter) WriteManifest(m Manifest) error {
	// Wrapped so readers can tell the terminal object from a record line.
	return w.writeLine(map[string]Manifest{"manifest": m})
}

func (w *JSONLWriter) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record line: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("writing record line: %w", err)
	}
	return w.writer.WriteByte('\n')
}

// Flush forces buffered lines to disk without closing the stream.
func (w *JSONLWriter) Flush() error {
	return w.writer.Flush()
}

// Close flushes and closes the underlying file.
func (w *JSONLWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadJSONL loads a record stream back from disk, returning the records in
// order and the terminal manifest (nil if the file has none, e.g. a stream
// from a crashed process).
func ReadJSONL(path string) ([]EstimateRecord, *Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening record stream %s: %w", path, err)
	}
	defer file.Close()

	var records []EstimateRecord
	var manifest *Manifest

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wrapped struct {
			Manifest *Manifest `json:"manifest"`
		}
		if err := json.Unmarshal(line, &wrapped); err == nil && wrapped.Manifest != nil {
			manifest = wrapped.Manifest
			continue
		}
		var rec EstimateRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, nil, fmt.Errorf("parsing record line: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading record stream: %w", err)
	}
	return records, manifest, nil
}
