// Package persistence saves and restores the session history as a
// versioned, schema-validated JSON document.
package persistence

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/pkg/metrics"
)

// DocumentVersion is the current snapshot document version.
const DocumentVersion = 1

//go:embed schema.json
var schemaJSON []byte

// Settings captures the timer configuration recorded alongside the
// history so a restored session behaves the same way.
type Settings struct {
	InspectionMS         int64 `json:"inspection_ms,omitempty"`
	HoldToStartMS        int64 `json:"hold_to_start_ms,omitempty"`
	AverageWindows       []int `json:"average_windows,omitempty"`
	MeanOfAverageWindows []int `json:"mean_of_average_windows,omitempty"`
}

// Document is the on-disk snapshot format.
type Document struct {
	Version  int             `json:"version"`
	SavedAt  int64           `json:"saved_at"`
	Settings Settings        `json:"settings"`
	Attempts []model.Attempt `json:"attempts"`
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot-v1.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add snapshot schema resource: %v", err))
	}
	schema, err := compiler.Compile("snapshot-v1.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile snapshot schema: %v", err))
	}
	return schema
}

// Save writes a snapshot document to path atomically (write to a temp
// file in the same directory, then rename).
func Save(path string, settings Settings, attempts []model.Attempt) error {
	start := time.Now()

	doc := Document{
		Version:  DocumentVersion,
		SavedAt:  time.Now().UnixMilli(),
		Settings: settings,
		Attempts: attempts,
	}
	if doc.Attempts == nil {
		doc.Attempts = []model.Attempt{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeSnapshot, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}

	metrics.RecordSnapshotSave(float64(time.Since(start).Microseconds()) / 1000.0)
	return nil
}

// Load reads a snapshot document from path, validating it against the
// embedded schema before decoding.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSnapshot, err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeSnapshot, err)
	}
	if err := compiledSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeSnapshot, err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, doc.Version)
	}
	return &doc, nil
}
