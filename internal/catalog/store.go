package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"PairSentinel/internal/fsutil"
	"PairSentinel/internal/model"
)

// Source supplies the catalog for one screening run.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileSource loads the catalog from a persisted price document.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) (*Catalog, error) {
	return Load(s.Path)
}

// StaticSource serves an already built catalog.
type StaticSource struct {
	Catalog *Catalog
}

func (s StaticSource) Load(_ context.Context) (*Catalog, error) {
	if s.Catalog == nil {
		return nil, errors.New("no catalog supplied")
	}
	return s.Catalog, nil
}

// Load reads a JSON document mapping each symbol to its candle array.
func Load(path string) (*Catalog, error) {
	data, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return New(data), nil
}

// ReadDocument decodes the raw price document.
func ReadDocument(path string) (map[string][]model.Candle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price document: %w", err)
	}
	var data map[string][]model.Candle
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode price document %s: %w", path, err)
	}
	if data == nil {
		return nil, fmt.Errorf("decode price document %s: not an object", path)
	}
	return data, nil
}

// Save writes the price document atomically: a temporary file in the target
// directory is renamed over the destination.
func Save(path string, data map[string][]model.Candle) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price document: %w", err)
	}
	return fsutil.WriteFileAtomic(path, body)
}
