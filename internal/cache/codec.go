package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
)

// Cached values are JSON, lz4-frame compressed. The aggregated views run to
// hundreds of kilobytes of text, which compresses well and keeps shared
// cache round trips small.

// encode serializes v for storage.
func encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache value: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress cache value: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush compressed cache value: %w", err)
	}

	return buf.Bytes(), nil
}

// decode deserializes a stored value into v.
func decode(data []byte, v any) error {
	zr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress cache value: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}
