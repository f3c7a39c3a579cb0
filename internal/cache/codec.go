package cache

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrCorrupt is returned when an entry cannot be decoded into the expected shape.
var ErrCorrupt = errors.New("cache entry corrupt")

// Encode serializes v for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

// Decode deserializes data into v.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// Load decodes the blob behind h into v. It reports false for an empty placeholder.
func Load(h Handle, v any) (bool, error) {
	empty, err := h.IsEmpty()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", h.Path(), err)
	}
	if empty {
		return false, nil
	}
	data, err := h.Read()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", h.Path(), err)
	}
	if err := Decode(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", h.Path(), err)
	}
	return true, nil
}

// Save encodes v and writes it behind h.
func Save(h Handle, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	if err := h.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", h.Path(), err)
	}
	return nil
}
