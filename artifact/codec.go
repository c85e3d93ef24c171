package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/crease/types"
)

// EncodeTable writes t as msgpack.
func EncodeTable(w io.Writer, t *types.Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	if err := msgpack.NewEncoder(w).Encode(t); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	return nil
}

// DecodeTable reads a msgpack table. Integers decode as int64 and floats
// as float64 regardless of their wire width.
func DecodeTable(r io.Reader) (*types.Table, error) {
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)

	var t types.Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	for _, row := range t.Rows {
		for i, v := range row {
			row[i] = normalizeValue(v)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table: %w", err)
	}
	return &t, nil
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= 1<<63-1 {
			return int64(n)
		}
		return n
	case float32:
		return float64(n)
	default:
		return v
	}
}

// ReadTable opens name and decodes it as a table.
func ReadTable(ctx context.Context, r Reader, name string) (*types.Table, error) {
	rc, err := r.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	t, err := DecodeTable(rc)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", name, err)
	}
	return t, nil
}

// WriteTable publishes t under name.
func WriteTable(ctx context.Context, s Store, name string, t *types.Table) error {
	return s.Write(ctx, name, func(w io.Writer) error {
		return EncodeTable(w, t)
	})
}

// EncodeJSON writes v as a raw JSON blob.
func EncodeJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ReadJSON opens name and decodes the JSON blob into v.
func ReadJSON(ctx context.Context, r Reader, name string, v any) error {
	rc, err := r.Open(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("artifact %q: decode json: %w", name, err)
	}
	return nil
}
