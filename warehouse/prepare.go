package warehouse

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/justapithecus/crease/types"
)

// dateLayouts are tried in order when coercing string dates.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
}

// batch is a table artifact projected onto a spec's columns.
type batch struct {
	rows       [][]any
	duplicates int
}

// prepare projects data onto spec.Columns, coerces date columns, and
// deduplicates by identity with the last occurrence winning.
func prepare(spec *TableSpec, data *types.Table) (*batch, error) {
	if data == nil {
		return nil, errors.New("no data")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	src := make([]int, len(spec.Columns))
	var missing []string
	for i, c := range spec.Columns {
		src[i] = data.Index(c)
		if src[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	idPos := make([]int, len(spec.IDCols))
	for i, c := range spec.IDCols {
		idPos[i] = slices.Index(spec.Columns, c)
	}

	b := &batch{}
	index := make(map[string]int, len(data.Rows))
	for n, in := range data.Rows {
		row := make([]any, len(spec.Columns))
		for i, c := range spec.Columns {
			v := in[src[i]]
			if spec.isDateCol(c) {
				t, err := coerceDate(v)
				if err != nil {
					return nil, fmt.Errorf("row %d column %s: %w", n, c, err)
				}
				v = t
			}
			row[i] = v
		}

		key, err := identityKey(row, idPos)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		if at, dup := index[key]; dup {
			b.rows[at] = row
			b.duplicates++
			continue
		}
		index[key] = len(b.rows)
		b.rows = append(b.rows, row)
	}
	return b, nil
}

func identityKey(row []any, positions []int) (string, error) {
	parts := make([]string, len(positions))
	for i, p := range positions {
		if row[p] == nil {
			return "", errors.New("identity column is null")
		}
		parts[i] = valueKey(row[p])
	}
	return strings.Join(parts, "\x1f"), nil
}

// valueKey is the comparison key for a business value. Integers of any
// width and their decimal strings compare equal.
func valueKey(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func coerceDate(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return nil, fmt.Errorf("unparseable date %q", t)
	default:
		return nil, fmt.Errorf("unsupported date value %T", v)
	}
}
