// Package warehouse loads tabular artifacts into relational tables.
//
// Each table is described by a TableSpec. Dimension tables are upserted by
// their identity columns; fact tables additionally resolve foreign-key
// columns against tables committed earlier in the same run. A Coordinator
// enforces that ordering and drives each spec through the right loader,
// one transaction per table.
package warehouse

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Kind selects the loader for a table.
type Kind string

const (
	// Dimension tables are reference data keyed by business identity.
	Dimension Kind = "dimension"
	// Fact tables hold events that reference dimension tables.
	Fact Kind = "fact"
)

// Conflict is the policy for incoming rows whose identity already exists
// in the target table.
type Conflict string

const (
	// ConflictSkip leaves the existing row unchanged. This is the default
	// for both kinds: dimensions preserve existing rows, facts are
	// append-only.
	ConflictSkip Conflict = "skip"
	// ConflictUpdate overwrites the non-identity columns of the existing row.
	ConflictUpdate Conflict = "update"
)

// ErrInvalidSpec is returned by TableSpec.Validate.
var ErrInvalidSpec = errors.New("invalid table spec")

// Reference points a local column at a column of another table.
type Reference struct {
	// Table is the referenced table.
	Table string `json:"table" yaml:"table"`
	// Column holds the business value matched against the local column.
	Column string `json:"column" yaml:"column"`
	// Key is the column whose value replaces the local value on load.
	// Empty means Column.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

// KeyColumn returns Key, or Column when Key is empty.
func (r Reference) KeyColumn() string {
	if r.Key == "" {
		return r.Column
	}
	return r.Key
}

func (r Reference) String() string {
	if r.Key == "" || r.Key == r.Column {
		return r.Table + "." + r.Column
	}
	return fmt.Sprintf("%s.%s->%s", r.Table, r.Column, r.Key)
}

// TableSpec describes one warehouse table.
type TableSpec struct {
	// Name is the target table.
	Name string `json:"name" yaml:"name"`
	// Kind selects the dimension or fact loader.
	Kind Kind `json:"kind" yaml:"kind"`
	// Artifact names the cleaned table artifact to load.
	Artifact string `json:"artifact" yaml:"artifact"`
	// Columns are the target columns, in insert order.
	Columns []string `json:"columns" yaml:"columns"`
	// IDCols identify a row. They must be a subset of Columns.
	IDCols []string `json:"id_cols" yaml:"id_cols"`
	// DateCols are coerced to UTC time.Time before insert.
	DateCols []string `json:"date_cols,omitempty" yaml:"date_cols,omitempty"`
	// MergeCols map a local column to the table and column it references.
	MergeCols map[string]Reference `json:"merge_cols,omitempty" yaml:"merge_cols,omitempty"`
	// Conflict is the policy for existing identities. Empty means ConflictSkip.
	Conflict Conflict `json:"conflict,omitempty" yaml:"conflict,omitempty"`
	// ColumnTypes are SQL types used by CreateSchema. Missing entries
	// default to TEXT.
	ColumnTypes map[string]string `json:"column_types,omitempty" yaml:"column_types,omitempty"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the spec's internal consistency.
func (s *TableSpec) Validate() error {
	if !identRe.MatchString(s.Name) {
		return fmt.Errorf("%w: table name %q", ErrInvalidSpec, s.Name)
	}
	if s.Kind != Dimension && s.Kind != Fact {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSpec, s.Name, s.Kind)
	}
	if s.Artifact == "" {
		return fmt.Errorf("%w: %s: artifact is required", ErrInvalidSpec, s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: %s: no columns", ErrInvalidSpec, s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !identRe.MatchString(c) {
			return fmt.Errorf("%w: %s: column name %q", ErrInvalidSpec, s.Name, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidSpec, s.Name, c)
		}
		seen[c] = true
	}
	if len(s.IDCols) == 0 {
		return fmt.Errorf("%w: %s: id_cols is empty", ErrInvalidSpec, s.Name)
	}
	for _, c := range s.IDCols {
		if !seen[c] {
			return fmt.Errorf("%w: %s: id column %q not in columns", ErrInvalidSpec, s.Name, c)
		}
	}
	for _, c := range s.DateCols {
		if !seen[c] {
			return fmt.Errorf("%w: %s: date column %q not in columns", ErrInvalidSpec, s.Name, c)
		}
	}
	for local, ref := range s.MergeCols {
		if !seen[local] {
			return fmt.Errorf("%w: %s: merge column %q not in columns", ErrInvalidSpec, s.Name, local)
		}
		for _, ident := range []string{ref.Table, ref.Column, ref.KeyColumn()} {
			if !identRe.MatchString(ident) {
				return fmt.Errorf("%w: %s: merge column %q has invalid reference %s",
					ErrInvalidSpec, s.Name, local, ref)
			}
		}
	}
	if s.Kind == Dimension && len(s.MergeCols) > 0 {
		return fmt.Errorf("%w: %s: dimension tables cannot declare merge columns", ErrInvalidSpec, s.Name)
	}
	switch s.Conflict {
	case "", ConflictSkip, ConflictUpdate:
	default:
		return fmt.Errorf("%w: %s: unknown conflict policy %q", ErrInvalidSpec, s.Name, s.Conflict)
	}
	return nil
}

// ConflictPolicy returns the effective conflict policy.
func (s *TableSpec) ConflictPolicy() Conflict {
	if s.Conflict == "" {
		return ConflictSkip
	}
	return s.Conflict
}

// References returns the distinct tables named by MergeCols, sorted.
func (s *TableSpec) References() []string {
	var refs []string
	for _, ref := range s.MergeCols {
		if !slices.Contains(refs, ref.Table) {
			refs = append(refs, ref.Table)
		}
	}
	slices.Sort(refs)
	return refs
}

// MergeColumns returns the local merge columns in Columns order.
func (s *TableSpec) MergeColumns() []string {
	var cols []string
	for _, c := range s.Columns {
		if _, ok := s.MergeCols[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func (s *TableSpec) isIDCol(col string) bool {
	return slices.Contains(s.IDCols, col)
}

func (s *TableSpec) isDateCol(col string) bool {
	return slices.Contains(s.DateCols, col)
}
