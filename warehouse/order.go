package warehouse

import (
	"fmt"
	"strings"
)

// CheckOrder verifies that every table referenced by a spec's merge
// columns appears earlier in specs. It also validates each spec and
// rejects duplicate table names.
func CheckOrder(specs []TableSpec) error {
	pos := make(map[string]int, len(specs))
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			return err
		}
		if _, dup := pos[specs[i].Name]; dup {
			return fmt.Errorf("%w: table %s listed twice", ErrInvalidSpec, specs[i].Name)
		}
		pos[specs[i].Name] = i
	}

	for i := range specs {
		for _, ref := range specs[i].References() {
			j, ok := pos[ref]
			switch {
			case !ok:
				return &OrderingError{Table: specs[i].Name, References: ref, Reason: "referenced table is not in the load set"}
			case j == i:
				return &OrderingError{Table: specs[i].Name, References: ref, Reason: "table references itself"}
			case j > i:
				return &OrderingError{Table: specs[i].Name, References: ref, Reason: "referenced table is listed after it"}
			}
		}
	}
	return nil
}

// OrderSpecs returns specs reordered so every table follows the tables it
// references. Among ready tables, declaration order is kept.
func OrderSpecs(specs []TableSpec) ([]TableSpec, error) {
	pos := make(map[string]int, len(specs))
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := pos[specs[i].Name]; dup {
			return nil, fmt.Errorf("%w: table %s listed twice", ErrInvalidSpec, specs[i].Name)
		}
		pos[specs[i].Name] = i
	}
	for i := range specs {
		for _, ref := range specs[i].References() {
			if _, ok := pos[ref]; !ok {
				return nil, &OrderingError{Table: specs[i].Name, References: ref, Reason: "referenced table is not in the load set"}
			}
		}
	}

	placed := make(map[string]bool, len(specs))
	ordered := make([]TableSpec, 0, len(specs))
	for len(ordered) < len(specs) {
		progressed := false
		for i := range specs {
			if placed[specs[i].Name] || !refsPlaced(&specs[i], placed) {
				continue
			}
			placed[specs[i].Name] = true
			ordered = append(ordered, specs[i])
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for i := range specs {
				if !placed[specs[i].Name] {
					stuck = append(stuck, specs[i].Name)
				}
			}
			return nil, &OrderingError{
				Table:      stuck[0],
				References: strings.Join(stuck, ", "),
				Reason:     "tables reference each other cyclically",
			}
		}
	}
	return ordered, nil
}

func refsPlaced(spec *TableSpec, placed map[string]bool) bool {
	for _, ref := range spec.References() {
		if !placed[ref] {
			return false
		}
	}
	return true
}
