package course

import (
	"fmt"
	"strings"
)

// deleteOrphans builds a DELETE removing child rows of a parent that are not
// in the kept set. Placeholder $1 is the parent id, $2.. the kept ids.
func deleteOrphans[T any](table, parentCol string, kept []T, idOf func(T) string) string {
	if len(kept) == 0 {
		return fmt.Sprintf(`DELETE FROM %s WHERE %s=$1`, table, parentCol)
	}
	ph := make([]string, 0, len(kept))
	for i := range kept {
		ph = append(ph, fmt.Sprintf("$%d", i+2))
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE %s=$1 AND id NOT IN (%s)`,
		table, parentCol, strings.Join(ph, ","))
}

func orphanArgs[T any](parentID string, kept []T, idOf func(T) string) []any {
	args := make([]any, 0, len(kept)+1)
	args = append(args, parentID)
	for _, k := range kept {
		args = append(args, idOf(k))
	}
	return args
}
