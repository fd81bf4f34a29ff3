package repository

import (
	"fmt"
	"strings"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// whereBuilder accumulates AND-ed conditions with positional placeholders.
// Conditions use %d where the next placeholder number goes.
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) add(cond string, args ...any) {
	placeholders := make([]any, len(args))
	for i := range args {
		placeholders[i] = len(b.args) + i + 1
	}
	b.conds = append(b.conds, fmt.Sprintf(cond, placeholders...))
	b.args = append(b.args, args...)
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// limit appends a LIMIT placeholder and returns its SQL.
func (b *whereBuilder) limit(n int) string {
	b.args = append(b.args, ClampLimit(n))
	return fmt.Sprintf(" LIMIT $%d", len(b.args))
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}
