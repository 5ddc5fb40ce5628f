package repository

import (
	"context"
	"strings"

	"github.com/opensource-finance/brokerage/internal/domain"
)

// conditions accumulates AND-ed WHERE clauses with their arguments.
type conditions struct {
	clauses []string
	args    []any
}

// eq adds "col = v" when set.
func (c *conditions) eq(col string, v any, set bool) {
	if !set {
		return
	}
	c.clauses = append(c.clauses, col+" = ?")
	c.args = append(c.args, v)
}

// flag adds a match on an INTEGER 0/1 column when v is non-nil.
func (c *conditions) flag(col string, v *bool) {
	if v != nil {
		c.eq(col, boolToInt(*v), true)
	}
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page returns the arguments followed by LIMIT and OFFSET values.
func (c *conditions) page(p domain.PageRequest) []any {
	args := append([]any{}, c.args...)
	return append(args, p.Size, p.Offset())
}

func (s *sqlStore) count(ctx context.Context, table string, c conditions) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM `+table+c.where()), c.args...).Scan(&n)
	return n, err
}
