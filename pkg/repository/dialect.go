package repository

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL engine behind a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Rebind converts a query written with numbered $N placeholders to the
// dialect's native form. PostgreSQL queries are returned unchanged. For SQLite
// every $N occurrence becomes ? and args are expanded in occurrence order,
// so a placeholder referenced twice consumes its argument twice.
func (d Dialect) Rebind(query string, args []any) (string, []any) {
	if d != SQLite || !strings.Contains(query, "$") {
		return query, args
	}

	var sb strings.Builder
	sb.Grow(len(query))
	bound := make([]any, 0, len(args))

	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' {
			sb.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			sb.WriteByte(c)
			continue
		}

		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			sb.WriteString(query[i:j])
			i = j - 1
			continue
		}

		sb.WriteByte('?')
		bound = append(bound, args[n-1])
		i = j - 1
	}

	return sb.String(), bound
}
