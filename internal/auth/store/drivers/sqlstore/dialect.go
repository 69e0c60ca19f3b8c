package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL drivers sharing this package.
type Dialect struct {
	// Name is the database/sql driver name, e.g. "sqlite" or "pgx".
	Name string

	// Rebind rewrites "?" placeholders into the driver's native form. Nil
	// leaves queries untouched.
	Rebind func(query string) string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

func (d Dialect) rebind(query string) string {
	if d.Rebind == nil {
		return query
	}
	return d.Rebind(query)
}

func (d Dialect) uniqueViolation(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

// DollarRebind converts "?" placeholders into "$1", "$2", ... in order.
// Queries in this package never contain a literal "?".
func DollarRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
