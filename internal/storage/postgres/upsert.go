package postgres

import (
	"strconv"
	"strings"
)

// maxParams is the bind parameter limit of the postgres wire protocol.
const maxParams = 65535

// upsertSpec describes a multi-row INSERT ... ON CONFLICT DO UPDATE. The
// insert and update column lists are kept apart so a column can be written
// once and never touched again on conflict.
type upsertSpec struct {
	table     string
	conflict  []string
	insert    []string
	update    []string
	returning string
}

// rowsPerStatement is the largest batch that fits in one statement.
func (s upsertSpec) rowsPerStatement() int {
	return maxParams / len(s.insert)
}

// build renders the statement for n rows. Placeholders are numbered row by
// row in insert column order.
func (s upsertSpec) build(n int) string {
	cols := len(s.insert)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(s.insert, ", "))
	sb.WriteString(") VALUES ")

	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(i*cols + j + 1))
		}
		sb.WriteByte(')')
	}

	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(strings.Join(s.conflict, ", "))
	sb.WriteString(") DO UPDATE SET ")
	for i, col := range s.update {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(col)
	}

	if s.returning != "" {
		sb.WriteString(" RETURNING ")
		sb.WriteString(s.returning)
	}

	return sb.String()
}

// chunks splits [0, n) into consecutive ranges of at most size elements.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
