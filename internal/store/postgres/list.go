package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// listQuery appends the time range, ordering and pagination of opts to a
// SELECT over timeCol and returns the final query with its arguments.
func listQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(" WHERE 1=1")

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		fmt.Fprintf(&b, " AND %s >= %s", timeCol, arg(*opts.Since))
	}
	if opts.Until != nil {
		fmt.Fprintf(&b, " AND %s <= %s", timeCol, arg(*opts.Until))
	}
	fmt.Fprintf(&b, " ORDER BY %s DESC", timeCol)
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", arg(opts.Limit))
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %s", arg(opts.Offset))
	}
	return b.String(), args
}
