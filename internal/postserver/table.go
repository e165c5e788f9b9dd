package postserver

import (
	"database/sql"
	"fmt"

	"github.com/go-via/testbench/via/h"
)

func valueToString(v any) string {
	if v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// RenderTable renders rows as an HTML table. columnClasses names a CSS class
// per column; the first column becomes the row header.
func RenderTable(rows *sql.Rows, columnClasses []string) (h.H, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	headerCells := make([]h.H, len(cols))
	for i, col := range cols {
		headerCells[i] = h.Th(h.Attr("scope", "col"), h.Text(col))
	}

	var bodyRows []h.H
	for rows.Next() {
		values := make([]any, len(cols))
		scanArgs := make([]any, len(cols))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}

		cells := make([]h.H, len(values))
		for i, v := range values {
			attrs := []h.H{}
			if i < len(columnClasses) && columnClasses[i] != "" {
				attrs = append(attrs, h.Class(columnClasses[i]))
			}
			attrs = append(attrs, h.Text(valueToString(v)))
			if i == 0 {
				cells[i] = h.Th(append([]h.H{h.Attr("scope", "row")}, attrs...)...)
				continue
			}
			cells[i] = h.Td(attrs...)
		}
		bodyRows = append(bodyRows, h.Tr(cells...))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return h.Table(h.THead(h.Tr(headerCells...)), h.TBody(bodyRows...)), nil
}
