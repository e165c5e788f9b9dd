package postserver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderRows(t *testing.T, rows *sqlmock.Rows, classes []string) string {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select").WillReturnRows(rows)
	r, err := db.Query("select * from posts")
	require.NoError(t, err)
	defer r.Close()

	table, err := RenderTable(r, classes)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf))
	return buf.String()
}

func TestRenderTable(t *testing.T) {
	html := renderRows(t, sqlmock.NewRows([]string{"title", "author", "body"}).
		AddRow("Mock Post", "Dave", "This is the body of the mock post").
		AddRow("Second", "Ada", "More"),
		[]string{"no-wrap", "no-wrap", ""})

	assert.Contains(t, html, `<th scope="col">title</th>`)
	assert.Contains(t, html, `<th scope="col">author</th>`)
	assert.Contains(t, html, `<th scope="row" class="no-wrap">Mock Post</th>`)
	assert.Contains(t, html, `<td class="no-wrap">Dave</td>`)
	assert.Contains(t, html, `<td>This is the body of the mock post</td>`)
	assert.Less(t, strings.Index(html, "Mock Post"), strings.Index(html, "Second"))
}

func TestRenderTableWithNilAndByteValues(t *testing.T) {
	html := renderRows(t, sqlmock.NewRows([]string{"id", "name", "data"}).
		AddRow(1, nil, []byte("binary data")),
		nil)

	assert.Contains(t, html, `<th scope="row">1</th>`)
	assert.Contains(t, html, "<td></td>")
	assert.Contains(t, html, "<td>binary data</td>")
}

func TestRenderTableEscapesContent(t *testing.T) {
	html := renderRows(t, sqlmock.NewRows([]string{"id", "content"}).
		AddRow(1, "<script>alert('XSS')</script>").
		AddRow(2, "A & B"),
		nil)

	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "&amp;")
	assert.NotContains(t, html, "<script>alert")
}

func TestRenderTableEmptyRows(t *testing.T) {
	html := renderRows(t, sqlmock.NewRows([]string{"id", "name"}), nil)

	assert.Contains(t, html, `<th scope="col">id</th>`)
	tbodyStart := strings.Index(html, "<tbody>")
	tbodyEnd := strings.Index(html, "</tbody>")
	require.True(t, tbodyStart >= 0 && tbodyStart < tbodyEnd)
	assert.NotContains(t, html[tbodyStart:tbodyEnd], "<tr>")
}

func TestValueToString(t *testing.T) {
	assert.Equal(t, "", valueToString(nil))
	assert.Equal(t, "hello", valueToString([]byte("hello")))
	assert.Equal(t, "42", valueToString(42))
	assert.Equal(t, "3.14", valueToString(3.14))
	assert.Equal(t, "true", valueToString(true))
}
