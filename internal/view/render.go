// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package view

import (
	"bytes"
	"html/template"
	"io"
	"strconv"

	"github.com/pdflens/internal/extract"
)

// Column headers, in display order
var Columns = []string{"Text", "X Coordinate", "Y Coordinate"}

const tableHTML = `<table class="table">
  <thead>
    <tr>
{{- range .Columns}}
      <th>{{.}}</th>
{{- end}}
    </tr>
  </thead>
  <tbody>
{{- range $i, $r := .Records}}
    <tr data-index="{{$i}}"><td>{{$r.Text}}</td><td>{{coord $r.X}}</td><td>{{coord $r.Y}}</td></tr>
{{- end}}
  </tbody>
</table>
`

var tableTmpl = template.Must(template.New("table").Funcs(template.FuncMap{
	"coord": FormatCoord,
}).Parse(tableHTML))

// FormatCoord prints a coordinate in its shortest decimal form, e.g. 72 or 72.5
func FormatCoord(v float64) string {
	if v == 0 {
		// normalises -0
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderTable writes one row per record, in order. No records renders the header only.
func RenderTable(w io.Writer, records []extract.Record) error {
	return tableTmpl.Execute(w, struct {
		Columns []string
		Records []extract.Record
	}{Columns, records})
}

// TableHTML renders the table for embedding in a page template
func TableHTML(records []extract.Record) (template.HTML, error) {
	var buf bytes.Buffer
	if err := RenderTable(&buf, records); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
