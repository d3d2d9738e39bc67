package chat

import (
	"embed"
	"strings"
	"text/template"

	"sealdeal-backend/internal/analytics"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

type messageData struct {
	Message string
}

type sqlData struct {
	Message     string
	DialectName string
	Table       string
	DealName    string
	ListType    string
	PublicTable string
}

func newSQLData(q analytics.Querier, publicTable, message string) sqlData {
	d := sqlData{
		Message:     message,
		DialectName: "PostgreSQL",
		Table:       q.Table(),
		DealName:    "deal_name",
		ListType:    "JSONB array of strings",
	}
	if q.Dialect() == analytics.DialectBigQuery {
		d.DialectName = "BigQuery"
		d.Table = "`" + q.Table() + "`"
		d.DealName = "dealName"
		d.ListType = "STRING (REPEATED)"
		if publicTable != "" {
			d.PublicTable = "`" + publicTable + "`"
		}
	}
	return d
}
