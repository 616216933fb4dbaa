package scheduler

import (
	"bytes"
	"fmt"
	"time"

	g "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/dataask/dataask/core/domain"
)

// subjectFor returns the configured subject or the default one.
func subjectFor(q *domain.ScheduledQuery) string {
	if q.Subject != "" {
		return q.Subject
	}
	return "Scheduled Query Results: " + q.Name
}

// emailBody renders the HTML body of a result email.
func emailBody(q *domain.ScheduledQuery, sql string, rows int, executedAt time.Time) (string, error) {
	node := html.HTML(
		html.Body(
			html.H2(g.Text(q.Name)),
			g.If(q.Description != "", html.P(g.Text(q.Description))),
			html.P(html.Strong(g.Text("Executed:")), g.Text(" "+executedAt.UTC().Format("2006-01-02 15:04:05")+" UTC")),
			html.P(html.Strong(g.Text("Rows returned:")), g.Text(fmt.Sprintf(" %d", rows))),
			html.P(html.Strong(g.Text("SQL:"))),
			html.Pre(html.StyleAttr("background-color: #f5f5f5; padding: 10px; border-radius: 4px;"), g.Text(sql)),
			html.P(g.Text("Please find the results attached.")),
		),
	)

	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
