package site

import (
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/api"
)

// WeekData feeds the week page template.
type WeekData struct {
	Header string
	Days   []string
	Lines  []WeekLine
}

// WeekLine is one table row: a start slot and its seven day cells.
type WeekLine struct {
	Time  string
	Cells [7][]string
}

const weekTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Header}}</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 4px 6px; vertical-align: top; }
th { background: #eee; }
td p { margin: 2px 0; white-space: pre-line; }
</style>
</head>
<body>
<h1>{{.Header}}</h1>
<table>
<tr><th></th>{{range .Days}}<th>{{.}}</th>{{end}}</tr>
{{range .Lines}}<tr><td>{{.Time}}</td>{{range .Cells}}<td>{{range .}}<p>{{.}}</p>{{end}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`

var weekTmpl = template.Must(template.New("week").Parse(weekTemplate))

// GetWeekPage renders the newest stored timetable as an HTML table.
func (srv *Server) GetWeekPage(w http.ResponseWriter, r *http.Request) {
	tt, feed, ok := srv.feedTimetable(w, r)
	if !ok {
		return
	}

	view, err := api.BuildWeekView(tt, tt.DisplayableStartDate, 0)
	if err != nil {
		http.Error(w, "nothing to show this week", http.StatusNotFound)

		return
	}

	data := WeekData{
		Header: fmt.Sprintf(
			"%s, %s - %s",
			feed.Name,
			view.Dates[0].Format("02.01"),
			view.Dates[6].Format("02.01.2006"),
		),
	}
	for _, d := range view.Dates {
		data.Days = append(data.Days, d.Format("Mon 02.01"))
	}
	for i, row := range view.Blocks {
		line := WeekLine{
			Time: view.Times[i][0].Format("15:04") + " - " + view.Times[i][1].Format("15:04"),
		}
		for day, cell := range row {
			for _, p := range cell {
				line.Cells[day] = append(line.Cells[day], api.PeriodLine(p))
			}
		}
		data.Lines = append(data.Lines, line)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := weekTmpl.Execute(w, data); err != nil {
		log.Println("render week:", err)
	}
}
