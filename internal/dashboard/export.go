package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/settings"
	"github.com/zulandar/storyforge/internal/stagegate"
	"github.com/zulandar/storyforge/internal/workitem"
)

// descriptionPolicy strips scripts and event handlers from ADO rich text
// before it is embedded in an export.
var descriptionPolicy = bluemonday.UGCPolicy()

// StageColors is the palette of one stage column.
type StageColors struct {
	Background string
	Header     string
	Border     string
}

var stageColors = map[string]StageColors{
	stagegate.Intake:      {"#f1f5f9", "#64748b", "#cbd5e1"},
	stagegate.Discovery:   {"#eff6ff", "#3b82f6", "#bfdbfe"},
	stagegate.Development: {"#f5f3ff", "#8b5cf6", "#c4b5fd"},
	stagegate.Testing:     {"#fefce8", "#ca8a04", "#fde047"},
	stagegate.Complete:    {"#f0fdf4", "#16a34a", "#86efac"},
}

var templateFuncs = template.FuncMap{
	"sanitize": func(s string) template.HTML {
		return template.HTML(descriptionPolicy.Sanitize(s))
	},
	"formatDate": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "—"
		}
		return t.Format("Jan 2, 2006")
	},
	"timeAgo": TimeAgo,
	"stageColors": func(stage string) StageColors {
		if c, ok := stageColors[stage]; ok {
			return c
		}
		return stageColors[stagegate.Intake]
	},
	"pct": func(f float64) string { return fmt.Sprintf("%.2f%%", f) },
}

// exportHeader holds what both exports show above the board.
type exportHeader struct {
	ProjectName string
	AdoBaseURL  string
	ExportDate  time.Time
}

// timelineBar is one scheduled feature placed on the roadmap timeline.
type timelineBar struct {
	workitem.WorkItem
	Left     float64
	Width    float64
	Progress workitem.Progress
}

type timelineLane struct {
	Epic *workitem.WorkItem
	Bars []timelineBar
}

type monthTick struct {
	Label string
	Left  float64
}

type roadmapPage struct {
	exportHeader
	Months      []monthTick
	Lanes       []timelineLane
	Unscheduled []workitem.WorkItem
	Total       int
}

type stageColumn struct {
	Name     string
	Colors   StageColors
	Features []stagegate.Feature
}

type stageGatePage struct {
	exportHeader
	Columns []stageColumn
	Total   int
}

func handleExportRoadmap(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, header, ok := exportClient(c, d)
		if !ok {
			return
		}
		rm, err := RoadmapFeatures(c.Request.Context(), d.db, client, false)
		if err != nil {
			exportFailed(c, "roadmap", err)
			return
		}
		if rm.Total == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No features found to export."})
			return
		}
		page := buildRoadmapPage(header, rm)
		writeExport(c, d.tmpl, "roadmap.html", "roadmap", header, page)
	}
}

func handleExportStageGate(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, header, ok := exportClient(c, d)
		if !ok {
			return
		}
		board, err := StageGateBoard(c.Request.Context(), d.db, client, orderByPriority)
		if err != nil {
			exportFailed(c, "stage gate", err)
			return
		}
		if len(board.Features) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No features found to export."})
			return
		}
		page := stageGatePage{exportHeader: header, Total: len(board.Features)}
		for _, s := range stagegate.Stages() {
			page.Columns = append(page.Columns, stageColumn{
				Name:     s,
				Colors:   stageColors[s],
				Features: board.Grouped[s],
			})
		}
		writeExport(c, d.tmpl, "stagegate.html", "stagegate", header, page)
	}
}

// exportClient resolves the ADO client and the page header, answering 400
// when the connection is not configured.
func exportClient(c *gin.Context, d *deps) (*ado.Client, exportHeader, bool) {
	client, err := d.ado.Client()
	if errors.Is(err, settings.ErrNotConfigured) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNotConfigured + "."})
		return nil, exportHeader{}, false
	}
	if err != nil {
		respondError(c, err)
		return nil, exportHeader{}, false
	}
	return client, exportHeader{
		ProjectName: client.Project(),
		AdoBaseURL:  client.OrgURL() + "/" + client.Project() + "/_workitems/edit",
		ExportDate:  time.Now().UTC(),
	}, true
}

func exportFailed(c *gin.Context, what string, err error) {
	log.Printf("dashboard: %s export: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Failed to generate " + what + " export",
		"message": err.Error(),
	})
}

// writeExport renders into a buffer first so a template error still yields
// a clean JSON 500.
func writeExport(c *gin.Context, tmpl *template.Template, name, prefix string, header exportHeader, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		exportFailed(c, strings.TrimSuffix(name, ".html"), err)
		return
	}
	filename := fmt.Sprintf("%s-%s-%s.html", prefix, header.ProjectName, header.ExportDate.Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// buildRoadmapPage lays the scheduled features out on a month grid spanning
// the earliest start to the latest target date.
func buildRoadmapPage(header exportHeader, rm workitem.Roadmap) roadmapPage {
	page := roadmapPage{exportHeader: header, Unscheduled: rm.Unscheduled, Total: rm.Total}

	var scheduled []workitem.WorkItem
	for _, g := range rm.Scheduled {
		scheduled = append(scheduled, g.Features...)
	}
	scheduled = append(scheduled, rm.OrphanedScheduled...)

	start, end, ok := timelineRange(scheduled)
	if !ok {
		return page
	}
	span := end.Sub(start)
	place := func(t time.Time) float64 {
		return 100 * float64(t.Sub(start)) / float64(span)
	}
	for m := start; m.Before(end); m = m.AddDate(0, 1, 0) {
		page.Months = append(page.Months, monthTick{Label: m.Format("Jan 2006"), Left: place(m)})
	}

	bars := func(items []workitem.WorkItem) []timelineBar {
		var out []timelineBar
		for _, f := range items {
			if !f.Scheduled() {
				continue
			}
			left := place(*f.StartDate)
			width := place(*f.TargetDate) - left
			if width < 1 {
				width = 1
			}
			out = append(out, timelineBar{WorkItem: f, Left: left, Width: width, Progress: rm.Progress[f.ID]})
		}
		return out
	}
	for i := range rm.Scheduled {
		g := rm.Scheduled[i]
		page.Lanes = append(page.Lanes, timelineLane{Epic: &g.Epic, Bars: bars(g.Features)})
	}
	if len(rm.OrphanedScheduled) > 0 {
		page.Lanes = append(page.Lanes, timelineLane{Bars: bars(rm.OrphanedScheduled)})
	}
	return page
}

// timelineRange returns month-aligned bounds covering every scheduled item.
func timelineRange(items []workitem.WorkItem) (time.Time, time.Time, bool) {
	var start, end time.Time
	for _, it := range items {
		if !it.Scheduled() {
			continue
		}
		if start.IsZero() || it.StartDate.Before(start) {
			start = *it.StartDate
		}
		if end.IsZero() || it.TargetDate.After(end) {
			end = *it.TargetDate
		}
	}
	if start.IsZero() {
		return start, end, false
	}
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	if !end.After(start) {
		end = start.AddDate(0, 1, 0)
	}
	return start, end, true
}
