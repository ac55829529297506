package dashboard

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/workitem"
)

func TestExport_NotConfigured(t *testing.T) {
	env := newEnv(t, false)
	for _, path := range []string{"/api/export/roadmap-html", "/api/export/stagegate-html"} {
		w := env.do(t, http.MethodGet, path, nil)
		expectStatus(t, w, http.StatusBadRequest)
		if got := decode(t, w)["error"]; got != "Azure DevOps settings not configured." {
			t.Errorf("%s: error = %v", path, got)
		}
	}
}

func TestExport_NoFeatures(t *testing.T) {
	env := newEnv(t, true)
	for _, path := range []string{"/api/export/roadmap-html", "/api/export/stagegate-html"} {
		w := env.do(t, http.MethodGet, path, nil)
		expectStatus(t, w, http.StatusNotFound)
		if got := decode(t, w)["error"]; got != "No features found to export." {
			t.Errorf("%s: error = %v", path, got)
		}
	}
}

func TestExport_StageGate(t *testing.T) {
	env := newEnv(t, true)
	env.ado.add(7, map[string]interface{}{
		ado.FieldTitle:       "Checkout",
		ado.FieldType:        "Feature",
		ado.FieldState:       "Active",
		ado.FieldDescription: `<p>Faster <b>checkout</b></p><script>alert(1)</script>`,
	})

	w := env.do(t, http.MethodGet, "/api/export/stagegate-html", nil)
	expectStatus(t, w, http.StatusOK)

	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="stagegate-Proj-`) || !strings.HasSuffix(cd, `.html"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	page := w.Body.String()
	if strings.Contains(page, "<script>alert") {
		t.Error("export kept the script tag from the description")
	}
	for _, want := range []string{"Checkout", "<b>checkout</b>", "/Proj/_workitems/edit/7", "Discovery"} {
		if !strings.Contains(page, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if !strings.Contains(env.ado.lastWIQL, orderByPriority) {
		t.Errorf("WIQL = %q, want priority order", env.ado.lastWIQL)
	}
}

func TestExport_Roadmap(t *testing.T) {
	env := newEnv(t, true)
	env.ado.add(1, map[string]interface{}{
		ado.FieldTitle: "Mobile app", ado.FieldParent: 500,
		ado.FieldStartDate: "2025-02-10T00:00:00Z", ado.FieldTargetDate: "2025-04-20T00:00:00Z",
	})
	env.ado.add(2, map[string]interface{}{ado.FieldTitle: "Someday"})
	env.ado.items[500] = map[string]interface{}{ado.FieldTitle: "Platform", ado.FieldType: "Epic"}

	w := env.do(t, http.MethodGet, "/api/export/roadmap-html", nil)
	expectStatus(t, w, http.StatusOK)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="roadmap-Proj-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	page := w.Body.String()
	for _, want := range []string{"Proj Roadmap", "Platform", "Mobile app", "Feb 2025", "Apr 2025", "Unscheduled (1)", "Someday"} {
		if !strings.Contains(page, want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestTimelineRange(t *testing.T) {
	day := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	start, end, ok := timelineRange([]workitem.WorkItem{
		{StartDate: day(2025, 3, 15), TargetDate: day(2025, 5, 2)},
		{StartDate: day(2025, 2, 3), TargetDate: day(2025, 2, 28)},
		{StartDate: day(2024, 1, 1)},
	})
	if !ok {
		t.Fatal("expected a range")
	}
	if !start.Equal(*day(2025, 2, 1)) {
		t.Errorf("start = %v, want 2025-02-01", start)
	}
	if !end.Equal(*day(2025, 6, 1)) {
		t.Errorf("end = %v, want 2025-06-01", end)
	}

	if _, _, ok := timelineRange([]workitem.WorkItem{{Title: "unscheduled"}}); ok {
		t.Error("no scheduled items should report no range")
	}
}
