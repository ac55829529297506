package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/ado"
	storydb "github.com/zulandar/storyforge/internal/db"
	"github.com/zulandar/storyforge/internal/innovation"
	"github.com/zulandar/storyforge/internal/notify"
	"github.com/zulandar/storyforge/internal/settings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeADO serves the slice of the ADO REST API the handlers use, for a
// project named Proj.
type fakeADO struct {
	mu        sync.Mutex
	items     map[int]map[string]interface{}
	matches   []int
	children  map[int][]int
	patches   map[int][]map[string]interface{}
	created   []map[string]interface{}
	failPatch map[int]bool
	lastWIQL  string
	handlers  map[string]http.HandlerFunc
}

func newFakeADO(t *testing.T) (*fakeADO, *httptest.Server) {
	t.Helper()
	f := &fakeADO{
		items:     map[int]map[string]interface{}{},
		children:  map[int][]int{},
		patches:   map[int][]map[string]interface{}{},
		failPatch: map[int]bool{},
		handlers:  map[string]http.HandlerFunc{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

// add registers a work item and makes it a match for plain WIQL queries.
func (f *fakeADO) add(id int, fields map[string]interface{}) {
	f.items[id] = fields
	f.matches = append(f.matches, id)
}

func (f *fakeADO) item(id int) map[string]interface{} {
	fields := f.items[id]
	if fields == nil {
		fields = map[string]interface{}{ado.FieldTitle: fmt.Sprintf("item %d", id)}
	}
	return map[string]interface{}{"id": id, "fields": fields}
}

func (f *fakeADO) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.handlers[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	const itemPrefix = "/Proj/_apis/wit/workitems/"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/_apis/projects/Proj":
		writeJSON(w, http.StatusOK, ado.Project{ID: "p-1", Name: "Proj", State: "wellFormed", URL: "https://example/proj"})
	case r.Method == http.MethodGet && r.URL.Path == "/Proj/_apis/wiki/wikis":
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": 0, "value": []interface{}{}})
	case r.Method == http.MethodPost && r.URL.Path == "/Proj/_apis/wit/wiql":
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastWIQL = body.Query
		writeJSON(w, http.StatusOK, f.wiql(body.Query))
	case r.Method == http.MethodGet && r.URL.Path == "/Proj/_apis/wit/workitems":
		var value []map[string]interface{}
		for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
			var id int
			fmt.Sscanf(s, "%d", &id)
			value = append(value, f.item(id))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(value), "value": value})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, itemPrefix+"$"):
		var ops []map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&ops)
		f.created = ops
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":     900,
			"fields": map[string]interface{}{ado.FieldTitle: "created", ado.FieldType: strings.TrimPrefix(r.URL.Path, itemPrefix+"$")},
		})
	case strings.HasPrefix(r.URL.Path, itemPrefix):
		var id int
		fmt.Sscanf(strings.TrimPrefix(r.URL.Path, itemPrefix), "%d", &id)
		if r.Method == http.MethodPatch {
			if f.failPatch[id] {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": fmt.Sprintf("cannot update %d", id)})
				return
			}
			var ops []map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&ops)
			f.patches[id] = ops
		}
		if _, ok := f.items[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("work item %d does not exist", id)})
			return
		}
		writeJSON(w, http.StatusOK, f.item(id))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route " + r.URL.Path})
	}
}

// wiql answers link queries from children and everything else from matches.
func (f *fakeADO) wiql(query string) map[string]interface{} {
	const marker = "[Source].[System.Id] = "
	if i := strings.Index(query, marker); i >= 0 {
		var src int
		fmt.Sscanf(query[i+len(marker):], "%d", &src)
		rels := []map[string]interface{}{{"target": map[string]int{"id": src}}}
		for _, c := range f.children[src] {
			rels = append(rels, map[string]interface{}{
				"source": map[string]int{"id": src},
				"target": map[string]int{"id": c},
			})
		}
		return map[string]interface{}{"workItemRelations": rels}
	}
	refs := make([]map[string]int, 0, len(f.matches))
	for _, id := range f.matches {
		refs = append(refs, map[string]int{"id": id})
	}
	return map[string]interface{}{"workItems": refs}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// events collects notifier deliveries.
type events chan notify.Event

func (e events) Notify(_ context.Context, evt notify.Event) error {
	e <- evt
	return nil
}

// testEnv is a router wired to an in-memory store and a fake ADO project.
type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	ado    *fakeADO
	srv    *httptest.Server
	store  *settings.Store
	events events
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := storydb.Init(db); err != nil {
		t.Fatalf("init test db: %v", err)
	}
	return db
}

// newEnv builds a test environment. When configured is true the settings
// row points at the fake ADO server.
func newEnv(t *testing.T, configured bool) *testEnv {
	t.Helper()
	f, srv := newFakeADO(t)
	db := testDB(t)
	store := settings.New(db, nil)
	if configured {
		if _, err := store.Save(settings.Input{AdoOrgURL: srv.URL, AdoProject: "Proj", AdoPAT: "pat"}); err != nil {
			t.Fatalf("save settings: %v", err)
		}
	}
	ev := make(events, 8)
	router, err := NewRouter(StartOpts{
		DB:       db,
		Settings: store,
		ADO:      &ado.Connector{Settings: store, HTTPClient: srv.Client()},
		Notifier: ev,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testEnv{router: router, db: db, ado: f, srv: srv, store: store, events: ev}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a JSON response into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestNewRouter_NilDB(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestStartOpts_ZeroValue(t *testing.T) {
	opts := StartOpts{}
	if opts.DB != nil || opts.Port != 0 || opts.Out != nil || opts.ADO != nil || opts.Notifier != nil {
		t.Error("zero-value StartOpts should have nil/zero fields")
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	for _, name := range []string{"templates/roadmap.html", "templates/stagegate.html"} {
		data, err := templatesFS.ReadFile(name)
		if err != nil {
			t.Fatalf("%s not embedded: %v", name, err)
		}
		if !strings.Contains(string(data), "{{.ProjectName}}") {
			t.Errorf("%s does not render the project name", name)
		}
	}
}

func TestParseTemplates(t *testing.T) {
	tmpl, err := parseTemplates()
	if err != nil {
		t.Fatalf("parseTemplates: %v", err)
	}
	for _, name := range []string{"roadmap.html", "stagegate.html"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %s missing", name)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/health", nil)
	expectStatus(t, w, http.StatusOK)
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp %v is not RFC3339: %v", body["timestamp"], err)
	}
}

func TestRequestID(t *testing.T) {
	env := newEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/health", nil)
	if got := w.Header().Get(requestIDHeader); len(got) != 36 {
		t.Errorf("generated request id = %q, want a uuid", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("echoed request id = %q, want abc-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newEnv(t, false)
	w := env.do(t, http.MethodOptions, "/api/innovation/items", nil)
	expectStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	env := newEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/nope", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestTimeAgo(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := time.Now().Add(-d)
		return &v
	}
	tests := []struct {
		name string
		when *time.Time
		want string
	}{
		{"nil", nil, "—"},
		{"zero", &time.Time{}, "—"},
		{"minutes", at(5 * time.Minute), "5m ago"},
		{"hours", at(3 * time.Hour), "3h ago"},
		{"days", at(48 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.when); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSSE_NilDBSendsConnected(t *testing.T) {
	router := gin.New()
	router.GET("/events", handleSSE(nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Errorf("body = %q, want connected event", w.Body.String())
	}
}

func TestSSE_StreamsInnovationChange(t *testing.T) {
	orig := ssePoll
	ssePoll = 20 * time.Millisecond
	t.Cleanup(func() { ssePoll = orig })

	env := newEnv(t, false)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() || scanner.Text() != "event: connected" {
		t.Fatalf("first line = %q, want connected event", scanner.Text())
	}

	if _, err := innovation.Create(env.db, innovation.CreateOpts{Title: "Live idea"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for scanner.Scan() {
		if scanner.Text() != "event: innovation" {
			continue
		}
		if !scanner.Scan() || !strings.Contains(scanner.Text(), "Live idea") {
			t.Fatalf("data line = %q, want the new item", scanner.Text())
		}
		return
	}
	t.Fatalf("stream ended without an innovation event: %v", scanner.Err())
}
