package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
	"networth/internal/sections/memory"
	"networth/internal/session"
)

// failingStore serves reads from memory and fails writes on demand.
type failingStore struct {
	*memory.Store
	saveErr error
}

func (f *failingStore) SaveSection(ctx context.Context, index int, s core.Section) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveSection(ctx, index, s)
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func sampleSections() []core.Section {
	return []core.Section{
		{
			Name: "Assets",
			Role: core.RoleAssets,
			Groups: []core.Group{
				{Name: "Cash", Categories: []core.Category{
					{Name: "Checking", Value: core.MustAmount("100")},
					{Name: "Savings", Value: core.MustAmount("50.5")},
					{Name: "Wallet", Value: core.MustAmount("0")},
				}},
			},
		},
		{
			Name: "Liabilities",
			Role: core.RoleLiabilities,
			Groups: []core.Group{
				{Name: "Loans", Categories: []core.Category{
					{Name: "Car", Value: core.MustAmount("30")},
				}},
			},
		},
	}
}

func newTestServer(t *testing.T, store sections.Store, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(opts, store, session.New(store, opts.Logger))
	t.Cleanup(func() { srv.limiter.Stop() })
	if srv.templates == nil {
		t.Fatal("templates not loaded")
	}
	return srv
}

func do(t *testing.T, srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersSections(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})

	rr := do(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`id="section-0"`,
		`id="section-1"`,
		"Checking",
		"$150.50",
		"$30.00",
		"$120.50",
		`id="networth"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, "hx-swap-oob") {
		t.Error("full page should not carry out-of-band blocks")
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestIndexCurrency(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{Currency: "eur"})
	body := do(t, srv, http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, "€") {
		t.Errorf("expected euro formatting in body")
	}
}

func TestIndexNoData(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), Options{})

	rr := do(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No data has been saved yet.") {
		t.Fatalf("missing no-data notice")
	}
	if !strings.Contains(rr.Body.String(), "$0.00") {
		t.Fatalf("empty collection should show zero net worth")
	}
}

func TestUnknownPath(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})
	if rr := do(t, srv, http.MethodGet, "/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t, memory.New(nil), Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	for _, want := range []string{"http_requests_total", "rate_limit_hits_total", "working_sections 0"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAPI_GetData(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})

	rr := doJSON(t, srv, http.MethodGet, "/networth/GetData", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var got []core.Section
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Assets" || got[1].Groups[0].Categories[0].Name != "Car" {
		t.Fatalf("unexpected document: %+v", got)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}

	empty := newTestServer(t, memory.New(nil), Options{})
	if rr := doJSON(t, empty, http.MethodGet, "/networth/GetData", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing document status=%d, want 404", rr.Code)
	}
}

func TestAPI_GetSection(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/networth/GetSection?sectionName=Liabilities", http.StatusOK},
		{"missing name", "/networth/GetSection", http.StatusBadRequest},
		{"unknown", "/networth/GetSection?sectionName=Nope", http.StatusNotFound},
		{"wrong method", "/networth/GetSection?sectionName=Assets", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.want == http.StatusMethodNotAllowed {
				method = http.MethodPost
			}
			rr := doJSON(t, srv, method, tt.target, "")
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d", rr.Code, tt.want)
			}
		})
	}

	rr := doJSON(t, srv, http.MethodGet, "/networth/GetSection?sectionName=Liabilities", "")
	var sec core.Section
	if err := json.Unmarshal(rr.Body.Bytes(), &sec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sec.Name != "Liabilities" {
		t.Fatalf("got section %q", sec.Name)
	}
}

func TestAPI_SaveSection(t *testing.T) {
	store := memory.New(sampleSections())
	srv := newTestServer(t, store, Options{})

	body := `{"Name":"Liabilities","Role":"liabilities","Groups":[{"Name":"Loans","Categories":[{"Name":"Car","Value":10},{"Name":"Card","Value":5.25}],"TotalValue":999}],"TotalValue":0}`

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"missing index", "/networth/SaveSection", body, http.StatusBadRequest},
		{"bad index", "/networth/SaveSection?sectionIndex=x", body, http.StatusBadRequest},
		{"negative index", "/networth/SaveSection?sectionIndex=-1", body, http.StatusBadRequest},
		{"bad body", "/networth/SaveSection?sectionIndex=1", `{"Name":`, http.StatusBadRequest},
		{"out of range", "/networth/SaveSection?sectionIndex=2", body, http.StatusNotFound},
		{"ok", "/networth/SaveSection?sectionIndex=1", body, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, tt.target, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	sec, err := store.ReadByName(context.Background(), "Liabilities")
	if err != nil {
		t.Fatalf("ReadByName: %v", err)
	}
	if got := sec.TotalValue.String(); got != "15.25" {
		t.Fatalf("stored total = %s, want recalculated 15.25", got)
	}
	if got := sec.Groups[0].TotalValue.String(); got != "15.25" {
		t.Fatalf("stored group total = %s, want 15.25", got)
	}
	assets, _ := store.ReadByName(context.Background(), "Assets")
	if len(assets.Groups[0].Categories) != 3 {
		t.Fatal("other sections must be untouched")
	}
}

func TestAPI_SaveSectionStorageFailure(t *testing.T) {
	store := &failingStore{Store: memory.New(sampleSections()), saveErr: fmt.Errorf("disk full: %w", sections.ErrIOFailure)}
	srv := newTestServer(t, store, Options{})

	rr := doJSON(t, srv, http.MethodPost, "/networth/SaveSection?sectionIndex=0", `{"Name":"Assets","Groups":[]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk full") {
		t.Fatal("storage details leaked to client")
	}
}

func TestAPI_SaveDataAndNetWorth(t *testing.T) {
	store := memory.New(nil)
	srv := newTestServer(t, store, Options{})

	if rr := doJSON(t, srv, http.MethodPost, "/networth/SaveData", `{"Name":"x"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("object body status=%d, want 400", rr.Code)
	}
	if rr := doJSON(t, srv, http.MethodPost, "/networth/SaveData", `null`); rr.Code != http.StatusBadRequest {
		t.Fatalf("null body status=%d, want 400", rr.Code)
	}

	doc := `[
		{"Name":"Assets","Groups":[{"Name":"Cash","Categories":[{"Name":"Checking","Value":1000}]}]},
		{"Name":"Liabilities","Groups":[{"Name":"Loans","Categories":[{"Name":"Car","Value":250.5}]}]}
	]`
	if rr := doJSON(t, srv, http.MethodPost, "/networth/SaveData", doc); rr.Code != http.StatusOK {
		t.Fatalf("SaveData status=%d: %s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, srv, http.MethodGet, "/networth/NetWorth", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("NetWorth status=%d", rr.Code)
	}
	var sum core.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Assets.String() != "1000" || sum.Liabilities.String() != "250.5" || sum.NetWorth.String() != "749.5" {
		t.Fatalf("summary = %s / %s / %s", sum.Assets, sum.Liabilities, sum.NetWorth)
	}
}

func TestUI_EditFlow(t *testing.T) {
	store := memory.New(sampleSections())
	srv := newTestServer(t, store, Options{})
	do(t, srv, http.MethodGet, "/", nil)

	rr := do(t, srv, http.MethodPost, "/ui/sections/0/edit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `hx-post="/ui/sections/0/submit"`) {
		t.Fatal("editing section should offer submit")
	}

	rr = do(t, srv, http.MethodPost, "/ui/sections/0/groups/0/categories/0/value", url.Values{"value": {"250.999"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("set value status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `value="250.99"`) {
		t.Errorf("value not truncated in partial")
	}
	if !strings.Contains(body, `hx-swap-oob="true"`) || !strings.Contains(body, "$271.49") {
		t.Errorf("partial missing out-of-band net worth $271.49")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "networth:changed") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	rr = do(t, srv, http.MethodPost, "/ui/sections/0/groups", url.Values{"name": {"Cash"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate group status=%d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "That name is already used here.") {
		t.Error("duplicate warning missing")
	}
	if rr.Header().Get(HeaderSectionPartial) != "true" {
		t.Error("rejection should still carry the section partial")
	}

	rr = do(t, srv, http.MethodPost, "/ui/sections/0/groups", url.Values{"name": {"   "}})
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "Name cannot be empty.") {
		t.Fatalf("empty group status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/ui/sections/0/groups", url.Values{"name": {"Brokerage"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Brokerage") {
		t.Fatalf("add group status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodPost, "/ui/sections/0/groups/1/categories", url.Values{"name": {"Index fund"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Index fund") {
		t.Fatalf("add category status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/ui/sections/0/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "section:saved") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), `hx-post="/ui/sections/0/edit"`) {
		t.Error("submitted section should be back in viewing")
	}

	saved, err := store.ReadByName(context.Background(), "Assets")
	if err != nil {
		t.Fatalf("ReadByName: %v", err)
	}
	if got := saved.Groups[0].Categories[0].Value.String(); got != "250.99" {
		t.Fatalf("stored value = %s, want 250.99", got)
	}
	if len(saved.Groups) != 2 || saved.Groups[1].Categories[0].Name != "Index fund" {
		t.Fatalf("stored groups = %+v", saved.Groups)
	}
	if got := saved.TotalValue.String(); got != "301.49" {
		t.Fatalf("stored total = %s, want 301.49", got)
	}
}

func TestUI_CancelDiscardsStructuralEdits(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})
	do(t, srv, http.MethodGet, "/", nil)

	do(t, srv, http.MethodPost, "/ui/sections/1/edit", nil)
	if rr := do(t, srv, http.MethodPost, "/ui/sections/1/groups", url.Values{"name": {"Temp"}}); rr.Code != http.StatusOK {
		t.Fatalf("add group status=%d", rr.Code)
	}

	rr := do(t, srv, http.MethodPost, "/ui/sections/1/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "Temp") {
		t.Fatal("cancel should discard the added group")
	}
	if srv.session.Mode(1) != session.Viewing {
		t.Fatal("cancel should return to viewing")
	}
}

func TestUI_DeleteCategoryKeepsOrder(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})
	do(t, srv, http.MethodGet, "/", nil)

	rr := do(t, srv, http.MethodDelete, "/ui/sections/0/groups/0/categories/1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	sec, _ := srv.session.Section(0)
	cats := sec.Groups[0].Categories
	if len(cats) != 2 || cats[0].Name != "Checking" || cats[1].Name != "Wallet" {
		t.Fatalf("categories = %+v", cats)
	}

	rr = do(t, srv, http.MethodDelete, "/ui/sections/0/groups/0", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete group status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No groups yet") {
		t.Error("empty section placeholder missing")
	}
}

func TestUI_BadPositions(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{})
	do(t, srv, http.MethodGet, "/", nil)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"non numeric section", http.MethodPost, "/ui/sections/abc/edit", http.StatusBadRequest},
		{"missing section", http.MethodPost, "/ui/sections/9/edit", http.StatusNotFound},
		{"missing group", http.MethodDelete, "/ui/sections/0/groups/7", http.StatusNotFound},
		{"missing category", http.MethodPost, "/ui/sections/0/groups/0/categories/9/value", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/ui/sections/0/edit", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, url.Values{"value": {"1"}})
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusNotFound && rr.Header().Get(HeaderSectionPartial) != "" {
				t.Error("missing positions must not swap a partial")
			}
		})
	}
}

func TestUI_SubmitFailureStaysEditing(t *testing.T) {
	store := &failingStore{Store: memory.New(sampleSections())}
	srv := newTestServer(t, store, Options{})
	do(t, srv, http.MethodGet, "/", nil)
	do(t, srv, http.MethodPost, "/ui/sections/0/edit", nil)

	store.saveErr = fmt.Errorf("write: %w", sections.ErrIOFailure)
	rr := do(t, srv, http.MethodPost, "/ui/sections/0/submit", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Saving failed. Your edits are still here.") {
		t.Error("storage warning missing")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if srv.session.Mode(0) != session.Editing {
		t.Fatal("failed submit must leave the section editing")
	}
}

func TestUI_ResetRefetches(t *testing.T) {
	store := memory.New(sampleSections())
	srv := newTestServer(t, store, Options{})
	do(t, srv, http.MethodGet, "/", nil)

	do(t, srv, http.MethodPost, "/ui/sections/0/groups/0/categories/0/value", url.Values{"value": {"5"}})
	rr := do(t, srv, http.MethodPost, "/ui/sections/0/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	sec, _ := srv.session.Section(0)
	if got := sec.Groups[0].Categories[0].Value.String(); got != "100" {
		t.Fatalf("value after reset = %s, want 100", got)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "section:reset") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestUI_RateLimitsMutations(t *testing.T) {
	srv := newTestServer(t, memory.New(sampleSections()), Options{RateLimitPerMinute: 1})
	do(t, srv, http.MethodGet, "/", nil)

	if rr := do(t, srv, http.MethodPost, "/ui/sections/0/edit", nil); rr.Code != http.StatusOK {
		t.Fatalf("first mutation status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/ui/sections/0/save", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second mutation status=%d, want 429", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Error("htmx clients should get a notification")
	}
	if rr := do(t, srv, http.MethodGet, "/ui/sections/0", nil); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, status=%d", rr.Code)
	}
}
