package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"donorflow/internal/analysis"
	"donorflow/internal/cache"
	"donorflow/internal/donorapi"
	"donorflow/internal/sources"
	"donorflow/internal/storage"
)

type stubFetcher struct {
	crm        json.RawMessage
	excel      json.RawMessage
	comparison json.RawMessage
	err        error
}

func (f *stubFetcher) AnalyzeCRM(context.Context) (json.RawMessage, error) {
	return f.crm, f.err
}

func (f *stubFetcher) AnalyzeExcel2025(context.Context) (json.RawMessage, error) {
	return f.excel, f.err
}

func (f *stubFetcher) ComparePeriods(context.Context) (json.RawMessage, error) {
	return f.comparison, f.err
}

type stubAPI struct {
	uploadResult donorapi.UploadResult
	sources      []string
	deleteBody   json.RawMessage
	err          error
}

func (a *stubAPI) UploadExcel(context.Context, []donorapi.UploadFile, string) (donorapi.UploadResult, error) {
	return a.uploadResult, a.err
}

func (a *stubAPI) ListUploadedSources(context.Context) ([]string, error) {
	return a.sources, a.err
}

func (a *stubAPI) DeleteBySource(context.Context, string) (json.RawMessage, error) {
	return a.deleteBody, a.err
}

func (a *stubAPI) DeleteByIstochnik(context.Context, string) (json.RawMessage, error) {
	return a.deleteBody, a.err
}

func (a *stubAPI) ResetAllCRM(context.Context) (json.RawMessage, error) {
	return a.deleteBody, a.err
}

func (a *stubAPI) ResetAllExcel2025(context.Context) (json.RawMessage, error) {
	return a.deleteBody, a.err
}

type stubProfiles struct {
	raw   json.RawMessage
	err   error
	calls int
}

func (p *stubProfiles) DonorProfile(context.Context, string) (json.RawMessage, error) {
	p.calls++
	return p.raw, p.err
}

func newTestServer(t *testing.T, fetcher analysis.Fetcher, api *stubAPI, profiles ProfileAPI) *Server {
	t.Helper()

	store := storage.NewMemoryStore()
	ctrl := analysis.NewController(context.Background(), fetcher, cache.NewResultCache(store), nil)
	svc := sources.NewService(api, store, nil)

	srv := NewServer(":0", Deps{Controller: ctrl, Sources: svc, Profiles: profiles})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func do(srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	for _, path := range []string{"/healthz", "/readyz"} {
		if w := do(srv, http.MethodGet, path, nil); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestAnalysisStateAndFetch(t *testing.T) {
	fetcher := &stubFetcher{crm: json.RawMessage(`{"ai_analysis":"crm text"}`)}
	srv := newTestServer(t, fetcher, &stubAPI{}, &stubProfiles{})

	w := do(srv, http.MethodPost, "/api/analysis/crm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/analysis/crm = %d, body %s", w.Code, w.Body)
	}

	var snap analysis.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if string(snap.Results[analysis.KindCRM]) != `{"ai_analysis":"crm text"}` {
		t.Errorf("Results[crm] = %s", snap.Results[analysis.KindCRM])
	}

	w = do(srv, http.MethodGet, "/api/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/analysis = %d", w.Code)
	}
}

func TestAnalysisFetchFailureStaysInSnapshot(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("backend kaput")}
	srv := newTestServer(t, fetcher, &stubAPI{}, &stubProfiles{})

	w := do(srv, http.MethodPost, "/api/analysis/crm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/analysis/crm = %d, failures are reported in the snapshot", w.Code)
	}

	var snap analysis.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.LastError == "" {
		t.Error("LastError is empty after failed fetch")
	}
}

func TestAnalysisFetchUnknownKind(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	if w := do(srv, http.MethodPost, "/api/analysis/bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("POST /api/analysis/bogus = %d, want 400", w.Code)
	}
	if w := do(srv, http.MethodPost, "/api/analysis/reset/bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("POST /api/analysis/reset/bogus = %d, want 400", w.Code)
	}
}

func TestAnalysisTabValidation(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	if w := do(srv, http.MethodPut, "/api/analysis/tab", []byte(`{"tab":2}`)); w.Code != http.StatusOK {
		t.Errorf("PUT tab=2 = %d, want 200", w.Code)
	}
	if w := do(srv, http.MethodPut, "/api/analysis/tab", []byte(`{"tab":7}`)); w.Code != http.StatusBadRequest {
		t.Errorf("PUT tab=7 = %d, want 400", w.Code)
	}
	if w := do(srv, http.MethodPut, "/api/analysis/tab", []byte(`not json`)); w.Code != http.StatusBadRequest {
		t.Errorf("PUT tab with bad body = %d, want 400", w.Code)
	}
}

func TestDonorProfileNormalizesAndCaches(t *testing.T) {
	profiles := &stubProfiles{raw: json.RawMessage(`{
		"user_info": {"city": "Almaty"},
		"transactions": [{"Дата": "15.03.2024", "Сумма": 100}]
	}`)}
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, profiles)

	w := do(srv, http.MethodGet, "/api/crm/donator_profile?key=Иванов", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET donator_profile = %d, body %s", w.Code, w.Body)
	}

	var got struct {
		MonthlyTotals map[string]float64 `json:"monthly_totals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if got.MonthlyTotals["Март"] != 100 {
		t.Errorf("monthly_totals[Март] = %v, want 100", got.MonthlyTotals["Март"])
	}
	// A donor with resolved months gets exactly those, nothing synthetic.
	if _, ok := got.MonthlyTotals["Январь"]; ok {
		t.Errorf("monthly_totals = %v, synthetic Январь must not appear next to real months", got.MonthlyTotals)
	}
	if len(got.MonthlyTotals) != 1 {
		t.Errorf("monthly_totals = %v, want only Март", got.MonthlyTotals)
	}

	// Second request is served from the cache.
	if w := do(srv, http.MethodGet, "/api/crm/donator_profile?key=Иванов", nil); w.Code != http.StatusOK {
		t.Fatalf("cached GET donator_profile = %d", w.Code)
	}
	if profiles.calls != 1 {
		t.Errorf("backend calls = %d, want 1", profiles.calls)
	}
}

func TestDonorProfileChartSeeding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]float64
	}{
		{
			name: "no transactions",
			raw:  `{"user_info": {}, "transactions": []}`,
			want: map[string]float64{"Январь": 0},
		},
		{
			name: "only unresolvable dates",
			raw:  `{"user_info": {}, "transactions": [{"Дата": "bad-date", "Сумма": "x"}]}`,
			want: map[string]float64{"—": 0, "Январь": 0},
		},
		{
			name: "resolved month stays alone",
			raw:  `{"user_info": {}, "transactions": [{"Дата": "15.03.2024", "Сумма": 100}]}`,
			want: map[string]float64{"Март": 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &stubProfiles{raw: json.RawMessage(tt.raw)}
			srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, profiles)

			w := do(srv, http.MethodGet, "/api/crm/donator_profile?key=x", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("GET donator_profile = %d, body %s", w.Code, w.Body)
			}

			var got struct {
				MonthlyTotals map[string]float64 `json:"monthly_totals"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode profile: %v", err)
			}
			if len(got.MonthlyTotals) != len(tt.want) {
				t.Fatalf("monthly_totals = %v, want %v", got.MonthlyTotals, tt.want)
			}
			for month, sum := range tt.want {
				if v, ok := got.MonthlyTotals[month]; !ok || v != sum {
					t.Errorf("monthly_totals[%s] = %v, %v, want %v", month, v, ok, sum)
				}
			}
		})
	}
}

func TestDonorProfileMissingKey(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	if w := do(srv, http.MethodGet, "/api/crm/donator_profile", nil); w.Code != http.StatusBadRequest {
		t.Errorf("GET donator_profile without key = %d, want 400", w.Code)
	}
}

func TestDonorProfileBackendFailure(t *testing.T) {
	profiles := &stubProfiles{err: errors.New("down")}
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, profiles)

	if w := do(srv, http.MethodGet, "/api/crm/donator_profile?key=x", nil); w.Code != http.StatusBadGateway {
		t.Errorf("GET donator_profile with failing backend = %d, want 502", w.Code)
	}
}

func TestUploadExcel(t *testing.T) {
	api := &stubAPI{uploadResult: donorapi.UploadResult{Message: "ok", Added: 3}}
	srv := newTestServer(t, &stubFetcher{}, api, &stubProfiles{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "jan.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("excel bytes")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("source", "halyk"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/upload_excel", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/upload_excel = %d, body %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"added":3`) {
		t.Errorf("upload response = %s, want added count", w.Body)
	}
}

func TestUploadExcelWithoutFiles(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("source", "halyk"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/upload_excel", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("POST /api/upload_excel without files = %d, want 400", w.Code)
	}
}

func TestDeleteRequiresFilename(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{deleteBody: json.RawMessage(`{}`)}, &stubProfiles{})

	for _, path := range []string{"/api/delete_by_source", "/api/delete_by_istochnik"} {
		if w := do(srv, http.MethodPost, path, []byte(`{}`)); w.Code != http.StatusBadRequest {
			t.Errorf("POST %s without filename = %d, want 400", path, w.Code)
		}
		if w := do(srv, http.MethodPost, path, []byte(`{"filename":"jan.xlsx"}`)); w.Code != http.StatusOK {
			t.Errorf("POST %s = %d, want 200", path, w.Code)
		}
	}
}

func TestResetEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{deleteBody: json.RawMessage(`{"status":"ok"}`)}, &stubProfiles{})

	for _, path := range []string{"/api/reset_all_crm", "/api/reset_all_excel_2025"} {
		if w := do(srv, http.MethodPost, path, nil); w.Code != http.StatusOK {
			t.Errorf("POST %s = %d, want 200", path, w.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubAPI{}, &stubProfiles{})

	w := do(srv, http.MethodGet, "/api/analysis", nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
