package flow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/edflow/edflow/internal/burden"
	"github.com/edflow/edflow/internal/domain/facility"
)

func newTestServer() (*echo.Echo, *Monitor) {
	svc := newTestService(stubLookup{
		"ed-north": {Known: true, AverageWait: ptrFloat(60), LeaveSignalWeight: 1},
	})
	mon := NewMonitor(svc, nil, time.Minute, 2, zerolog.Nop())
	e := echo.New()
	NewHandler(svc, mon).RegisterRoutes(e.Group("/api/v1"))
	return e, mon
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ComputeBurden(t *testing.T) {
	e, _ := newTestServer()
	rec := do(e, http.MethodPost, "/api/v1/burden",
		`{"facility_id":"X","vulnerability_multiplier":1,"estimated_ctas_level":3,"wait_time_minutes":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"burden_curve", "baseline_curve", "burden", "alert_status", "equity_gap_score", "confidence_interval"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %s", key)
		}
	}
	if _, ok := body["disengagement_window_minutes"]; ok {
		t.Error("disengagement_window_minutes should be absent for a quiet patient")
	}

	var res burden.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.AlertStatus != burden.AlertGreen {
		t.Errorf("expected GREEN, got %s", res.AlertStatus)
	}
	first := res.BurdenCurve[0]
	if first.DistressProbability != 0 || first.LWBSProbability != 0 || first.ReturnVisitRisk != 0 {
		t.Errorf("expected zero probabilities at t=0, got %+v", first)
	}
}

func TestHandler_ComputeBurden_Deterministic(t *testing.T) {
	e, _ := newTestServer()
	body := `{"facility_id":"ed-north","profile":{"mobility":true,"language":true},"estimated_ctas_level":2,"wait_time_minutes":95,
		"check_in_responses":[{"discomfort_level":3,"intends_to_stay":true,"timestamp":"2026-03-01T14:00:00Z"}]}`
	first := do(e, http.MethodPost, "/api/v1/burden", body)
	second := do(e, http.MethodPost, "/api/v1/burden", body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("identical requests produced different responses")
	}
}

func TestHandler_ComputeBurden_BadRequest(t *testing.T) {
	e, _ := newTestServer()
	tests := []struct {
		name string
		body string
	}{
		{"ctas out of range", `{"estimated_ctas_level":0,"wait_time_minutes":10}`},
		{"negative wait", `{"estimated_ctas_level":3,"wait_time_minutes":-5}`},
		{"malformed profile", `{"estimated_ctas_level":3,"profile":{"mobility":"yes"}}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/burden", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_EstimateWait(t *testing.T) {
	e, _ := newTestServer()
	rec := do(e, http.MethodPost, "/api/v1/wait-estimate",
		`{"facility_id":"ed-north","vulnerability_multiplier":2,"estimated_ctas_level":3,"wait_time_minutes":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res EstimateWaitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.EstimatedWaitMinutes != 30 {
		t.Errorf("expected 30, got %d", res.EstimatedWaitMinutes)
	}
}

func TestHandler_ResolveVulnerability(t *testing.T) {
	e, _ := newTestServer()
	rec := do(e, http.MethodPost, "/api/v1/vulnerability", `{"profile":{"sensory":true},"vulnerability_multiplier":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res VulnerabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Source != "profile" || res.VulnerabilityMultiplier != 1.5 {
		t.Errorf("unexpected response %+v", res)
	}
}

func TestHandler_WatchLifecycle(t *testing.T) {
	e, mon := newTestServer()

	rec := do(e, http.MethodPost, "/api/v1/watches",
		`{"facility_id":"ed-north","vulnerability_multiplier":1,"estimated_ctas_level":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var w Watch
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.ID == "" || w.Latest == nil {
		t.Fatalf("expected evaluated watch, got %+v", w)
	}

	rec = do(e, http.MethodGet, "/api/v1/watches/"+w.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/v1/watches/"+w.ID+"/check-ins",
		`{"intends_to_stay":false,"timestamp":"2026-03-01T14:05:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Latest.AlertStatus != burden.AlertRed {
		t.Errorf("expected RED after leave intent, got %s", w.Latest.AlertStatus)
	}

	rec = do(e, http.MethodGet, "/api/v1/watches?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data  []Watch `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || len(page.Data) != 1 {
		t.Errorf("expected one watch, got %+v", page)
	}

	rec = do(e, http.MethodDelete, "/api/v1/watches/"+w.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(mon.List()) != 0 {
		t.Error("expected watch to be removed")
	}
}

func TestHandler_WatchNotFound(t *testing.T) {
	e, _ := newTestServer()
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/watches/nope", ""},
		{http.MethodDelete, "/api/v1/watches/nope", ""},
		{http.MethodPost, "/api/v1/watches/nope/check-ins", `{"timestamp":"2026-03-01T14:05:00Z"}`},
	} {
		rec := do(e, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestHandler_CreateWatch_BadRequest(t *testing.T) {
	e, _ := newTestServer()
	rec := do(e, http.MethodPost, "/api/v1/watches", `{"facility_id":"ed-north","estimated_ctas_level":8}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

var _ FacilityLookup = (*facility.Service)(nil)
