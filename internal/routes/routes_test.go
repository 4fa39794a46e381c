package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/bcrypt"

	"igx_tracker/internal/config"
	"igx_tracker/internal/controllers"
	"igx_tracker/internal/ingest"
	"igx_tracker/internal/middleware"
	"igx_tracker/internal/protocol"
	"igx_tracker/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func frameFor(imei, seq, lat string) string {
	return protocol.BuildFrame(strings.Join([]string{
		"IGX", "1.0", imei, seq, "250101", "120000",
		lat, "N", "01131.000", "E",
		"12.34", "90", "520.55", "2", "9", "0.95", "12345.67", "55.55", "12.64",
		"0003", "",
	}, ","))
}

type testAPI struct {
	router *gin.Engine
	store  *store.MemStore
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	middleware.SetSecret("routes-test")
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	ms := store.NewMemStore()
	hub := controllers.NewPositionHub()
	t.Cleanup(hub.Close)
	h := &controllers.Handler{
		Store:    ms,
		Pipeline: ingest.New(ms, ms, ingest.WithPublisher(hub)),
		Auth:     config.AuthConfig{AdminUser: "admin", AdminPasswordHash: string(hash)},
		Hub:      hub,
	}
	api := &testAPI{router: SetupRouter(h), store: ms}

	w := api.do(t, http.MethodPost, "/auth/login", "application/json", `{"username":"admin","password":"hunter2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct{ Token string }
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login body: %s", w.Body.String())
	}
	api.token = resp.Token
	return api
}

func (a *testAPI) do(t *testing.T, method, path, contentType, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return a.doRaw(t, method, path, contentType, []byte(body), headers)
}

func (a *testAPI) doRaw(t *testing.T, method, path, contentType string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestLogin_BadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""
	w := api.do(t, http.MethodPost, "/auth/login", "application/json", `{"username":"admin","password":"nope"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	w = api.do(t, http.MethodGet, "/admin/devices", "", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated admin call: %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, http.MethodGet, "/healthz", "", "", nil); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
	api.do(t, http.MethodPost, "/admin/frames", "text/plain", frameFor("111", "1", "4807.038"), nil)
	w := api.do(t, http.MethodGet, "/metrics", "", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "igx_frames_total") {
		t.Errorf("metrics missing ingest counters")
	}
}

func TestIngestFrame(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/admin/frames", "text/plain", frameFor("111", "1", "4807.038"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("accepted frame: %d %s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/admin/frames", "text/plain", frameFor("111", "2", "9100.000"), nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid frame: %d %s", w.Code, w.Body.String())
	}
	body := decode[map[string]any](t, w)
	if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "lat: ") {
		t.Errorf("error = %v", body["error"])
	}

	if w := api.do(t, http.MethodPost, "/admin/frames", "text/plain", "  ", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty body: %d", w.Code)
	}
}

func TestIngestBulk_Encodings(t *testing.T) {
	blob := strings.Join([]string{
		frameFor("222", "1", "4807.038"),
		"$IGY,bad*00",
		"",
		frameFor("222", "2", "4807.038"),
		frameFor("222", "3", "4807.038"),
		"garbage",
	}, "\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(blob))
	zw.Close()

	jsonBody, _ := json.Marshal(map[string]string{"data": blob})

	cases := []struct {
		name        string
		contentType string
		body        []byte
		headers     map[string]string
	}{
		{"text", "text/plain", []byte(blob), nil},
		{"form", "application/x-www-form-urlencoded", []byte(url.Values{"data": {blob}}.Encode()), nil},
		{"json", "application/json", jsonBody, nil},
		{"gzip", "text/plain", gz.Bytes(), map[string]string{"Content-Encoding": "gzip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t)
			w := api.doRaw(t, http.MethodPost, "/admin/frames/bulk", tc.contentType, tc.body, tc.headers)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d %s", w.Code, w.Body.String())
			}
			got := decode[struct {
				BatchID  string `json:"batch_id"`
				Total    int    `json:"total"`
				Accepted int    `json:"accepted"`
				Rejected int    `json:"rejected"`
				Message  string `json:"message"`
			}](t, w)
			if got.Total != 5 || got.Accepted != 3 || got.Rejected != 2 || got.BatchID == "" {
				t.Errorf("summary = %+v", got)
			}
			if got.Message != "Processed 5 frames: 3 OK, 2 errors" {
				t.Errorf("message = %q", got.Message)
			}
		})
	}
}

func TestIngestBulk_NoData(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/admin/frames/bulk", "application/json", `{"data":"  \n"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	w = api.do(t, http.MethodPost, "/admin/frames/bulk", "text/plain", "x", map[string]string{"Content-Encoding": "gzip"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("corrupt gzip: %d", w.Code)
	}
}

func TestQueriesAndDevices(t *testing.T) {
	api := newTestAPI(t)
	for i, lat := range []string{"4807.038", "4807.100", "9100.000"} {
		api.do(t, http.MethodPost, "/admin/frames", "text/plain", frameFor("333", fmt.Sprint(i+1), lat), nil)
	}

	w := api.do(t, http.MethodGet, "/admin/frames?processed=false", "", "", nil)
	if frames := decode[[]map[string]any](t, w); len(frames) != 1 {
		t.Errorf("unprocessed frames = %d", len(frames))
	}
	if w := api.do(t, http.MethodGet, "/admin/frames?processed=maybe", "", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter: %d", w.Code)
	}
	if w := api.do(t, http.MethodGet, "/admin/frames/999", "", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing frame: %d", w.Code)
	}

	devices := decode[[]struct {
		ID   uint   `json:"ID"`
		IMEI string `json:"imei"`
	}](t, api.do(t, http.MethodGet, "/admin/devices", "", "", nil))
	if len(devices) != 1 || devices[0].IMEI != "333" {
		t.Fatalf("devices = %+v", devices)
	}
	id := devices[0].ID

	w = api.do(t, http.MethodPatch, fmt.Sprintf("/admin/devices/%d", id), "application/json", `{"alias":"Truck 7"}`, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Truck 7") {
		t.Errorf("alias: %d %s", w.Code, w.Body.String())
	}
	if w := api.do(t, http.MethodPatch, "/admin/devices/999", "application/json", `{"alias":"x"}`, nil); w.Code != http.StatusNotFound {
		t.Errorf("alias on missing device: %d", w.Code)
	}

	positions := decode[[]map[string]any](t, api.do(t, http.MethodGet, fmt.Sprintf("/admin/positions?device_id=%d", id), "", "", nil))
	if len(positions) != 2 {
		t.Errorf("positions = %d", len(positions))
	}

	w = api.do(t, http.MethodGet, fmt.Sprintf("/admin/devices/%d/track", id), "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("track: %d %s", w.Code, w.Body.String())
	}
	track := decode[struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}](t, w)
	if track.Type != "Feature" || track.Geometry.Type != "LineString" || len(track.Geometry.Coordinates) != 2 {
		t.Errorf("track = %+v", track)
	}
	if track.Properties["name"] != "Truck 7" {
		t.Errorf("track name = %v", track.Properties["name"])
	}

	logs := decode[[]map[string]any](t, api.do(t, http.MethodGet, "/admin/logs?limit=10", "", "", nil))
	if len(logs) != 1 {
		t.Errorf("logs = %d", len(logs))
	}
}
