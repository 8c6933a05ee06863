package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tenant-guardian/backend/internal/ai"
	"tenant-guardian/backend/internal/state"
	"tenant-guardian/backend/internal/store"
)

const sampleAssessment = `{
  "riskScore": 72,
  "verdict": "CAUTION",
  "verdictColor": "YELLOW",
  "summary": "RISK: Medium. FLAGS: price. VERIFIED: address.",
  "geoLog": {"status": "PASS", "details": "Address exists."},
  "priceLog": {"status": "MODERATE_RISK", "details": "20% below median."},
  "textLog": {"status": "CLEAR", "details": "No pressure tactics."},
  "photoLog": {"integrityScore": 8, "details": "Looks original."},
  "ownershipLog": {"status": "UNKNOWN", "details": "No owner given."},
  "actionableSteps": ["Visit in person"]
}`

type fakeModel struct {
	mu        sync.Mutex
	reply     string
	err       error
	fragments []string
	streamErr error
	requests  []ai.Request
}

func (m *fakeModel) Enabled() bool { return true }

func (m *fakeModel) Generate(_ context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.reply, m.err
}

func (m *fakeModel) Stream(_ context.Context, req ai.Request) (*ai.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	fragments := append([]string(nil), m.fragments...)
	streamErr := m.streamErr
	idx := 0
	return ai.NewStream(func() (string, error) {
		if idx < len(fragments) {
			idx++
			return fragments[idx-1], nil
		}
		if streamErr != nil {
			return "", streamErr
		}
		return "", io.EOF
	}, nil), nil
}

func (m *fakeModel) lastRequest() ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type testEnv struct {
	router *gin.Engine
	model  *fakeModel
	state  *state.Store
}

func newTestEnv(t *testing.T, model *fakeModel, signedIn bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"), true)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st, err := state.Load(context.Background(), db, state.DefaultCredentials())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if signedIn {
		if err := st.Login(context.Background(), "user@tenantguardian.ai", "password"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}

	server, err := NewServer(Config{
		Service:       ai.NewService(model),
		State:         st,
		History:       db,
		AnalysisModel: "gemini-2.5-flash",
		ChatModel:     "gemini-3-pro-preview",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &testEnv{router: router, model: model, state: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func sampleRequest() AnalyzeRequest {
	median := 30000.0
	return AnalyzeRequest{
		Title:       "2BHK near metro",
		Description: "Owner abroad, pay deposit by wire transfer.",
		Address:     "12 MG Road, Bengaluru",
		Price:       24000,
		Sqft:        900,
		MedianPrice: &median,
		Language:    "French",
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, false)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/profile"},
		{http.MethodPost, "/api/analyze"},
		{http.MethodGet, "/api/assessments"},
		{http.MethodGet, "/api/geocode?lat=1&lng=2"},
		{http.MethodPost, "/api/chat"},
	}
	for _, tc := range paths {
		t.Run(tc.path, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", rec.Code)
			}
		})
	}

	if rec := env.do(t, http.MethodGet, "/api/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected public healthz got %d", rec.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, false)

	rec := env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: "user@tenantguardian.ai", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	var errBody map[string]string
	decodeBody(t, rec, &errBody)
	if errBody["error"] != "Invalid credentials provided." {
		t.Fatalf("unexpected error message %q", errBody["error"])
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: "user@tenantguardian.ai", Password: "password"})
	var status AuthStatus
	decodeBody(t, rec, &status)
	if rec.Code != http.StatusOK || !status.Authenticated || status.Profile == nil {
		t.Fatalf("expected signed in got %d %+v", rec.Code, status)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil)
	decodeBody(t, rec, &status)
	if status.Authenticated || env.state.Authenticated() {
		t.Fatalf("expected signed out")
	}
}

func TestGoogleLogin(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, false)

	if rec := env.do(t, http.MethodPost, "/api/auth/google", GoogleLoginRequest{Email: "stranger@gmail.com"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/auth/google", GoogleLoginRequest{Email: "rahul.s@gmail.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := env.state.Profile().FullName; got != "Rahul Sharma" {
		t.Fatalf("expected Rahul Sharma got %s", got)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, true)

	profile := state.Profile{FullName: "Asha Rao", Email: "asha@example.com", Phone: "98450", Occupation: "Engineer"}
	rec := env.do(t, http.MethodPut, "/api/profile", profile)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}

	var got ProfileResponse
	decodeBody(t, env.do(t, http.MethodGet, "/api/profile", nil), &got)
	if got.Profile != profile {
		t.Fatalf("expected %+v got %+v", profile, got.Profile)
	}
	if got.Completion != 40 {
		t.Fatalf("expected 40 got %d", got.Completion)
	}
}

func TestAnalyzeStoresHistory(t *testing.T) {
	model := &fakeModel{reply: "```json\n" + sampleAssessment + "\n```"}
	env := newTestEnv(t, model, true)

	rec := env.do(t, http.MethodPost, "/api/analyze", sampleRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	decodeBody(t, rec, &resp)
	if resp.RiskScore != 72 || resp.Tier != ai.TierCaution || resp.ID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(model.lastRequest().Parts[0].Text, "French") {
		t.Fatalf("expected French instruction")
	}

	var list AssessmentListResponse
	decodeBody(t, env.do(t, http.MethodGet, "/api/assessments", nil), &list)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != resp.ID {
		t.Fatalf("unexpected history %+v", list)
	}

	var detail AssessmentDTO
	decodeBody(t, env.do(t, http.MethodGet, "/api/assessments/"+resp.ID, nil), &detail)
	if detail.Result == nil || detail.Result.PhotoLog.IntegrityScore != 8 {
		t.Fatalf("expected stored result got %+v", detail.Result)
	}

	if rec := env.do(t, http.MethodGet, "/api/assessments/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestAnalyzeFailures(t *testing.T) {
	userMessage := "Failed to analyze listing. The AI service may be temporarily unavailable or the input was invalid."
	tests := []struct {
		name     string
		model    *fakeModel
		mutate   func(*AnalyzeRequest)
		expected int
	}{
		{"malformed reply", &fakeModel{reply: `{"riskScore": 50}`}, nil, http.StatusBadGateway},
		{"empty reply", &fakeModel{reply: "  "}, nil, http.StatusBadGateway},
		{"transport error", &fakeModel{err: errors.New("dial tcp: refused")}, nil, http.StatusBadGateway},
		{"missing address", &fakeModel{reply: sampleAssessment}, func(r *AnalyzeRequest) { r.Address = "" }, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.model, true)
			req := sampleRequest()
			if tc.mutate != nil {
				tc.mutate(&req)
			}
			rec := env.do(t, http.MethodPost, "/api/analyze", req)
			if rec.Code != tc.expected {
				t.Fatalf("expected %d got %d", tc.expected, rec.Code)
			}
			var body map[string]string
			decodeBody(t, rec, &body)
			if body["error"] != userMessage {
				t.Fatalf("expected user message got %q", body["error"])
			}
		})
	}
}

func TestAnalyzeMultipartPhoto(t *testing.T) {
	model := &fakeModel{reply: sampleAssessment}
	env := newTestEnv(t, model, true)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"title":       "Studio",
		"description": "Sunny studio",
		"address":     "4 Park Street, Kolkata",
		"price":       "15000",
		"sqft":        "420",
	}
	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="room.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG fake"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}

	parts := model.lastRequest().Parts
	if len(parts) != 3 || !parts[2].IsInline() || parts[2].MIMEType != "image/png" {
		t.Fatalf("expected inline png part got %+v", parts)
	}
	if !strings.Contains(parts[1].Text, "Median Area Price: Unknown") {
		t.Fatalf("expected unknown median placeholder")
	}
}

func TestVerifyDocument(t *testing.T) {
	model := &fakeModel{reply: `{"verdict": "Likely Original", "details": "No matches found."}`}
	env := newTestEnv(t, model, true)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="deed.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, _ := writer.CreatePart(header)
	_, _ = part.Write([]byte("jpeg bytes"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/verify", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}
	var result ai.DocumentCheckResult
	decodeBody(t, rec, &result)
	if result.Verdict != "Likely Original" {
		t.Fatalf("unexpected verdict %s", result.Verdict)
	}

	if rec := env.do(t, http.MethodPost, "/api/documents/verify", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file got %d", rec.Code)
	}
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		query    string
		code     int
		expected string
	}{
		{"model answer", &fakeModel{reply: `{"address": "MG Road, Bengaluru", "ownerName": ""}`}, "lat=12.9716&lng=77.5946", http.StatusOK, "MG Road, Bengaluru"},
		{"fallback", &fakeModel{err: errors.New("timeout")}, "lat=12.9716&lng=77.5946", http.StatusOK, "12.9716, 77.5946"},
		{"bad lat", &fakeModel{}, "lat=abc&lng=1", http.StatusBadRequest, ""},
		{"out of range", &fakeModel{}, "lat=91&lng=1", http.StatusBadRequest, ""},
		{"nan lat", &fakeModel{}, "lat=NaN&lng=1", http.StatusBadRequest, ""},
		{"nan lng", &fakeModel{}, "lat=1&lng=nan", http.StatusBadRequest, ""},
		{"infinite lng", &fakeModel{}, "lat=1&lng=-Inf", http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.model, true)
			rec := env.do(t, http.MethodGet, "/api/geocode?"+tc.query, nil)
			if rec.Code != tc.code {
				t.Fatalf("expected %d got %d", tc.code, rec.Code)
			}
			if tc.code != http.StatusOK {
				return
			}
			var details ai.GeoDetails
			decodeBody(t, rec, &details)
			if details.Address != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, details.Address)
			}
		})
	}
}

func TestChatSSE(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		expected []string
		absent   string
	}{
		{
			name:     "complete reply",
			model:    &fakeModel{fragments: []string{"Hel", "lo"}},
			expected: []string{"event:fragment", `"text":"Hel"`, "event:done", `"text":"Hello"`},
			absent:   "event:error",
		},
		{
			name:     "mid-stream failure",
			model:    &fakeModel{fragments: []string{"Par"}, streamErr: errors.New("connection reset")},
			expected: []string{"event:fragment", "event:error", "Sorry, I encountered an error. Please try again."},
			absent:   "event:done",
		},
		{
			name:     "request failure",
			model:    &fakeModel{err: errors.New("503")},
			expected: []string{"event:error", `"isError":true`},
			absent:   "event:fragment",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.model, true)
			rec := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "Is a wire deposit normal?"})
			body := rec.Body.String()
			for _, want := range tc.expected {
				if !strings.Contains(body, want) {
					t.Fatalf("expected %q in %q", want, body)
				}
			}
			if strings.Contains(body, tc.absent) {
				t.Fatalf("did not expect %q in %q", tc.absent, body)
			}
		})
	}

	env := newTestEnv(t, &fakeModel{}, true)
	if rec := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "  "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message got %d", rec.Code)
	}
}

func TestChatWebsocketKeepsHistory(t *testing.T) {
	model := &fakeModel{fragments: []string{"Hel", "lo"}}
	env := newTestEnv(t, model, true)
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/chat/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var event ChatEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if event.Type != "session" || event.SessionID == "" || event.Turn == nil {
		t.Fatalf("unexpected welcome %+v", event)
	}

	readUntilDone := func() string {
		t.Helper()
		for {
			var ev ChatEvent
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("read: %v", err)
			}
			if ev.Type == "done" || ev.Type == "error" {
				return ev.Type
			}
		}
	}

	for _, message := range []string{"first question", "second question"} {
		if err := conn.WriteJSON(chatMessage{Message: message}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := readUntilDone(); got != "done" {
			t.Fatalf("expected done got %s", got)
		}
	}

	history := model.lastRequest().History
	if len(history) != 2 || history[0].Text != "first question" || history[1].Text != "Hello" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestConfigAndStrings(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, false)

	var cfg map[string]any
	decodeBody(t, env.do(t, http.MethodGet, "/api/config", nil), &cfg)
	if cfg["ai_enabled"] != true || cfg["analysis_model"] != "gemini-2.5-flash" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	var payload struct {
		Language string            `json:"language"`
		Strings  map[string]string `json:"strings"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/i18n/spanish", nil), &payload)
	if payload.Language != "Spanish" || payload.Strings["appTitle"] == "" {
		t.Fatalf("unexpected strings payload %+v", payload)
	}
}
