package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estate-agent/config"
	apperrors "estate-agent/errors"
	"estate-agent/web/types"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		GeminiAPIKey:         "test-key",
		GeminiModel:          "gemini-test",
		GeminiBaseURL:        baseURL,
		GeminiRequestTimeout: 5 * time.Second,
		MaxRetries:           3,
		RetryDelaySeconds:    5 * time.Millisecond,
		BackoffMaxSeconds:    20 * time.Millisecond,
		BackoffJitterRatio:   0.1,
	}
}

func TestGenerateContentSuccess(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var gotReq GenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("request path = %v, want /models/gemini-test:generateContent", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param = %v, want test-key", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			Candidates: []Candidate{{
				Content: Content{Role: "model", Parts: []Part{{Text: "Here are "}, {Text: "two options."}}},
				GroundingMetadata: &GroundingMetadata{
					GroundingChunks: []GroundingChunk{
						{Maps: &MapsChunk{Title: "Riverview Lofts", URI: "https://maps.example/riverview"}},
					},
				},
			}},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logger)
	defer client.httpClient.CloseIdleConnections()

	loc := &types.LatLng{Latitude: 37.8, Longitude: -122.27}
	resp, err := client.GenerateContent(context.Background(),
		"system text", []Content{{Role: "user", Parts: []Part{{Text: "lofts near the river"}}}}, loc)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}

	if got := JoinParts(resp); got != "Here are two options." {
		t.Errorf("JoinParts() = %q, want %q", got, "Here are two options.")
	}
	if got := len(Chunks(resp)); got != 1 {
		t.Errorf("len(Chunks()) = %v, want 1", got)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "system text" {
		t.Errorf("request systemInstruction = %+v, want system text part", gotReq.SystemInstruction)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].GoogleMaps == nil {
		t.Errorf("request tools = %+v, want single googleMaps tool", gotReq.Tools)
	}
	if gotReq.ToolConfig == nil || gotReq.ToolConfig.RetrievalConfig == nil ||
		gotReq.ToolConfig.RetrievalConfig.LatLng == nil ||
		gotReq.ToolConfig.RetrievalConfig.LatLng.Latitude != 37.8 {
		t.Errorf("request toolConfig = %+v, want latLng 37.8", gotReq.ToolConfig)
	}
}

func TestGenerateContentOmitsLocationWhenAbsent(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var gotReq GenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(GenerateResponse{
			Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: "ok"}}}}},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logger)
	defer client.httpClient.CloseIdleConnections()

	if _, err := client.GenerateContent(context.Background(), "sys", nil, nil); err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if gotReq.ToolConfig != nil {
		t.Errorf("request toolConfig = %+v, want nil without a location hint", gotReq.ToolConfig)
	}
}

func TestGenerateContentRetriesOnBusy(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: "recovered"}}}}},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logger)
	defer client.httpClient.CloseIdleConnections()

	resp, err := client.GenerateContent(context.Background(), "sys",
		[]Content{{Role: "user", Parts: []Part{{Text: "hi"}}}}, nil)
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %v, want 3", attempts)
	}
	if got := JoinParts(resp); got != "recovered" {
		t.Errorf("JoinParts() = %q, want %q", got, "recovered")
	}
}

func TestGenerateContentErrorEnvelope(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerateResponse{
			Error: &APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad request"},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logger)
	defer client.httpClient.CloseIdleConnections()

	_, err := client.GenerateContent(context.Background(), "sys",
		[]Content{{Role: "user", Parts: []Part{{Text: "hi"}}}}, nil)
	if err == nil {
		t.Fatal("GenerateContent() error = nil, want provider error")
	}
	if !apperrors.IsProviderCommunication(err) {
		t.Errorf("IsProviderCommunication(%v) = false, want true", err)
	}
}

func TestGenerateContentNonOKStatus(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logger)
	defer client.httpClient.CloseIdleConnections()

	_, err := client.GenerateContent(context.Background(), "sys",
		[]Content{{Role: "user", Parts: []Part{{Text: "hi"}}}}, nil)
	if err == nil {
		t.Fatal("GenerateContent() error = nil, want status error")
	}
	if !apperrors.IsProviderCommunication(err) {
		t.Errorf("IsProviderCommunication(%v) = false, want true", err)
	}
}
