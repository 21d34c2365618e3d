package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/kiosk"
	"github.com/kozaktomas/attendance/internal/verify"
)

// fakeKiosk is a Kiosk whose answers are set by the test
type fakeKiosk struct {
	mu         sync.Mutex
	status     kiosk.Status
	frame      camera.Frame
	hasFrame   bool
	submitErr  error
	scanErr    error
	submitted  []string
	scanCalls  int
	broadcasts kiosk.Broadcaster
}

func newFakeKiosk() *fakeKiosk {
	return &fakeKiosk{status: kiosk.Status{Phase: verify.PhaseIdle, Message: "Waiting for student...", Required: 5}}
}

func (f *fakeKiosk) Status() kiosk.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeKiosk) Events() *kiosk.Broadcaster {
	return &f.broadcasts
}

func (f *fakeKiosk) LatestFrame() (camera.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.hasFrame
}

func (f *fakeKiosk) SubmitIdentifier(ctx context.Context, identifier string) (kiosk.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, identifier)
	if f.submitErr != nil {
		return f.status, f.submitErr
	}
	f.status.Phase = verify.PhaseIdentified
	f.status.RegistrationNumber = identifier
	f.status.Message = "Student loaded. Starting live recognition..."
	return f.status, nil
}

func (f *fakeKiosk) StartScan(ctx context.Context) (kiosk.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if f.scanErr != nil {
		return f.status, f.scanErr
	}
	f.status.Scanning = true
	f.status.Message = "Scanning QR... (hold code in front of camera)"
	return f.status, nil
}

var _ Kiosk = (*fakeKiosk)(nil)

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
