package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type testSeat struct {
	SessionID string `json:"gameId"`
	JoinCode  string `json:"passcode"`
	PlayerID  string `json:"playerId"`
	Token     string `json:"token"`
}

func createSession(t *testing.T, ts *httptest.Server, code, name string) testSeat {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions", map[string]string{
		"passcode":  code,
		"username":  name,
		"accountId": "acct-" + name,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	return decodeSeat(t, resp)
}

func joinSession(t *testing.T, ts *httptest.Server, code, name string) testSeat {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions/"+code+"/join", map[string]string{
		"username": name,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeSeat(t, resp)
}

func startSession(t *testing.T, ts *httptest.Server, seat testSeat) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions/"+seat.JoinCode+"/start", map[string]string{
		"playerId": seat.PlayerID,
		"token":    seat.Token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func decodeSeat(t *testing.T, resp *http.Response) testSeat {
	t.Helper()
	var seat testSeat
	if err := json.NewDecoder(resp.Body).Decode(&seat); err != nil {
		t.Fatalf("decode seat: %v", err)
	}
	if seat.SessionID == "" || seat.PlayerID == "" || seat.Token == "" {
		t.Fatalf("incomplete seat %+v", seat)
	}
	return seat
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectError(t *testing.T, resp *http.Response, status int, message string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if message != "" && body["error"] != message {
		t.Fatalf("expected error %q, got %v", message, body["error"])
	}
}
