package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avelezco/ledgerbot/internal/entry"
)

func testRecord() entry.Record {
	return entry.Record{
		Kind: entry.KindIncome,
		Fields: map[string]string{
			"category":    "Salary",
			"account":     "Bancolombia",
			"description": "January pay",
		},
		Amount:    1000000,
		CreatedAt: time.Now(),
	}
}

func TestSubmitPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	out := c.Submit(context.Background(), testRecord())
	if out.Status != entry.OutcomeSuccess {
		t.Fatalf("outcome = %+v", out)
	}

	if got["function"] != "addIncome" {
		t.Errorf("function = %v", got["function"])
	}
	if got["category"] != "Salary" || got["account"] != "Bancolombia" || got["description"] != "January pay" {
		t.Errorf("fields = %+v", got)
	}
	// JSON numbers decode as float64.
	if got["amount"] != float64(1000000) {
		t.Errorf("amount = %v", got["amount"])
	}
}

func TestSubmitClassification(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		status  entry.OutcomeStatus
		message string
	}{
		{name: "empty 200", code: 200, body: "", status: entry.OutcomeSuccess},
		{name: "ack ok", code: 200, body: `{"status":"ok"}`, status: entry.OutcomeSuccess},
		{name: "ack error", code: 200, body: `{"status":"error","message":"bad category"}`, status: entry.OutcomeAppError, message: "bad category"},
		{name: "ack error no message", code: 200, body: `{"status":"error"}`, status: entry.OutcomeAppError, message: "ledger rejected the record"},
		{name: "malformed body", code: 200, body: `<html>login required</html>`, status: entry.OutcomeTransportError},
		{name: "server error", code: 500, body: "boom", status: entry.OutcomeAppError, message: "ledger returned HTTP 500"},
		{name: "not found", code: 404, body: "", status: entry.OutcomeAppError, message: "ledger returned HTTP 404"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second)
			out := c.Submit(context.Background(), testRecord())
			if out.Status != tc.status {
				t.Fatalf("status = %s, want %s", out.Status, tc.status)
			}
			if tc.message != "" && out.Message != tc.message {
				t.Fatalf("message = %q, want %q", out.Message, tc.message)
			}
		})
	}
}

func TestSubmitConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := NewClient(srv.URL, time.Second)
	out := c.Submit(context.Background(), testRecord())
	if out.Status != entry.OutcomeTransportError {
		t.Fatalf("status = %s, want transport_error", out.Status)
	}
	if out.Err == nil {
		t.Fatal("expected wrapped error")
	}
}

func TestSubmitSingleAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_ = c.Submit(context.Background(), testRecord())
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1 (no retries)", calls)
	}
}

func TestFunction(t *testing.T) {
	tests := []struct {
		kind entry.Kind
		want string
	}{
		{entry.KindIncome, "addIncome"},
		{entry.KindExpense, "addExpense"},
		{entry.KindSaving, "addSaving"},
		{entry.Kind("loan"), ""},
	}
	for _, tc := range tests {
		if got := Function(tc.kind); got != tc.want {
			t.Errorf("Function(%s) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}
