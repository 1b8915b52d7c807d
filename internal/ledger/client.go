// Package ledger submits completed transaction records to the external
// service of record (an Apps Script-style HTTP endpoint).
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avelezco/ledgerbot/core/logger"
	"github.com/avelezco/ledgerbot/internal/entry"
	"log/slog"
)

// Operation discriminators fixed by the ledger endpoint's contract.
const (
	functionAddIncome  = "addIncome"
	functionAddExpense = "addExpense"
	functionAddSaving  = "addSaving"
)

const maxResponseBytes = 1 << 20

// Client performs one outbound call per completed record. It never retries:
// the endpoint has no idempotency key, so a retry can double-record.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a client for the configured ledger endpoint. The HTTP
// client is deliberately plain (no retrying transport).
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Function maps a transaction kind to the endpoint's operation discriminator.
func Function(kind entry.Kind) string {
	switch kind {
	case entry.KindIncome:
		return functionAddIncome
	case entry.KindExpense:
		return functionAddExpense
	case entry.KindSaving:
		return functionAddSaving
	}
	return ""
}

// ack is the structured acknowledgement some deployments of the endpoint
// return; older ones answer with an empty 200.
type ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit posts the record as a JSON body and classifies the result.
func (c *Client) Submit(ctx context.Context, rec entry.Record) entry.Outcome {
	fn := Function(rec.Kind)
	if fn == "" {
		return entry.Outcome{
			Status:  entry.OutcomeTransportError,
			Message: fmt.Sprintf("unknown transaction kind %q", rec.Kind),
		}
	}

	payload := make(map[string]any, len(rec.Fields)+2)
	payload["function"] = fn
	for k, v := range rec.Fields {
		payload[k] = v
	}
	payload["amount"] = rec.Amount

	body, err := json.Marshal(payload)
	if err != nil {
		return transportError(ctx, fn, "encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return transportError(ctx, fn, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, fn, "post", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, fn, "read response", err)
	}

	outcome := classify(resp.StatusCode, respBody)
	logger.Info(ctx, "ledger", "submit",
		slog.String("function", fn),
		slog.Int64("amount", rec.Amount),
		slog.String("outcome", string(outcome.Status)),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)
	return outcome
}

// classify maps the transport status and acknowledgement body onto the
// outcome taxonomy. Anything unclassifiable is a transport error: the
// client never silently assumes success.
func classify(statusCode int, body []byte) entry.Outcome {
	if statusCode < 200 || statusCode > 299 {
		return entry.Outcome{
			Status:  entry.OutcomeAppError,
			Message: fmt.Sprintf("ledger returned HTTP %d", statusCode),
		}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return entry.Outcome{Status: entry.OutcomeSuccess}
	}

	var a ack
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil {
		return entry.Outcome{
			Status:  entry.OutcomeTransportError,
			Message: "malformed response body",
			Err:     err,
		}
	}
	if strings.EqualFold(a.Status, "error") {
		msg := a.Message
		if msg == "" {
			msg = "ledger rejected the record"
		}
		return entry.Outcome{Status: entry.OutcomeAppError, Message: msg}
	}
	return entry.Outcome{Status: entry.OutcomeSuccess}
}

func transportError(ctx context.Context, fn, op string, err error) entry.Outcome {
	logger.Error(ctx, "ledger", "submit",
		slog.String("function", fn),
		slog.String("outcome", string(entry.OutcomeTransportError)),
		slog.String("cause", op),
		slog.String("err", err.Error()),
	)
	return entry.Outcome{
		Status:  entry.OutcomeTransportError,
		Message: op + " failed",
		Err:     err,
	}
}
