package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"acctgate/pkg/domain"
)

// defaultCallTimeout bounds one dispatcher round trip.
const defaultCallTimeout = 10 * time.Second

// HTTPCaller dispatches executed transactions to an external dispatcher
// endpoint as a JSON envelope. A non-2xx response is a failed call, which
// the proposal engine turns into a rollback.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCaller builds a caller for the dispatcher endpoint. A nil client
// gets a default with a bounded timeout.
func NewHTTPCaller(endpoint string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = &http.Client{Timeout: defaultCallTimeout}
	}
	return &HTTPCaller{endpoint: endpoint, client: client}
}

type callEnvelope struct {
	Target  domain.Address `json:"target"`
	Value   uint64         `json:"value"`
	Payload string         `json:"payload,omitempty"`
}

func (c *HTTPCaller) Call(ctx context.Context, target domain.Address, value uint64, payload []byte) error {
	body, err := json.Marshal(callEnvelope{
		Target:  target,
		Value:   value,
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return fmt.Errorf("encode call envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatcher returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
