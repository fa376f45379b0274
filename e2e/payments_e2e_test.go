//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultGatewayHTTPBase = "http://localhost:48080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func merchantUID() string {
	if uid := os.Getenv("GATEWAY_E2E_MERCHANT_UID"); uid != "" {
		return uid
	}
	return "e2e-merchant"
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestGatewayE2E(t *testing.T) {
	httpBase := os.Getenv("GATEWAY_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultGatewayHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)

	t.Run("Health", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("PayinRejectsBadBody", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/payin/"+merchantUID(), map[string]any{
			"amount": "0", "currency": "PKR", "method": "easypaisa",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for zero amount, got %d", resp.StatusCode)
		}
	})

	t.Run("PayinUnknownMerchant", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/payin/no-such-merchant", map[string]any{
			"amount": "500.00", "currency": "PKR", "method": "easypaisa", "msisdn": "03001234567",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("PayinAndInquiryRoundTrip", func(t *testing.T) {
		orderID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
		resp, body := client.doJSON(t, http.MethodPost, "/payin/"+merchantUID(), map[string]any{
			"amount":   "500.00",
			"currency": "PKR",
			"method":   "easypaisa",
			"msisdn":   "03001234567",
			"order_id": orderID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, body)
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		var tx struct {
			TransactionID string `json:"transaction_id"`
			Status        string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			t.Fatalf("unmarshal data failed: %v", err)
		}
		if tx.TransactionID == "" {
			t.Fatalf("missing transaction id: %s", body)
		}

		resp, body = client.doJSON(t, http.MethodGet, "/status-inquiry/payin?ref="+tx.TransactionID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("PayoutBelowMinimum", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/payout/"+merchantUID(), map[string]any{
			"amount":   "1.00",
			"currency": "PKR",
			"account":  "03001234567",
			"method":   "jazzcash",
			"order_id": fmt.Sprintf("e2e-po-%d", time.Now().UnixNano()),
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for below-minimum payout, got %d", resp.StatusCode)
		}
	})

	t.Run("InquiryRequiresRef", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/status-inquiry/payout", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing ref, got %d", resp.StatusCode)
		}
	})
}
