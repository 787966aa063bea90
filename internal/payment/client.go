package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"drawwin/internal/apperr"
)

// Client talks to the payment processor's REST API. The service never
// handles card data itself; it only creates orders and verifies captures.
type Client struct {
	ShopID     string
	SecretKey  string
	APIURL     string
	HTTPClient *http.Client
}

func NewClient(shopID, secretKey, apiURL string) *Client {
	return &Client{
		ShopID:    shopID,
		SecretKey: secretKey,
		APIURL:    apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) doRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", c.APIURL, endpoint), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Idempotence key: retried creates must not double-charge.
	req.Header.Set("Idempotence-Key", uuid.New().String())
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.ShopID, c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "processor_unreachable", "payment processor request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, apperr.Wrap(apperr.KindExternal, "processor_error",
			fmt.Sprintf("payment processor returned status %d", resp.StatusCode),
			fmt.Errorf("%s", string(respBody)))
	}

	return respBody, nil
}

// CreateOrder opens a capture-on-confirm order for the fixed entry fee and
// returns the redirect the member must complete.
func (c *Client) CreateOrder(amount, currency, description, returnURL string, metadata map[string]string) (*OrderResponse, error) {
	reqBody := CreateOrderRequest{
		Amount: Amount{
			Value:    amount,
			Currency: currency,
		},
		Capture: true,
		Confirmation: Confirmation{
			Type:      "redirect",
			ReturnURL: returnURL,
		},
		Description: description,
		Metadata:    metadata,
	}

	respBody, err := c.doRequest("POST", "/payments", reqBody)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &order, nil
}

// VerifyPayment fetches the order and reports whether the processor shows a
// completed capture. The caller still has to check amount and currency
// against the fixed fee.
func (c *Client) VerifyPayment(orderID string) (*ConfirmedPayment, error) {
	respBody, err := c.doRequest("GET", fmt.Sprintf("/payments/%s", orderID), nil)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !order.Paid || order.Status != "succeeded" {
		return nil, apperr.New(apperr.KindExternal, "payment_not_confirmed", "payment is not confirmed by the processor")
	}

	return &ConfirmedPayment{
		OrderID:  order.ID,
		Amount:   order.Amount.Value,
		Currency: order.Amount.Currency,
	}, nil
}
