// Package gateway talks to the hosted payment gateway: order creation over
// its REST API and verification of the signed browser callback.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type OrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// KeyID is the public key the browser widget is initialised with.
func (c *Client) KeyID() string { return c.cfg.KeyID }

// CreateOrder registers a payment intent with the gateway. Any failure is
// returned as *UnavailableError; nothing is retried here.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	const op = "create_order"
	body, err := json.Marshal(req)
	if err != nil {
		return Order{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, &UnavailableError{Op: op, Err: err}
	}
	hreq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return Order{}, &UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Order{}, &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(gatewayMessage(raw))}
	}

	var out Order
	if err := json.Unmarshal(raw, &out); err != nil {
		return Order{}, &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode order: %w", err)}
	}
	if out.ID == "" {
		return Order{}, &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("order id missing in response")}
	}
	return out, nil
}

// gatewayMessage pulls error.description out of an error body when present.
func gatewayMessage(raw []byte) string {
	var e struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Description != "" {
		return e.Error.Code + ": " + e.Error.Description
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return strings.TrimSpace(string(raw))
}
