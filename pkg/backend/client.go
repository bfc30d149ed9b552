package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

const (
	defaultSellerSubOrdersPath       = "/suborders/seller/my-sales"
	defaultBuyerSubOrdersPath        = "/suborders/buyer/my-orders"
	defaultTimeout                   = 10 * time.Second
	errorBodyReadLimit         int64 = 16 << 10
	responseBodyReadLimit      int64 = 8 << 20
)

// Fallback messages used when the backend rejects a call without saying why.
const (
	MsgFetchFailed          = "Failed to load orders"
	MsgUpdateStatusFailed   = "Failed to update item status"
	MsgCancelFailed         = "Failed to cancel item"
	MsgAddTrackingFailed    = "Failed to add tracking number"
	MsgConfirmPaymentFailed = "Failed to confirm payment collection"
)

var errBaseURLRequired = errors.New("backend base url is required")

// Client talks to the marketplace REST API on behalf of a dashboard user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sellerPath string
	buyerPath  string
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithSubOrderPaths overrides the my-suborders endpoints for each side of the marketplace.
func WithSubOrderPaths(sellerPath, buyerPath string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(sellerPath); trimmed != "" {
			c.sellerPath = trimmed
		}
		if trimmed := strings.TrimSpace(buyerPath); trimmed != "" {
			c.buyerPath = trimmed
		}
	}
}

// WithLogger reports skipped records.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		sellerPath: defaultSellerSubOrdersPath,
		buyerPath:  defaultBuyerSubOrdersPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// ListSubOrders returns every suborder visible to the actor that matches the filters.
// Records that fail to decode are skipped.
func (c *Client) ListSubOrders(ctx context.Context, actor orders.Actor, filters orders.Filters) ([]orders.SubOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	path := c.sellerPath
	if actor.Kind == enums.ActorKindBuyer {
		path = c.buyerPath
	}
	endpoint := c.buildURL(path)
	if query := filters.Query().Encode(); query != "" {
		endpoint += "?" + query
	}

	body, err := c.do(ctx, actor, http.MethodGet, endpoint, nil, MsgFetchFailed)
	if err != nil {
		return nil, err
	}

	records, err := recordsFromBody(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode suborders response")
	}

	out := make([]orders.SubOrder, 0, len(records))
	for i, record := range records {
		var sub orders.SubOrder
		if err := json.Unmarshal(record, &sub); err != nil {
			if c.logg != nil {
				ctx := c.logg.WithField(ctx, "record_index", i)
				c.logg.Warn(ctx, fmt.Sprintf("skipping malformed suborder: %v", err))
			}
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// UpdateItemStatus sends a line item to a new wire status. The returned suborder is nil
// when the backend did not echo one back.
func (c *Client) UpdateItemStatus(ctx context.Context, actor orders.Actor, orderID, itemID string, status enums.LineItemStatus, trackingNumber string) (*orders.SubOrder, error) {
	payload := struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"trackingNumber,omitempty"`
	}{
		Status:         status.String(),
		TrackingNumber: strings.TrimSpace(trackingNumber),
	}
	return c.patchItem(ctx, actor, c.itemURL(orderID, itemID, "status"), payload, MsgUpdateStatusFailed)
}

// CancelItem cancels a single line item.
func (c *Client) CancelItem(ctx context.Context, actor orders.Actor, orderID, itemID, reason string) (*orders.SubOrder, error) {
	payload := struct {
		CancellationReason string `json:"cancellationReason"`
	}{CancellationReason: reason}
	return c.patchItem(ctx, actor, c.itemURL(orderID, itemID, "cancel"), payload, MsgCancelFailed)
}

// ConfirmPaymentCollection marks the cash for a delivered item as collected.
func (c *Client) ConfirmPaymentCollection(ctx context.Context, actor orders.Actor, orderID, itemID string) (*orders.SubOrder, error) {
	return c.patchItem(ctx, actor, c.itemURL(orderID, itemID, "payment-collection"), struct{}{}, MsgConfirmPaymentFailed)
}

// AddTracking attaches a tracking number to the whole parent order.
func (c *Client) AddTracking(ctx context.Context, actor orders.Actor, orderID, trackingNumber string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}
	payload := struct {
		TrackingNumber string `json:"trackingNumber"`
	}{TrackingNumber: trackingNumber}
	endpoint := c.buildURL(fmt.Sprintf("/orders/%s/tracking", url.PathEscape(orderID)))
	_, err := c.do(ctx, actor, http.MethodPatch, endpoint, payload, MsgAddTrackingFailed)
	return err
}

func (c *Client) patchItem(ctx context.Context, actor orders.Actor, endpoint string, payload any, fallback string) (*orders.SubOrder, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}
	body, err := c.do(ctx, actor, http.MethodPatch, endpoint, payload, fallback)
	if err != nil {
		return nil, err
	}
	return subOrderFromBody(body), nil
}

func (c *Client) do(ctx context.Context, actor orders.Actor, method, endpoint string, payload any, fallback string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal backend request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(actor.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fallback)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		upstream := parseUpstreamError(resp.StatusCode, raw)
		upstream.RetryAfter = pkgerrors.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, pkgerrors.Upstream(upstream, fallback)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}
	return body, nil
}

func (c *Client) itemURL(orderID, itemID, action string) string {
	return c.buildURL(fmt.Sprintf("/orders/%s/items/%s/%s", url.PathEscape(orderID), url.PathEscape(itemID), action))
}

func (c *Client) buildURL(path string) string {
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, path)
}
