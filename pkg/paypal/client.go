package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

const (
	productsPath      = "/v1/catalogs/products"
	plansPath         = "/v1/billing/plans"
	subscriptionsPath = "/v1/billing/subscriptions"

	maxErrorBody = 64 << 10
)

var errLoggerRequired = errors.New("paypal logger is required")

// Client is a thin REST client over the catalog, plan, and subscription
// endpoints. Every call resolves a fresh session.
type Client struct {
	sessions   SessionProvider
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(sessions SessionProvider, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	if sessions == nil {
		return nil, errors.New("paypal session provider required")
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{sessions: sessions, httpClient: httpClient, logger: logg}, nil
}

// ListProducts returns one page of catalog products.
func (c *Client) ListProducts(ctx context.Context, page, pageSize int) (*ProductList, error) {
	var out ProductList
	if err := c.do(ctx, http.MethodGet, productsPath, pageQuery(page, pageSize), nil, &out, "list_products"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, productsPath, nil, product, &out, "create_product"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPlans returns one page of plans owned by productID. Listed plans
// usually omit billing cycles; use GetPlan for the full definition.
func (c *Client) ListPlans(ctx context.Context, productID string, page, pageSize int) (*PlanList, error) {
	q := pageQuery(page, pageSize)
	q.Set("product_id", productID)
	var out PlanList
	if err := c.do(ctx, http.MethodGet, plansPath, q, nil, &out, "list_plans"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	var out Plan
	if err := c.do(ctx, http.MethodGet, plansPath+"/"+url.PathEscape(planID), nil, nil, &out, "get_plan"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePlan(ctx context.Context, plan Plan) (*Plan, error) {
	var out Plan
	if err := c.do(ctx, http.MethodPost, plansPath, nil, plan, &out, "create_plan"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodPost, subscriptionsPath, nil, req, &out, "create_subscription"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, subscriptionsPath+"/"+url.PathEscape(subscriptionID), nil, nil, &out, "get_subscription"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, op string) error {
	session, err := c.sessions.Session(ctx)
	if err != nil {
		return err
	}

	endpoint := session.Credentials.APIBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
	}

	c.log(ctx, "request", op, map[string]any{"method": method, "path": path, "environment": session.Credentials.Environment.String()})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paypal %s failed", op))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		procErr := decodeProcessorError(resp)
		c.log(ctx, "error", op, map[string]any{
			"status":   resp.StatusCode,
			"name":     procErr.Name,
			"debug_id": procErr.DebugID,
			"error":    procErr.UserMessage(),
		})
		return mapProcessorError(procErr, op)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode paypal %s response", op))
		}
	}
	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
	return nil
}

func decodeProcessorError(resp *http.Response) *ProcessorError {
	procErr := &ProcessorError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return procErr
	}
	if err := json.Unmarshal(raw, procErr); err != nil {
		procErr.Message = strings.TrimSpace(string(raw))
	}
	procErr.StatusCode = resp.StatusCode
	return procErr
}

func pageQuery(page, pageSize int) url.Values {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("total_required", "true")
	return q
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("paypal %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "email", "authorization", "given_name", "surname"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
