package commerce

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

	"github.com/google/uuid"

	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is read for diagnostics.
	maxErrorBody = 4 << 10
)

var (
	errAccessTokenRequired = errors.New("commerce access token is required")
	errInvalidCommerceEnv  = fmt.Errorf("commerce environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("commerce logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://storefront.sandbox.lunebox-platform.com",
	productionEnv: "https://storefront.lunebox-platform.com",
}

// Client exposes the commerce platform's storefront API with centralized
// auth, logging, idempotency, and error mapping.
type Client struct {
	httpClient  *http.Client
	accessToken string
	environment string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the storefront API wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.CommerceConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	baseURL := baseURLs[env]
	if override := strings.TrimSpace(cfg.BaseURL); override != "" {
		baseURL = strings.TrimRight(override, "/")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		accessToken: accessToken,
		environment: env,
		baseURL:     baseURL,
		logger:      logg,
	}

	logg.Info(ctx, "commerce client initialized")
	return c, nil
}

// Environment reports the normalized platform environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewIdempotencyKey returns a unique key for platform write operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "lbx"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// ListProducts fetches the full storefront catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	c.log(ctx, "request", "list_products", nil)

	var payload struct {
		Products []productPayload `json:"products"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/storefront/v1/products", nil, &payload); err != nil {
		c.log(ctx, "error", "list_products", map[string]any{"error": err.Error()})
		return nil, err
	}

	products := make([]Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		product, err := p.toDomain()
		if err != nil {
			c.log(ctx, "error", "list_products", map[string]any{"error": err.Error()})
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce list products returned malformed product")
		}
		products = append(products, product)
	}

	c.log(ctx, "response", "list_products", map[string]any{"count": len(products)})
	return products, nil
}

// GetProductByHandle fetches a single product by its URL handle.
func (c *Client) GetProductByHandle(ctx context.Context, handle string) (*Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}
	c.log(ctx, "request", "get_product", map[string]any{"handle": handle})

	var payload struct {
		Product productPayload `json:"product"`
	}
	path := "/storefront/v1/products/" + url.PathEscape(handle)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		c.log(ctx, "error", "get_product", map[string]any{"error": err.Error()})
		return nil, err
	}

	product, err := payload.Product.toDomain()
	if err != nil {
		c.log(ctx, "error", "get_product", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce product payload is malformed")
	}

	c.log(ctx, "response", "get_product", map[string]any{"product_id": product.ID})
	return &product, nil
}

// CreateCartSession creates the platform-hosted cart for a hand-off in a
// single call. The platform computes its own totals from the lines.
func (c *Client) CreateCartSession(ctx context.Context, lines []LineItemRequest, idempotencyKey string) (*CheckoutSession, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	key := c.ensureIdempotencyKey("cart_session.create", idempotencyKey)
	c.log(ctx, "request", "create_cart_session", map[string]any{
		"line_count":      len(lines),
		"idempotency_key": key,
	})

	body := struct {
		IdempotencyKey string            `json:"idempotency_key"`
		Lines          []LineItemRequest `json:"lines"`
	}{IdempotencyKey: key, Lines: lines}

	var payload struct {
		CartSession checkoutSessionPayload `json:"cart_session"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/storefront/v1/cart_sessions", body, &payload); err != nil {
		c.log(ctx, "error", "create_cart_session", map[string]any{"error": err.Error()})
		return nil, err
	}

	session, err := payload.CartSession.toDomain()
	if err != nil {
		c.log(ctx, "error", "create_cart_session", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce cart session payload is malformed")
	}

	c.log(ctx, "response", "create_cart_session", map[string]any{"session_id": session.ID})
	return &session, nil
}

// Ping checks platform reachability for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/storefront/v1/ping", nil, nil)
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode commerce request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build commerce request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce platform unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode commerce response")
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fmt.Sprintf("commerce platform returned status %d", resp.StatusCode)
	var payload struct {
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		first := payload.Errors[0]
		if first.Detail != "" {
			message = fmt.Sprintf("commerce platform: %s", first.Detail)
		}
		if first.Code == "IDEMPOTENCY_KEY_REUSED" {
			return pkgerrors.New(pkgerrors.CodeIdempotency, message)
		}
	}

	return pkgerrors.New(domainCodeForStatus(resp.StatusCode), message)
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
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("commerce %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("commerce %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "authorization", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		// Misconfigured platform credentials, never a shopper mistake.
		return pkgerrors.CodeDependency
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	}
	return "", errInvalidCommerceEnv
}
