package catalog

import (
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

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPClient клиент каталога DummyJSON поверх net/http.
// Каждый запрос идёт через rate limiter и failsafe pipeline (retry + circuit breaker).
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	pipeline failsafe.Executor[[]byte]
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewHTTPClient создаёт клиент каталога
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	maxDelay := cfg.RetryBackoff * 20
	if maxDelay <= cfg.RetryBackoff {
		maxDelay = cfg.RetryBackoff + time.Second
	}

	retryPolicy := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return shouldRetry(err)
		}).
		WithBackoff(cfg.RetryBackoff, maxDelay).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure().
		Build()

	breaker := circuitbreaker.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return shouldRetry(err)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	return &HTTPClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		limiter:  limiter,
		pipeline: failsafe.With[[]byte](retryPolicy, breaker),
		tracer:   otel.Tracer("catalog"),
		logger:   logger.With(zap.String("component", "catalog_client")),
	}
}

// ListProducts возвращает страницу товаров (поиск, если Query непустой)
func (c *HTTPClient) ListProducts(ctx context.Context, p ListParams) (ProductPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("skip", strconv.Itoa(p.Skip))

	path := "/products"
	if term := strings.TrimSpace(p.Query); term != "" {
		path = "/products/search"
		q.Set("q", term)
	}

	body, err := c.get(ctx, path, q)
	if err != nil {
		return ProductPage{}, err
	}

	var page ProductPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ProductPage{}, fmt.Errorf("%w: decode page: %w", ErrUnavailable, err)
	}
	for i := range page.Products {
		page.Products[i] = page.Products[i].normalize()
	}
	return page, nil
}

// GetProductByID возвращает товар; ErrNotFound если такого id нет
func (c *HTTPClient) GetProductByID(ctx context.Context, id int) (Product, error) {
	body, err := c.get(ctx, "/products/"+strconv.Itoa(id), nil)
	if err != nil {
		return Product{}, err
	}

	var p Product
	if err := json.Unmarshal(body, &p); err != nil {
		return Product{}, fmt.Errorf("%w: decode product %d: %w", ErrUnavailable, id, err)
	}
	return p.normalize(), nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "catalog GET "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", http.MethodGet)),
	)
	defer span.End()

	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	start := time.Now()
	body, err := c.pipeline.WithContext(ctx).Get(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.do(ctx, target)
	})
	if err != nil {
		err = classify(ctx, err)
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("catalog request failed",
				zap.String("path", path),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	c.logger.Debug("catalog request done",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	return true
}

// classify приводит ошибку pipeline к таксономии пакета
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
