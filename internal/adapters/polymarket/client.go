package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGammaBase  = "https://gamma-api.polymarket.com"
	defaultPageLimit  = 500
	defaultMaxMarkets = 2000

	// Gamma /markets: 300/10s → al 60% → 18/s
	gammaRatePerSec = 18

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryAfter = 10 * time.Second
)

// Client es el HTTP client de la API Gamma con rate limiting y retries.
// Implementa ports.MarketProvider.
type Client struct {
	http         *http.Client
	gammaBase    string
	pageLimit    int
	maxMarkets   int
	gammaLimiter *rate.Limiter
	now          func() time.Time
}

// NewClient crea un Client contra gammaBase (vacío = producción).
// pageLimit es el tamaño de página y maxMarkets el tope total por fetch.
func NewClient(gammaBase string, pageLimit, maxMarkets int) *Client {
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	if maxMarkets <= 0 {
		maxMarkets = defaultMaxMarkets
	}
	return &Client{
		http:         &http.Client{Timeout: 15 * time.Second},
		gammaBase:    gammaBase,
		pageLimit:    pageLimit,
		maxMarkets:   maxMarkets,
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 10),
		now:          time.Now,
	}
}

// get hace un GET con rate limiting y retries, y decodifica el JSON en out.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	body, err := c.fetch(ctx, limiter, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// fetch devuelve el body de la primera respuesta 2xx. Reintenta errores de red,
// 429 y 5xx hasta maxRetries veces; un 4xx se devuelve sin reintentar.
func (c *Client) fetch(ctx context.Context, limiter *rate.Limiter, url string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt-1, lastErr); err != nil {
				return nil, err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode < 300:
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &statusError{code: resp.StatusCode, retryAfter: retryAfter(resp.Header)}
			resp.Body.Close()
			slog.Warn("gamma request retrying", "status", resp.StatusCode, "attempt", attempt+1)
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(msg))
		}
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// statusError es una respuesta HTTP reintentable.
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server error %d", e.code)
}

// backoff espera 2^attempt * baseRetryWait con ±20% de jitter, o lo que pida
// Retry-After si es mayor. Devuelve ctx.Err() si se cancela durante la espera.
func (c *Client) backoff(ctx context.Context, attempt int, lastErr error) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration((rand.Float64()*0.4 - 0.2) * float64(wait))

	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > wait {
		wait = min(se.retryAfter, maxRetryAfter)
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter lee la cabecera Retry-After en segundos. 0 si falta o no es un entero.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
