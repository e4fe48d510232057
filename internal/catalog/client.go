// Package catalog предоставляет клиент внешнего каталога меню.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/foodcart/internal/model"
)

// ErrProductNotFound возвращается, если каталог не знает товар.
var ErrProductNotFound = errors.New("product not found")

// RateLimitedError возвращается, когда каталог ответил 429.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("catalog rate limited, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие с каталогом. Одновременные запросы
// одного и того же товара объединяются в один.
type Client struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// NewClient создаёт HTTP-клиент для обращения к каталогу по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetProduct запрашивает товар по идентификатору.
func (c *Client) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("catalog client not configured")
	}
	if productID == "" {
		return nil, ErrProductNotFound
	}

	v, err, _ := c.group.Do(productID, func() (interface{}, error) {
		return c.fetch(ctx, productID)
	})
	if err != nil {
		return nil, err
	}

	p := *v.(*model.Product)
	return &p, nil
}

func (c *Client) fetch(ctx context.Context, productID string) (*model.Product, error) {
	u := fmt.Sprintf("%s/api/products/%s", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var p model.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if p.ID == "" {
		p.ID = productID
	}

	return &p, nil
}
