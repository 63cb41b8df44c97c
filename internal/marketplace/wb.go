package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	wbPromotionsPath = "/api/v1/calendar/promotions"
	wbProductsPath   = "/api/v1/calendar/products"
	wbPricesPath     = "/api/v1/calendar/prices"
)

// WBOptions parameterise the Wildberries supplier API adapter.
type WBOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// WBClient speaks the Wildberries supplier calendar API. Authentication is
// a bare Authorization header.
type WBClient struct {
	opts    WBOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewWB constructs a Wildberries adapter.
func NewWB(opts WBOptions, logger zerolog.Logger) *WBClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://suppliers-api.wildberries.ru"
	}

	return &WBClient{
		opts:    opts,
		logger:  logger.With().Str("component", "wb_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Marketplace identifies the adapter.
func (c *WBClient) Marketplace() Marketplace { return Wildberries }

type wbPromotion struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsActive  bool   `json:"isActive"`
}

type wbPromotionsResponse struct {
	Data []wbPromotion `json:"data"`
}

// ListPromotions returns the supplier's promotion calendar.
func (c *WBClient) ListPromotions(ctx context.Context, creds Credentials) ([]Promotion, error) {
	const op = "list_promotions"

	body, err := c.do(ctx, op, http.MethodGet, wbPromotionsPath, nil, creds, nil)
	if err != nil {
		return nil, err
	}

	var res wbPromotionsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocolError(Wildberries, op, err)
	}

	promotions := make([]Promotion, 0, len(res.Data))
	for _, p := range res.Data {
		promotions = append(promotions, Promotion{
			ID:        strconv.FormatInt(p.ID, 10),
			Title:     p.Name,
			DateStart: p.StartDate,
			DateEnd:   p.EndDate,
			IsActive:  p.IsActive,
		})
	}
	return promotions, nil
}

type wbProduct struct {
	NmID     int64           `json:"nmId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

type wbProductsResponse struct {
	Data []wbProduct `json:"data"`
}

// ListProducts returns one offset/limit page of products enrolled in a
// promotion (inAction=true).
func (c *WBClient) ListProducts(ctx context.Context, creds Credentials, promotionID string, offset, limit int) ([]Product, error) {
	const op = "list_products"

	query := url.Values{}
	query.Set("inAction", "true")
	query.Set("promotionId", promotionID)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	body, err := c.do(ctx, op, http.MethodGet, wbProductsPath, query, creds, nil)
	if err != nil {
		return nil, err
	}

	var res wbProductsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocolError(Wildberries, op, err)
	}

	products := make([]Product, 0, len(res.Data))
	for _, item := range res.Data {
		products = append(products, Product{
			ID:          strconv.FormatInt(item.NmID, 10),
			PromotionID: promotionID,
			Name:        item.Name,
			Price:       item.Price,
			DiscountPct: item.Discount,
		})
	}
	return products, nil
}

type wbPriceUpdate struct {
	NmID     int64 `json:"nmId"`
	Discount int   `json:"discount"`
}

// Withdraw resets the product's discount to zero, which takes it out of the
// promotion's pricing. Setting an already-zero discount succeeds again, so
// the operation is naturally idempotent.
func (c *WBClient) Withdraw(ctx context.Context, creds Credentials, productID string) error {
	const op = "withdraw"

	nmID, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return protocolError(Wildberries, op, fmt.Errorf("product id %q is not numeric: %w", productID, err))
	}

	_, err = c.do(ctx, op, http.MethodPost, wbPricesPath, nil, creds, wbPriceUpdate{NmID: nmID, Discount: 0})
	return err
}

func (c *WBClient) do(ctx context.Context, op, method, path string, query url.Values, creds Credentials, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, protocolError(Wildberries, op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, protocolError(Wildberries, op, err)
	}
	req.Header.Set("Authorization", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(Wildberries, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(Wildberries, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(Wildberries, op, resp.StatusCode, body)
	}
	return body, nil
}

var _ Client = (*WBClient)(nil)
