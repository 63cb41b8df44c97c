package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	ozonActionsPath    = "/v1/actions"
	ozonProductsPath   = "/v1/actions/products"
	ozonDeactivatePath = "/v1/actions/products/deactivate"
)

// OzonOptions parameterise the Ozon seller API adapter.
type OzonOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// OzonClient speaks the Ozon seller API. Authentication is a Client-Id /
// Api-Key header pair.
type OzonClient struct {
	opts    OzonOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOzon constructs an Ozon adapter.
func NewOzon(opts OzonOptions, logger zerolog.Logger) *OzonClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-seller.ozon.ru"
	}

	return &OzonClient{
		opts:    opts,
		logger:  logger.With().Str("component", "ozon_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Marketplace identifies the adapter.
func (c *OzonClient) Marketplace() Marketplace { return Ozon }

type ozonAction struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	ActionType      string `json:"action_type"`
	DateStart       string `json:"date_start"`
	DateEnd         string `json:"date_end"`
	IsParticipating bool   `json:"is_participating"`
}

type ozonActionsResponse struct {
	Result []ozonAction `json:"result"`
}

// ListPromotions returns the seller's current actions. An action with
// is_participating set is "active" in the engine's sense: the seller has
// products enrolled in it.
func (c *OzonClient) ListPromotions(ctx context.Context, creds Credentials) ([]Promotion, error) {
	const op = "list_promotions"

	body, err := c.do(ctx, op, http.MethodGet, ozonActionsPath, creds, nil)
	if err != nil {
		return nil, err
	}

	var res ozonActionsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocolError(Ozon, op, err)
	}

	promotions := make([]Promotion, 0, len(res.Result))
	for _, a := range res.Result {
		promotions = append(promotions, Promotion{
			ID:        strconv.FormatInt(a.ID, 10),
			Title:     a.Title,
			DateStart: a.DateStart,
			DateEnd:   a.DateEnd,
			IsActive:  a.IsParticipating,
		})
	}
	return promotions, nil
}

type ozonProductsRequest struct {
	ActionID int64 `json:"action_id"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
}

type ozonProduct struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
}

type ozonProductsResponse struct {
	Result struct {
		Items []ozonProduct `json:"items"`
		Total int           `json:"total"`
	} `json:"result"`
}

// ListProducts returns one offset/limit page of products enrolled in an action.
func (c *OzonClient) ListProducts(ctx context.Context, creds Credentials, promotionID string, offset, limit int) ([]Product, error) {
	const op = "list_products"

	actionID, err := strconv.ParseInt(promotionID, 10, 64)
	if err != nil {
		return nil, protocolError(Ozon, op, fmt.Errorf("promotion id %q is not numeric: %w", promotionID, err))
	}

	payload := ozonProductsRequest{ActionID: actionID, Limit: limit, Offset: offset}
	body, err := c.do(ctx, op, http.MethodPost, ozonProductsPath, creds, payload)
	if err != nil {
		return nil, err
	}

	var res ozonProductsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocolError(Ozon, op, err)
	}

	products := make([]Product, 0, len(res.Result.Items))
	for _, item := range res.Result.Items {
		products = append(products, Product{
			ID:            strconv.FormatInt(item.ProductID, 10),
			PromotionID:   promotionID,
			Name:          item.Name,
			Price:         item.Price,
			DiscountPrice: item.DiscountPrice,
		})
	}
	return products, nil
}

type ozonDeactivateRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

type ozonDeactivateResponse struct {
	Result struct {
		ProductIDs []int64 `json:"product_ids"`
		Rejected   []struct {
			ProductID int64  `json:"product_id"`
			Reason    string `json:"reason"`
		} `json:"rejected"`
	} `json:"result"`
}

// Withdraw deactivates a product from its action. A product the API rejects
// because it is no longer participating counts as success: the desired end
// state already holds.
func (c *OzonClient) Withdraw(ctx context.Context, creds Credentials, productID string) error {
	const op = "withdraw"

	id, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return protocolError(Ozon, op, fmt.Errorf("product id %q is not numeric: %w", productID, err))
	}

	body, err := c.do(ctx, op, http.MethodPost, ozonDeactivatePath, creds, ozonDeactivateRequest{ProductIDs: []int64{id}})
	if err != nil {
		return err
	}

	var res ozonDeactivateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return protocolError(Ozon, op, err)
	}

	for _, rej := range res.Result.Rejected {
		if rej.ProductID == id {
			c.logger.Debug().Str("product_id", productID).Str("reason", rej.Reason).
				Msg("deactivate rejected; treating as already withdrawn")
		}
	}
	return nil
}

func (c *OzonClient) do(ctx context.Context, op, method, path string, creds Credentials, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, protocolError(Ozon, op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, protocolError(Ozon, op, err)
	}
	req.Header.Set("Client-Id", creds.ClientID)
	req.Header.Set("Api-Key", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(Ozon, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(Ozon, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(Ozon, op, resp.StatusCode, body)
	}
	if len(body) == 0 {
		return nil, protocolError(Ozon, op, errors.New("empty response body"))
	}
	return body, nil
}

var _ Client = (*OzonClient)(nil)
