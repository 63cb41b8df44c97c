package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ozonTestCreds() Credentials {
	return Credentials{APIKey: "key", ClientID: "client"}
}

func TestOzonListPromotionsMapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ozonActionsPath {
			t.Fatalf("路径应为 %s, 实际 %s", ozonActionsPath, r.URL.Path)
		}
		if r.Header.Get("Client-Id") != "client" || r.Header.Get("Api-Key") != "key" {
			t.Fatalf("认证头不正确: %#v", r.Header)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": 42, "title": "Hot Sale", "date_start": "2026-08-01", "date_end": "2026-08-31", "is_participating": true},
				{"id": 43, "title": "Upcoming", "is_participating": false},
			},
		})
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	promotions, err := c.ListPromotions(context.Background(), ozonTestCreds())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(promotions) != 2 {
		t.Fatalf("期望 2 个促销, 实际 %d", len(promotions))
	}
	if promotions[0].ID != "42" || promotions[0].Title != "Hot Sale" || !promotions[0].IsActive {
		t.Fatalf("促销映射不正确: %#v", promotions[0])
	}
	if promotions[1].IsActive {
		t.Fatal("未参与的促销不应标记为 active")
	}
}

func TestOzonListProductsRequestPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if req["action_id"] != float64(42) || req["limit"] != float64(100) || req["offset"] != float64(200) {
			t.Fatalf("请求体不正确: %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"items": []map[string]any{
					{"product_id": 777, "name": "Widget", "price": "1990.00", "discount_price": "990.00"},
				},
				"total": 1,
			},
		})
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	products, err := c.ListProducts(context.Background(), ozonTestCreds(), "42", 200, 100)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("期望 1 个商品, 实际 %d", len(products))
	}
	p := products[0]
	if p.ID != "777" || p.PromotionID != "42" || p.Name != "Widget" {
		t.Fatalf("商品映射不正确: %#v", p)
	}
	if p.Price.String() != "1990" || p.DiscountPrice.String() != "990" {
		t.Fatalf("价格映射不正确: %s / %s", p.Price, p.DiscountPrice)
	}
}

func TestOzonUnauthorizedIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := c.ListPromotions(context.Background(), ozonTestCreds())
	if err == nil {
		t.Fatal("401 应返回错误")
	}
	if !IsAuth(err) {
		t.Fatalf("401 应归类为认证错误: %v", err)
	}
}

func TestOzonServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := c.ListPromotions(context.Background(), ozonTestCreds())
	if !IsTransient(err) {
		t.Fatalf("502 应归类为瞬时错误: %v", err)
	}
}

func TestOzonMalformedBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := c.ListPromotions(context.Background(), ozonTestCreds())
	if !IsProtocol(err) {
		t.Fatalf("非法 JSON 应归类为协议错误: %v", err)
	}
}

func TestOzonWithdrawRejectedIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ozonDeactivatePath {
			t.Fatalf("路径应为 %s, 实际 %s", ozonDeactivatePath, r.URL.Path)
		}
		var req map[string][]int64
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if len(req["product_ids"]) != 1 || req["product_ids"][0] != 777 {
			t.Fatalf("product_ids 不正确: %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"product_ids": []int64{},
				"rejected": []map[string]any{
					{"product_id": 777, "reason": "NOT_IN_ACTION"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewOzon(OzonOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if err := c.Withdraw(context.Background(), ozonTestCreds(), "777"); err != nil {
		t.Fatalf("已退出促销的商品应视为成功: %v", err)
	}
}

func TestOzonWithdrawNonNumericID(t *testing.T) {
	c := NewOzon(OzonOptions{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, noopLogger())
	err := c.Withdraw(context.Background(), ozonTestCreds(), "abc")
	if !IsProtocol(err) {
		t.Fatalf("非数字商品 ID 应归类为协议错误: %v", err)
	}
}
