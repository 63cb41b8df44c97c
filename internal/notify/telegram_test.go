package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"promo-stop-alerts/internal/diff"
	"promo-stop-alerts/internal/marketplace"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func telegramTestServer(t *testing.T, received *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("路径应以 sendMessage 结尾, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"message_id": 1,
				"chat":       map[string]any{"id": 42, "type": "private"},
			},
		})
	}))
}

func testEnrollment(m marketplace.Marketplace) Enrollment {
	return Enrollment{
		UserID: 42,
		Market: m,
		Item: diff.Item{
			Promotion: marketplace.Promotion{ID: "p1", Title: "Hot Sale"},
			Product:   marketplace.Product{ID: "100", PromotionID: "p1", Name: "Widget"},
		},
		AutoCancelScheduled: true,
		GracePeriod:         time.Hour,
	}
}

func TestTelegramNotifyEnrollmentSendsButtons(t *testing.T) {
	received := map[string]string{}
	srv := telegramTestServer(t, &received)
	defer srv.Close()

	tg, err := NewTelegram(TelegramOptions{BotToken: "token", APIBase: srv.URL, Offline: true}, testLogger())
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}

	if err := tg.NotifyEnrollment(context.Background(), testEnrollment(marketplace.Ozon)); err != nil {
		t.Fatalf("发送通知失败: %v", err)
	}

	if received["chat_id"] != "42" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text := received["text"]
	if !strings.Contains(text, "Hot Sale") || !strings.Contains(text, "100") {
		t.Fatalf("消息正文缺少促销或商品信息: %q", text)
	}
	if !strings.Contains(text, "1 hour") {
		t.Fatalf("自动退出提示缺失: %q", text)
	}

	markup := received["reply_markup"]
	for _, want := range []string{"remove_ozon", "ignore_ozon", "stats_ozon", "100"} {
		if !strings.Contains(markup, want) {
			t.Fatalf("内联键盘缺少 %s: %q", want, markup)
		}
	}
}

func TestTelegramNotifyEnrollmentWBButton(t *testing.T) {
	received := map[string]string{}
	srv := telegramTestServer(t, &received)
	defer srv.Close()

	tg, err := NewTelegram(TelegramOptions{BotToken: "token", APIBase: srv.URL, Offline: true}, testLogger())
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}

	if err := tg.NotifyEnrollment(context.Background(), testEnrollment(marketplace.Wildberries)); err != nil {
		t.Fatalf("发送通知失败: %v", err)
	}

	if markup := received["reply_markup"]; !strings.Contains(markup, "return_wb") {
		t.Fatalf("Wildberries 应使用折扣恢复按钮: %q", markup)
	}
}

func TestTelegramNotifyOutcome(t *testing.T) {
	received := map[string]string{}
	srv := telegramTestServer(t, &received)
	defer srv.Close()

	tg, err := NewTelegram(TelegramOptions{BotToken: "token", APIBase: srv.URL, Offline: true}, testLogger())
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}

	o := Outcome{UserID: 42, Market: marketplace.Wildberries, ProductID: "555", Kind: marketplace.ActionReturnDiscount, Succeeded: false, Reason: "api down"}
	if err := tg.NotifyOutcome(context.Background(), o); err != nil {
		t.Fatalf("发送结果通知失败: %v", err)
	}

	text := received["text"]
	if !strings.Contains(text, "555") || !strings.Contains(text, "api down") {
		t.Fatalf("失败通知缺少信息: %q", text)
	}
}

func TestTelegramSendHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 1}})
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramOptions{BotToken: "token", APIBase: srv.URL, Timeout: 20 * time.Millisecond, Offline: true}, testLogger())
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}

	start := time.Now()
	err = tg.NotifyOutcome(context.Background(), Outcome{UserID: 42, ProductID: "1", Kind: marketplace.ActionRemoveFromPromo})
	if err == nil {
		t.Fatal("超过配置的超时时间应报错")
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("请求应在配置的超时时间附近中止, 实际耗时 %v", time.Since(start))
	}
}

func TestFormatGrace(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "1 hour"},
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{90 * time.Minute, "1h30m0s"},
	}
	for _, c := range cases {
		if got := formatGrace(c.in); got != c.want {
			t.Fatalf("formatGrace(%v) = %q, 期望 %q", c.in, got, c.want)
		}
	}
}

func TestRenderEnrollmentUsesConfiguredGrace(t *testing.T) {
	e := testEnrollment(marketplace.Ozon)
	e.GracePeriod = 2 * time.Hour
	if msg := renderEnrollment(e); !strings.Contains(msg, "2 hours") {
		t.Fatalf("消息应使用配置的宽限期: %q", msg)
	}
}

func TestRenderOutcomeSuccessMessage(t *testing.T) {
	msg := renderOutcome(Outcome{ProductID: "1", Kind: marketplace.ActionRemoveFromPromo, Succeeded: true})
	if !strings.Contains(msg, "✅") || !strings.Contains(msg, "Ozon") {
		t.Fatalf("成功消息不正确: %q", msg)
	}
}
