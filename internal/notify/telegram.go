package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"promo-stop-alerts/internal/marketplace"
)

// TelegramOptions parameterise the Telegram notifier.
type TelegramOptions struct {
	BotToken string
	APIBase  string
	Timeout  time.Duration
	// Offline skips the getMe handshake; used by tests.
	Offline bool
}

// Telegram 通过 Bot API 推送通知，带内联操作按钮。
type Telegram struct {
	bot    *tele.Bot
	logger zerolog.Logger
}

// NewTelegram 构造 Telegram 通知器。
func NewTelegram(opts TelegramOptions, logger zerolog.Logger) (*Telegram, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := tele.Settings{
		Token:   opts.BotToken,
		URL:     strings.TrimRight(opts.APIBase, "/"),
		Offline: opts.Offline,
		Client:  &http.Client{Timeout: timeout},
	}

	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		logger: logger.With().Str("component", "notify_telegram").Logger(),
	}, nil
}

// NotifyEnrollment sends the enrollment alert with withdraw / ignore /
// stats buttons. Button callback data follows the front-end's scheme.
func (t *Telegram) NotifyEnrollment(ctx context.Context, e Enrollment) error {
	markup := &tele.ReplyMarkup{}

	var withdrawBtn tele.Btn
	if e.Market == marketplace.Ozon {
		withdrawBtn = markup.Data("🚫 Remove from promotion", "remove_ozon", e.Item.Product.ID)
	} else {
		withdrawBtn = markup.Data("🔄 Return discount", "return_wb", e.Item.Product.ID)
	}
	ignoreBtn := markup.Data("🙈 Ignore product", fmt.Sprintf("ignore_%s", e.Market), e.Item.Product.ID)
	statsBtn := markup.Data("📊 View stats", fmt.Sprintf("stats_%s", e.Market), e.Item.Product.ID)

	markup.Inline(
		markup.Row(withdrawBtn),
		markup.Row(ignoreBtn),
		markup.Row(statsBtn),
	)

	if _, err := t.bot.Send(&tele.User{ID: e.UserID}, renderEnrollment(e), markup); err != nil {
		return fmt.Errorf("send enrollment notification: %w", err)
	}

	t.logger.Info().Int64("user_id", e.UserID).
		Str("marketplace", string(e.Market)).
		Str("product_id", e.Item.Product.ID).
		Msg("通知已发送 (Telegram)")
	return nil
}

// NotifyOutcome reports an automatic remediation result to the user.
func (t *Telegram) NotifyOutcome(ctx context.Context, o Outcome) error {
	if _, err := t.bot.Send(&tele.User{ID: o.UserID}, renderOutcome(o)); err != nil {
		return fmt.Errorf("send outcome notification: %w", err)
	}
	return nil
}

func renderEnrollment(e Enrollment) string {
	builder := strings.Builder{}
	if e.Market == marketplace.Ozon {
		builder.WriteString(fmt.Sprintf("🛍 Ozon product enrolled in promotion %q\n\n", e.Item.Promotion.Title))
	} else {
		builder.WriteString(fmt.Sprintf("🛒 Wildberries product enrolled in promotion %q\n\n", e.Item.Promotion.Title))
	}
	builder.WriteString(fmt.Sprintf("🆔 ID: %s\n", e.Item.Product.ID))
	if e.Item.Product.Name != "" {
		builder.WriteString(fmt.Sprintf("📦 Name: %s\n", e.Item.Product.Name))
	}
	if !e.Item.Product.Price.IsZero() {
		builder.WriteString(fmt.Sprintf("💰 Price: %s\n", e.Item.Product.Price.StringFixed(2)))
	}
	if !e.Item.Product.DiscountPrice.IsZero() {
		builder.WriteString(fmt.Sprintf("🏷 Discounted price: %s\n", e.Item.Product.DiscountPrice.StringFixed(2)))
	}
	if !e.Item.Product.DiscountPct.IsZero() {
		builder.WriteString(fmt.Sprintf("🏷 Discount: %s%%\n", e.Item.Product.DiscountPct.StringFixed(0)))
	}
	if e.AutoCancelScheduled {
		builder.WriteString(fmt.Sprintf("\n⏳ Auto-cancel is on: the product leaves the promotion in %s unless you act.\n", formatGrace(e.GracePeriod)))
	}
	builder.WriteString("\nChoose an action:")
	return builder.String()
}

func formatGrace(d time.Duration) string {
	if d <= 0 {
		d = time.Hour
	}
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

func renderOutcome(o Outcome) string {
	verb := "removed from the Ozon promotion"
	if o.Kind == marketplace.ActionReturnDiscount {
		verb = "returned to its regular Wildberries discount"
	}

	if o.Succeeded {
		return fmt.Sprintf("✅ Product %s was automatically %s.", o.ProductID, verb)
	}

	msg := fmt.Sprintf("❌ Product %s could not be automatically %s.", o.ProductID, verb)
	if o.Reason != "" {
		msg += "\n" + o.Reason
	}
	return msg + "\nPlease check your integration settings."
}

var _ Notifier = (*Telegram)(nil)
