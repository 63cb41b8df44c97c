package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"promo-stop-alerts/internal/storage"
)

// Show prints recent automatic remediations, or the pending queue when
// opts.Pending is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; nothing to show")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Pending {
		return a.showPending(ctx, store, opts.Limit)
	}
	return a.showRecent(ctx, store, opts.Limit)
}

func (a *App) showRecent(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no remediations recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tMARKET\tPRODUCT\tACTION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.UserID,
			r.Market,
			sanitizeInline(r.ProductID),
			sanitizeInline(r.Kind),
		)
	}
	return w.Flush()
}

func (a *App) showPending(ctx context.Context, store *storage.Store, limit int) error {
	actions, err := store.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Println("queue is empty")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIRES\tIN\tUSER\tMARKET\tPRODUCT\tACTION")
	for _, p := range actions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			p.FireAt.Local().Format(time.DateTime),
			untilString(now, p.FireAt),
			p.UserID,
			p.Market,
			sanitizeInline(p.ProductID),
			p.Kind,
		)
	}
	return w.Flush()
}

func untilString(now, fireAt time.Time) string {
	d := fireAt.Sub(now)
	if d <= 0 {
		return "due"
	}
	return d.Round(time.Second).String()
}

// sanitizeInline keeps marketplace-supplied strings from breaking the
// tab-separated layout.
func sanitizeInline(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
