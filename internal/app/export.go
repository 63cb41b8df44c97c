package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"promo-stop-alerts/internal/marketplace"
	"promo-stop-alerts/internal/storage"
)

// defaultExportWindow mirrors the 30-day analytics window the chat
// front-end shows per user.
const defaultExportWindow = 30 * 24 * time.Hour

// Export renders the remediation log as per-day counts, as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	counts, err := store.CountByDay(ctx, from, to)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		a.Logger.Info().Msg("no remediations found for export window")
		return nil
	}

	if len(counts) > opts.MaxPoints {
		counts = counts[len(counts)-opts.MaxPoints:]
	}
	a.Logger.Info().Int("rows", len(counts)).Msg("exporting remediation counts")

	if opts.CSVPath != "" {
		if err := writeCountsCSV(opts.CSVPath, counts); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeCountsPNG(opts.PNGPath, counts); err != nil {
			return err
		}
	}

	return nil
}

func writeCountsCSV(path string, counts []storage.DayCount) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"day", "marketplace", "count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, dc := range counts {
		record := []string{
			dc.Day.Format("2006-01-02"),
			string(dc.Market),
			strconv.FormatInt(dc.Count, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeCountsPNG(path string, counts []storage.DayCount) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	perDay := map[marketplace.Marketplace]map[time.Time]int64{}
	daySet := map[time.Time]struct{}{}
	for _, dc := range counts {
		day := dc.Day.UTC().Truncate(24 * time.Hour)
		daySet[day] = struct{}{}
		if perDay[dc.Market] == nil {
			perDay[dc.Market] = map[time.Time]int64{}
		}
		perDay[dc.Market][day] += dc.Count
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]chart.Series, 0, 2)
	for _, m := range []marketplace.Marketplace{marketplace.Ozon, marketplace.Wildberries} {
		byDay := perDay[m]
		if byDay == nil {
			continue
		}
		values := make([]float64, len(days))
		for i, day := range days {
			values[i] = float64(byDay[day])
		}
		series = append(series, chart.TimeSeries{
			Name:    string(m),
			XValues: days,
			YValues: values,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Automatic withdrawals / day",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
