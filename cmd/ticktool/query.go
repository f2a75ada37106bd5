package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valterebelo/polymarket-crypto-tools/internal/candles"
	"github.com/valterebelo/polymarket-crypto-tools/internal/config"
	"github.com/valterebelo/polymarket-crypto-tools/internal/database"
	"github.com/valterebelo/polymarket-crypto-tools/internal/export"
	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
	"github.com/valterebelo/polymarket-crypto-tools/internal/store"
)

// tradeFlags are the filter flags shared by query, export and summary.
type tradeFlags struct {
	configPath string
	verbose    bool
	market     string
	asset      string
	outcome    string
	side       string
	from       string
	to         string
	limit      int
}

func (tf *tradeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&tf.configPath, "config", "configs/ticktool.yaml", "path to config file")
	fs.BoolVar(&tf.verbose, "verbose", false, "enable debug logging")
	fs.StringVar(&tf.market, "market", "", "filter by market ID")
	fs.StringVar(&tf.asset, "asset", "", "filter by outcome token ID")
	fs.StringVar(&tf.outcome, "outcome", "", "filter by outcome label")
	fs.StringVar(&tf.side, "side", "", "filter by side (BUY or SELL)")
	fs.StringVar(&tf.from, "from", "", "start of time range, RFC3339 (inclusive)")
	fs.StringVar(&tf.to, "to", "", "end of time range, RFC3339 (exclusive)")
	fs.IntVar(&tf.limit, "limit", 0, "maximum rows (0 = unlimited)")
}

func (tf *tradeFlags) filter() (store.TradeFilter, error) {
	f := store.TradeFilter{
		MarketID: tf.market,
		AssetID:  tf.asset,
		Outcome:  tf.outcome,
		Limit:    tf.limit,
	}
	if tf.side != "" {
		side := model.Side(tf.side)
		if !side.Valid() {
			return f, fmt.Errorf("invalid side %q, want BUY or SELL", tf.side)
		}
		f.Side = side
	}
	if tf.from != "" {
		t, err := time.Parse(time.RFC3339, tf.from)
		if err != nil {
			return f, fmt.Errorf("invalid -from: %w", err)
		}
		f.From = t
	}
	if tf.to != "" {
		t, err := time.Parse(time.RFC3339, tf.to)
		if err != nil {
			return f, fmt.Errorf("invalid -to: %w", err)
		}
		f.To = t
	}
	return f, nil
}

// openStore loads config and connects the pool for read commands.
func openStore(ctx context.Context, configPath string, logger *slog.Logger) (*pgxpool.Pool, *store.Store, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, store.New(pool, logger), nil
}

func runQuery(args []string) int {
	var tf tradeFlags
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	tf.register(fs)
	fs.Parse(args)

	logger := newLogger(tf.verbose)

	filter, err := tf.filter()
	if err != nil {
		logger.Error("bad filter", "error", err)
		return 1
	}

	ctx := context.Background()
	pool, st, err := openStore(ctx, tf.configPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer pool.Close()

	it, err := st.QueryTrades(ctx, filter)
	if err != nil {
		logger.Error("query failed", "error", err)
		return 1
	}
	defer it.Close()

	n := 0
	for it.Next() {
		t := it.Trade()
		fmt.Printf("%s  %-4s %-6s price=%s size=%s value=%s market=%s asset=%s\n",
			t.EventTime.UTC().Format(time.RFC3339),
			t.Side, t.Outcome,
			t.Price, t.Size, t.Value(),
			t.MarketID, t.AssetID,
		)
		n++
	}
	if err := it.Err(); err != nil {
		logger.Error("query failed", "error", err)
		return 1
	}
	fmt.Printf("%d trades\n", n)
	return 0
}

func runExport(args []string) int {
	var tf tradeFlags
	var outPath string
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	tf.register(fs)
	fs.StringVar(&outPath, "out", "", "output file (default stdout)")
	fs.Parse(args)

	logger := newLogger(tf.verbose)

	filter, err := tf.filter()
	if err != nil {
		logger.Error("bad filter", "error", err)
		return 1
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			logger.Error("cannot create output file", "error", err)
			return 1
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	pool, st, err := openStore(ctx, tf.configPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer pool.Close()

	it, err := st.QueryTrades(ctx, filter)
	if err != nil {
		logger.Error("query failed", "error", err)
		return 1
	}
	defer it.Close()

	w, err := export.NewCSVWriter(out)
	if err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}

	n := 0
	for it.Next() {
		if err := w.Write(it.Trade()); err != nil {
			logger.Error("export failed", "error", err)
			return 1
		}
		n++
	}
	if err := it.Err(); err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}
	if err := w.Flush(); err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}

	logger.Info("export complete", "rows", n, "out", outPath)
	return 0
}

func runSummary(args []string) int {
	var tf tradeFlags
	var candleInterval time.Duration
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	tf.register(fs)
	fs.DurationVar(&candleInterval, "candles", 0, "also print OHLC candles at this interval (e.g. 1m, 1h)")
	fs.Parse(args)

	logger := newLogger(tf.verbose)

	filter, err := tf.filter()
	if err != nil {
		logger.Error("bad filter", "error", err)
		return 1
	}

	ctx := context.Background()
	pool, st, err := openStore(ctx, tf.configPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer pool.Close()

	sum, err := st.Summary(ctx, filter)
	if err != nil {
		logger.Error("summary failed", "error", err)
		return 1
	}

	fmt.Printf("trades:       %d\n", sum.Count)
	if sum.Count == 0 {
		return 0
	}
	fmt.Printf("total size:   %s\n", sum.TotalSize)
	fmt.Printf("total value:  %s\n", sum.TotalValue)
	fmt.Printf("price:        avg=%s min=%s max=%s\n", sum.AvgPrice.Round(6), sum.MinPrice, sum.MaxPrice)
	fmt.Printf("span:         %s .. %s\n",
		sum.FirstTrade.Format(time.RFC3339), sum.LastTrade.Format(time.RFC3339))
	for side, n := range sum.BySide {
		fmt.Printf("side %-5s   %d\n", side+":", n)
	}
	for source, n := range sum.BySource {
		fmt.Printf("source %-5s %d\n", source+":", n)
	}

	if candleInterval > 0 {
		if err := printCandles(ctx, st, filter, candleInterval); err != nil {
			logger.Error("candles failed", "error", err)
			return 1
		}
	}
	return 0
}

// printCandles folds the filtered trades into OHLC buckets. The
// filter should pin a single asset; mixed assets share buckets.
func printCandles(ctx context.Context, st *store.Store, filter store.TradeFilter, interval time.Duration) error {
	b, err := candles.NewBuilder(interval)
	if err != nil {
		return err
	}

	it, err := st.QueryTrades(ctx, filter)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		if err := b.Add(it.Trade()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	fmt.Printf("\n%-20s %-10s %-10s %-10s %-10s %-12s %s\n",
		"start", "open", "high", "low", "close", "volume", "trades")
	for _, c := range b.Finish() {
		fmt.Printf("%-20s %-10s %-10s %-10s %-10s %-12s %d\n",
			c.Start.UTC().Format("2006-01-02T15:04:05Z"),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades)
	}
	return nil
}

func runList(args []string) int {
	var configPath string
	var verbose, includeClosed bool
	var minVolume float64
	var limit int

	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "configs/ticktool.yaml", "path to config file")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&includeClosed, "closed", false, "include resolved markets")
	fs.Float64Var(&minVolume, "min-volume", 0, "minimum lifetime volume")
	fs.IntVar(&limit, "limit", 0, "maximum rows (0 = unlimited)")
	fs.Parse(args)

	logger := newLogger(verbose)

	ctx := context.Background()
	pool, st, err := openStore(ctx, configPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer pool.Close()

	markets, err := st.ListMarkets(ctx, store.MarketFilter{
		IncludeClosed: includeClosed,
		MinVolume:     minVolume,
		Limit:         limit,
	})
	if err != nil {
		logger.Error("list failed", "error", err)
		return 1
	}

	for _, m := range markets {
		status := "open"
		if m.Closed {
			status = "closed"
		}
		fmt.Printf("%-8s vol=%-12.0f %s  [%s/%s]\n",
			status, m.Volume, m.Question, m.OutcomeUp, m.OutcomeDown)
	}
	fmt.Printf("%d markets\n", len(markets))
	return 0
}
