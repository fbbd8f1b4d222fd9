// Command admin runs maintenance tasks against the contract store: bulk
// loads, duplicate cleanup, ad hoc searches and exports, and API key
// management.
//
// Usage:
//
//	go run ./cmd/admin --config configs/development.yaml <command>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/export"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/memory"
	pgstore "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
)

type AdminCLI struct {
	Config   string `help:"Path to config file" default:"configs/development.yaml" type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"info"`

	Load   LoadCmd   `cmd:"" help:"Load contracts from a JSON-lines file, skipping ones already present."`
	Dedupe DedupeCmd `cmd:"" help:"Delete duplicate contracts, keeping the oldest row of each."`
	Stats  StatsCmd  `cmd:"" help:"Print registry-wide statistics."`
	Search SearchCmd `cmd:"" help:"Run a search and print the result as JSON."`
	Export ExportCmd `cmd:"" help:"Write the results of a search to an xlsx workbook."`
	Keys   KeysCmd   `cmd:"" help:"Manage API keys."`
}

type LoadCmd struct {
	File      string `arg:"" help:"JSON-lines file of contracts" type:"existingfile"`
	BatchSize int    `help:"Contracts per insert batch" default:"1000"`
}

type DedupeCmd struct {
	NoBroadcast bool `help:"Do not tell running searchers to drop their caches" default:"false"`
}

type StatsCmd struct{}

type SearchFlags struct {
	Query        string   `arg:"" help:"Search query"`
	Scope        string   `help:"Search scope (all, supplier, title, ...)" default:"all"`
	Field        []string `help:"Restrict matching to these scopes"`
	Institution  []string `help:"Filter by institution acronym"`
	Year         []string `help:"Filter by source year"`
	Status       []string `help:"Filter by contract status"`
	ContractType []string `help:"Filter by contracting type"`
	Procedure    []string `help:"Filter by procedure type"`
	Sort         string   `help:"Sort order (amount_desc, amount_asc, date_desc, date_asc)"`
}

func (f SearchFlags) request() executor.Request {
	return executor.Request{
		Query:  f.Query,
		Scope:  f.Scope,
		Fields: f.Field,
		Filters: query.Filters{
			Institutions:   f.Institution,
			ContractTypes:  f.ContractType,
			ProcedureTypes: f.Procedure,
			Years:          f.Year,
			Statuses:       f.Status,
		},
		Sort: f.Sort,
	}
}

type SearchCmd struct {
	SearchFlags
	Page     int `help:"Page number" default:"1"`
	PageSize int `help:"Rows per page" default:"50"`
}

type ExportCmd struct {
	SearchFlags
	Out string `help:"Output file; defaults to a timestamped name" short:"o"`
}

type KeysCmd struct {
	Create KeyCreateCmd `cmd:"" help:"Create an API key and print it once."`
	List   KeyListCmd   `cmd:"" help:"List API keys."`
	Revoke KeyRevokeCmd `cmd:"" help:"Deactivate an API key."`
}

type KeyCreateCmd struct {
	Name      string        `arg:"" help:"Key name"`
	Role      string        `help:"Key role (reader, admin)" default:"reader" enum:"reader,admin"`
	RateLimit float64       `help:"Requests per second; 0 uses the server default" default:"0"`
	ExpiresIn time.Duration `help:"Expire the key after this long; 0 never expires" default:"0"`
}

type KeyListCmd struct{}

type KeyRevokeCmd struct {
	ID string `arg:"" help:"Key id"`
}

// env holds what every command needs. Close releases it.
type env struct {
	cfg   *config.Config
	store store.Store
	db    *postgres.Client
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

func (cli *AdminCLI) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	// stdout carries command output, so logs go to stderr.
	logger.SetupWriter(os.Stderr, cli.LogLevel, "text")

	if cfg.Store.Backend == "memory" {
		st := memory.New()
		if cfg.Store.SeedFile != "" {
			cs, err := readContracts(cfg.Store.SeedFile)
			if err != nil {
				return nil, err
			}
			if _, err := st.Insert(ctx, cs); err != nil {
				return nil, err
			}
		}
		return &env{cfg: cfg, store: st}, nil
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	st := pgstore.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, store: st, db: db}, nil
}

func (e *env) executor() *executor.Executor {
	return executor.New(executor.Deps{Store: e.store}, executor.Config{
		MaxQueryLength:  e.cfg.Search.MaxQueryLength,
		DefaultPageSize: e.cfg.Search.DefaultPageSize,
		MaxPageSize:     e.cfg.Search.MaxPageSize,
		TopN:            e.cfg.Search.TopN,
		TextMatch:       query.TextMatch(e.cfg.Search.TextMatch),
		StageTimeout:    e.cfg.Search.StageTimeout,
		ExportMaxRows:   e.cfg.Search.ExportMaxRows,
	})
}

func (e *env) keys() (*apikey.Validator, error) {
	if e.db == nil {
		return nil, fmt.Errorf("api keys need the postgres store backend")
	}
	return apikey.NewValidator(e.db), nil
}

func readContracts(path string) ([]contracts.Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	cs, err := contracts.DecodeJSONLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return cs, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *LoadCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	cs, err := readContracts(c.File)
	if err != nil {
		return err
	}
	size := max(c.BatchSize, 1)
	var inserted int64
	for start := 0; start < len(cs); start += size {
		end := min(start+size, len(cs))
		n, err := e.store.Insert(ctx, cs[start:end])
		if err != nil {
			return fmt.Errorf("inserting batch at %d: %w", start, err)
		}
		inserted += n
		slog.Debug("batch inserted", "offset", start, "inserted", n)
	}
	slog.Info("load finished", "file", c.File, "read", len(cs), "inserted", inserted, "skipped", int64(len(cs))-inserted)
	if inserted > 0 {
		broadcast(ctx, e.cfg, "load")
	}
	return nil
}

func (c *DedupeCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.store.DeleteDuplicates(ctx)
	if err != nil {
		return err
	}
	if report.Deleted > 0 && !c.NoBroadcast {
		broadcast(ctx, e.cfg, "dedupe")
	}
	return printJSON(report)
}

// broadcast asks running searchers to drop their caches. It only warns on
// failure; the caches expire on their own.
func broadcast(ctx context.Context, cfg *config.Config, reason string) {
	if len(cfg.Kafka.Brokers) == 0 {
		return
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer producer.Close()
	if _, err := cache.NewCoordinator(nil, producer).Invalidate(ctx, reason); err != nil {
		slog.Warn("cache invalidation broadcast failed", "error", err)
	}
}

func (c *StatsCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.store.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func (c *SearchCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	req := c.request()
	req.Page, req.PageSize = c.Page, c.PageSize
	res, err := e.executor().Search(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func (c *ExportCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := e.executor().Export(ctx, c.request())
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		out = data.Filename()
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.Write(f, *data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("export written", "file", out, "rows", len(data.Rows), "truncated", data.Truncated)
	return nil
}

func (c *KeyCreateCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	v, err := e.keys()
	if err != nil {
		return err
	}
	role, err := apikey.ParseRole(c.Role)
	if err != nil {
		return err
	}
	var expires *time.Time
	if c.ExpiresIn > 0 {
		t := time.Now().Add(c.ExpiresIn).UTC()
		expires = &t
	}
	raw, err := v.CreateKey(ctx, c.Name, role, c.RateLimit, expires)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func (c *KeyListCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	v, err := e.keys()
	if err != nil {
		return err
	}
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tRATE\tACTIVE")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%t\n", k.ID, k.Name, k.Role, k.RateLimit, k.IsActive)
	}
	return tw.Flush()
}

func (c *KeyRevokeCmd) Run(ctx context.Context, cli *AdminCLI) error {
	e, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	v, err := e.keys()
	if err != nil {
		return err
	}
	if err := v.RevokeKey(ctx, c.ID); err != nil {
		return err
	}
	slog.Info("api key revoked", "id", c.ID)
	return nil
}

func main() {
	var cli AdminCLI
	kctx := kong.Parse(&cli,
		kong.Name("contracts-admin"),
		kong.Description("Maintenance tasks for the contracts search platform"),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
