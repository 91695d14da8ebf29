package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/configutil"
	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/auth"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/orders"
	"vitasana-backend/services/scanner"
	"vitasana-backend/services/scheduler"
	"vitasana-backend/services/tracker"
)

type Config struct {
	General struct {
		// DbPath is a local sqlite file or a libsql:// URL for a
		// hosted replica.
		DbPath      string `json:"db_path"`
		DbAuthToken string `json:"db_auth_token"`
		DataDir     string `json:"data_dir"`
	} `json:"general"`
	Shop struct {
		BaseUrl     string `json:"base_url"`
		SearchPath  string `json:"search_path"`
		ListingPath string `json:"listing_path"`
		// QuerySemantics is how the shop's search endpoint matches
		// queries: "starts_with" or "contains".
		QuerySemantics string `json:"query_semantics"`
	} `json:"shop"`
	Credentials struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		StatePath string `json:"state_path"`
	} `json:"credentials"`
	Supplier struct {
		BaseUrl     string `json:"base_url"`
		ProductPath string `json:"product_path"`
		ClientId    string `json:"client_id"`
		Username    string `json:"username"`
		Password    string `json:"password"`
	} `json:"supplier"`
	Workers struct {
		Discovery  int `json:"discovery"`
		Monitoring int `json:"monitoring"`
	} `json:"workers"`
	Scheduler struct {
		Mode          string   `json:"mode"`
		IntervalHours float64  `json:"interval_hours"`
		FixedTimes    []string `json:"fixed_times"`
	} `json:"scheduler"`
	Woocommerce struct {
		BaseUrl        string   `json:"base_url"`
		ConsumerKey    string   `json:"consumer_key"`
		ConsumerSecret string   `json:"consumer_secret"`
		Statuses       []string `json:"statuses"`
	} `json:"woocommerce"`
	Server struct {
		Port int `json:"port"`
	} `json:"server"`
}

var rootCmd = &cobra.Command{
	Use:   "vitasana",
	Short: "vitasana monitors a pharmacy shop's catalog, stock and orders.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.General.DbPath == "" {
		cfg.General.DbPath = "vitasana.db"
	}
	if cfg.General.DataDir == "" {
		cfg.General.DataDir = "data"
	}
	return cfg
}

func openStore(cfg Config) *catalog.Store {
	database, err := catalog.OpenDB(cfg.General.DbPath, cfg.General.DbAuthToken)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	return catalog.NewStore(database)
}

func optimizedListPath(cfg Config) string {
	return filepath.Join(cfg.General.DataDir, "optimized_prefixes.json")
}

func querySemantics(cfg Config) scanner.QuerySemantics {
	if cfg.Shop.QuerySemantics == string(scanner.SemanticsContains) {
		return scanner.SemanticsContains
	}
	return scanner.SemanticsStartsWith
}

func newSession(cfg Config) *auth.Session {
	statePath := cfg.Credentials.StatePath
	if statePath == "" {
		statePath = filepath.Join(cfg.General.DataDir, "session.yaml")
	}
	session, err := auth.NewSession(auth.Options{
		BaseUrl: cfg.Shop.BaseUrl,
		Credential: auth.Credential{
			Email:    cfg.Credentials.Email,
			Password: cfg.Credentials.Password,
		},
		StatePath: statePath,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize session", err)
	}
	return session
}

func newScanner(cfg Config, store *catalog.Store, session *auth.Session) *scanner.Scanner {
	return scanner.NewScanner(scanner.Options{
		Client: scanner.NewClient(scanner.ClientOptions{
			BaseUrl:    cfg.Shop.BaseUrl,
			SearchPath: cfg.Shop.SearchPath,
			Session:    session,
		}),
		Store:             store,
		OptimizedListPath: optimizedListPath(cfg),
	})
}

func newTracker(cfg Config, store *catalog.Store) *tracker.Tracker {
	return tracker.NewTracker(tracker.Options{
		Store:       store,
		BaseUrl:     cfg.Supplier.BaseUrl,
		ProductPath: cfg.Supplier.ProductPath,
		ClientId:    cfg.Supplier.ClientId,
		Username:    cfg.Supplier.Username,
		Password:    cfg.Supplier.Password,
		Workers:     cfg.Workers.Monitoring,
	})
}

func newOrdersService(cfg Config, store *catalog.Store, trk *tracker.Tracker) *orders.Service {
	opts := orders.Options{
		Store: store,
		Client: orders.NewClient(orders.ClientOptions{
			BaseUrl:        cfg.Woocommerce.BaseUrl,
			ConsumerKey:    cfg.Woocommerce.ConsumerKey,
			ConsumerSecret: cfg.Woocommerce.ConsumerSecret,
		}),
		Statuses: cfg.Woocommerce.Statuses,
	}
	if trk != nil {
		opts.Refresh = trk.CheckSku
	}
	return orders.NewService(opts)
}

func schedulerConfig(cfg Config) scheduler.Config {
	return scheduler.Config{
		Mode:       cfg.Scheduler.Mode,
		Interval:   time.Duration(cfg.Scheduler.IntervalHours * float64(time.Hour)),
		FixedTimes: cfg.Scheduler.FixedTimes,
	}
}
