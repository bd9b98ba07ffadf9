// Command enrolld is the long-running enrollment daemon. On every tick it
// scrapes the configured coupon aggregators, filters the listings and redeems
// the surviving coupons against the authenticated platform session.
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/configutil"
	"coursepilot-backend/lib/credentials"
	"coursepilot-backend/lib/platforms/udemy"
	"coursepilot-backend/lib/scraper"
	"coursepilot-backend/lib/scrapers/discudemy"
	"coursepilot-backend/lib/scrapers/realdiscount"
	"coursepilot-backend/lib/serviceutil"
	"coursepilot-backend/lib/sqliteutil"
	"coursepilot-backend/lib/telemetry"
	"coursepilot-backend/services/enroller"
	enrollerdb "coursepilot-backend/services/enroller/db"
)

type AuthConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// json file with cookies keyed by browser id, used instead of
	// email/password when set
	CookieFile string `json:"cookie_file"`
	Browser    string `json:"browser"`
}

type SourcesConfig struct {
	RealDiscount bool `json:"real_discount"`
	Discudemy    bool `json:"discudemy"`
	// listing pages to crawl on page-based sources
	Pages int `json:"pages"`
}

type Config struct {
	Auth    AuthConfig       `json:"auth"`
	Sources SourcesConfig    `json:"sources"`
	Filter  *catalog.Options `json:"filter"`
	// attempts per run
	MaxEnroll int `json:"max_enroll"`
	// sqlite path for the enrollment history
	Database string `json:"database"`
	// minutes between runs; 0 runs once and exits
	IntervalMinutes int `json:"interval_minutes"`
	// seconds between enrollment attempts
	EnrollDelaySeconds int `json:"enroll_delay_seconds"`
}

func buildSources(config SourcesConfig) []scraper.Source {
	var sources []scraper.Source
	if config.RealDiscount {
		sources = append(sources, realdiscount.New(realdiscount.Options{}))
	}
	if config.Discudemy {
		sources = append(sources, discudemy.New(discudemy.Options{Pages: config.Pages}))
	}
	return sources
}

func authenticate(ctx context.Context, client *udemy.Client, config AuthConfig) error {
	if config.CookieFile != "" {
		provider := credentials.FileProvider{Path: config.CookieFile}
		cookies, err := provider.LoadCookies(ctx, config.Browser)
		if err != nil {
			return err
		}
		if err := client.SetBrowserCookies(cookies); err != nil {
			return err
		}
		ok, err := client.Validate(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return udemy.ErrAuthenticationFailed
		}
		return nil
	}
	return client.LoginEmailPassword(ctx, config.Email, config.Password)
}

func main() {
	telemetry.InitSlog(false)
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("enrolld.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "enrolld")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	sources := buildSources(config.Sources)
	if len(sources) == 0 {
		serviceutil.Fatal("no sources enabled", errors.New("enable at least one source in enrolld.json5"))
	}

	client, err := udemy.NewClient(udemy.ClientOptions{
		EnrollDelay: time.Duration(config.EnrollDelaySeconds) * time.Second,
	})
	if err != nil {
		serviceutil.Fatal("failed to create platform client", err)
	}
	if err := authenticate(ctx, client, config.Auth); err != nil {
		serviceutil.Fatal("failed to authenticate", err)
	}

	dbPath := config.Database
	if dbPath == "" {
		dbPath = "enroller.db"
	}
	database, err := sqliteutil.OpenDB(enrollerdb.Schema, dbPath)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	defer database.Close()

	service := enroller.NewService(enroller.Options{
		Sources:   sources,
		Client:    client,
		Filter:    config.Filter,
		MaxEnroll: config.MaxEnroll,
		Database:  database,
	})

	run := func() {
		report, err := service.FetchAndEnroll(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "enrollment run failed", "err", err)
			return
		}
		slog.InfoContext(ctx, "enrollment run complete",
			"fetched", report.Fetched,
			"matched", report.Matched,
			"attempted", report.Attempted,
			"succeeded", report.Succeeded())
	}

	run()
	if config.IntervalMinutes <= 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(config.IntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
