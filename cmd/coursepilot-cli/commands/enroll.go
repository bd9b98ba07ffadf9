package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/configutil"
	"coursepilot-backend/lib/credentials"
	"coursepilot-backend/lib/platforms/udemy"
	"coursepilot-backend/lib/scraper"
	"coursepilot-backend/lib/serviceutil"
	"coursepilot-backend/lib/sqliteutil"
	"coursepilot-backend/services/enroller"
	enrollerdb "coursepilot-backend/services/enroller/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type AuthConfig struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	CookieFile string `json:"cookie_file"`
	Browser    string `json:"browser"`
}

type EnrollConfig struct {
	Auth   AuthConfig       `json:"auth"`
	Filter *catalog.Options `json:"filter"`
}

var (
	enrollPages  *int
	enrollMax    *int
	enrollDryRun *bool
	enrollDb     *string
	enrollDelay  *int
)

func init() {
	enrollPages = enrollCmd.Flags().Int("pages", 2, "Listing pages to crawl on page-based sources.")
	enrollMax = enrollCmd.Flags().Int("max", 10, "Maximum enrollment attempts for this run.")
	enrollDryRun = enrollCmd.Flags().Bool("dry-run", false, "Print the courses that would be enrolled without enrolling.")
	enrollDb = enrollCmd.Flags().String("db", "enroller.db", "The database to record enrollment history to.")
	enrollDelay = enrollCmd.Flags().Int("delay", 2, "Seconds to wait between enrollment attempts.")
	rootCmd.AddCommand(enrollCmd)
}

func createClient(ctx context.Context, config AuthConfig, delay time.Duration) *udemy.Client {
	client, err := udemy.NewClient(udemy.ClientOptions{EnrollDelay: delay})
	if err != nil {
		serviceutil.Fatal("failed to create platform client", err)
	}

	if config.CookieFile != "" {
		provider := credentials.FileProvider{Path: config.CookieFile}
		cookies, err := provider.LoadCookies(ctx, config.Browser)
		if err != nil {
			serviceutil.Fatal("failed to load cookies", err)
		}
		if err := client.SetBrowserCookies(cookies); err != nil {
			serviceutil.Fatal("failed to set cookies", err)
		}
		ok, err := client.Validate(ctx)
		if err != nil {
			serviceutil.Fatal("failed to validate session", err)
		}
		if !ok {
			serviceutil.Fatal("session is not authenticated", udemy.ErrAuthenticationFailed)
		}
		return client
	}

	if err := client.LoginEmailPassword(ctx, config.Email, config.Password); err != nil {
		serviceutil.Fatal("failed to login", err)
	}
	return client
}

var enrollCmd = &cobra.Command{
	Use:   "enroll [--dry-run] [--max <n>] [--db <path/to/history.db>]",
	Short: "Fetches coupon listings, filters them and enrolls in the survivors.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		config, err := configutil.ReadConfig[EnrollConfig]("coursepilot.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		if *enrollDryRun {
			listings, err := scraper.Aggregate(ctx, allSources(*enrollPages))
			if len(listings) == 0 && err != nil {
				serviceutil.Fatal("failed to fetch listings", err)
			}
			filter := enroller.DefaultFilter
			if config.Filter != nil {
				filter = *config.Filter
			}
			matched := catalog.Filter(listings, filter)
			if len(matched) > *enrollMax {
				matched = matched[:*enrollMax]
			}
			renderListings(matched)
			return
		}

		client := createClient(ctx, config.Auth, time.Duration(*enrollDelay)*time.Second)
		slog.Info("authenticated", "user", client.Profile().DisplayName)

		database, err := sqliteutil.OpenDB(enrollerdb.Schema, *enrollDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		service := enroller.NewService(enroller.Options{
			Sources:   allSources(*enrollPages),
			Client:    client,
			Filter:    config.Filter,
			MaxEnroll: *enrollMax,
			Database:  database,
		})

		report, err := service.FetchAndEnroll(ctx)
		if err != nil {
			serviceutil.Fatal("enrollment run failed", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"URL", "Success", "Reason", "Message"})
		for url, result := range report.Results {
			t.AppendRow(table.Row{url, result.Success, string(result.Reason), result.Message})
		}
		t.Render()

		slog.Info("run complete",
			"fetched", report.Fetched,
			"matched", report.Matched,
			"attempted", report.Attempted,
			"succeeded", report.Succeeded())
	},
}
