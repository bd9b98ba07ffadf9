package commands

import (
	"os"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/scraper"
	"coursepilot-backend/lib/scrapers/discudemy"
	"coursepilot-backend/lib/scrapers/realdiscount"
	"coursepilot-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	fetchPages       *int
	fetchMinRating   *float64
	fetchMaxDuration *float64
	fetchInclude     *[]string
	fetchExclude     *[]string
	fetchSortBy      *string
	fetchStats       *bool
)

func init() {
	fetchPages = fetchCmd.Flags().Int("pages", 2, "Listing pages to crawl on page-based sources.")
	fetchMinRating = fetchCmd.Flags().Float64("min-rating", 0, "Drop listings rated below this.")
	fetchMaxDuration = fetchCmd.Flags().Float64("max-duration", 0, "Drop listings longer than this many hours.")
	fetchInclude = fetchCmd.Flags().StringSlice("include", nil, "Keep only listings matching one of these keywords.")
	fetchExclude = fetchCmd.Flags().StringSlice("exclude", nil, "Drop listings matching any of these keywords.")
	fetchSortBy = fetchCmd.Flags().String("sort", "rating", "Sort key: rating, duration, students or title.")
	fetchStats = fetchCmd.Flags().Bool("stats", false, "Print catalog statistics instead of listings.")
	rootCmd.AddCommand(fetchCmd)
}

func allSources(pages int) []scraper.Source {
	return []scraper.Source{
		realdiscount.New(realdiscount.Options{}),
		discudemy.New(discudemy.Options{Pages: pages}),
	}
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetches current coupon listings from every source and prints them.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		listings, err := scraper.Aggregate(ctx, allSources(*fetchPages))
		if len(listings) == 0 && err != nil {
			serviceutil.Fatal("failed to fetch listings", err)
		}

		listings = catalog.Filter(listings, catalog.Options{
			MinRating:        *fetchMinRating,
			MaxDurationHours: *fetchMaxDuration,
			IncludeKeywords:  *fetchInclude,
			ExcludeKeywords:  *fetchExclude,
		})
		listings = catalog.Sort(listings, *fetchSortBy, true)

		if *fetchStats {
			renderStats(catalog.Stats(listings))
			return
		}
		renderListings(listings)
	},
}

func renderListings(listings []catalog.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Rating", "Duration", "Source", "URL"})
	for _, l := range listings {
		t.AppendRow(table.Row{l.Title, l.Rating, l.Duration, l.Source, l.URL})
	}
	t.Render()
}

func renderStats(stats catalog.Statistics) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"Listings", stats.Total})
	t.AppendRow(table.Row{"Languages", len(stats.Languages)})
	t.AppendRow(table.Row{"Categories", len(stats.Categories)})
	t.AppendRow(table.Row{"Instructors", len(stats.Instructors)})
	t.AppendRow(table.Row{"Rating range", stats.RatingMin, stats.RatingMax})
	t.AppendRow(table.Row{"Duration range (h)", stats.DurationMin, stats.DurationMax})
	t.Render()
}
