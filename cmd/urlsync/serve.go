package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/movapages/angular-url-form-sync/pkg/bridge"
	"github.com/movapages/angular-url-form-sync/pkg/fetch"
	s3fetch "github.com/movapages/angular-url-form-sync/pkg/fetch/s3"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/middleware"
	"github.com/movapages/angular-url-form-sync/pkg/urlsync"
	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

func serveCmd() *cobra.Command {
	var (
		addr        string
		quietWindow time.Duration
		attempts    int
		pushMode    bool
		s3Bucket    string
		s3Prefix    string
		s3Region    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync bridge with a demo log-viewer screen",
		Long: `Serve a WebSocket sync bridge hosting a log-viewer filter screen:

  accountId  integer
  needToFix  boolean
  level      string array (comma separated on the wire)
  dateFrom   calendar date (YYYY-MM-DD)
  dateTo     calendar date (YYYY-MM-DD)
  q          free text
  severity   enum (minor, major, critical)

Results come from an in-memory demo source by default, or from an S3
bucket listing when --s3-bucket is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			slog.SetDefault(logger)

			registry, err := logViewerRegistry()
			if err != nil {
				return err
			}

			fetcher := demoFetcher()
			if s3Bucket != "" {
				fetcher = s3Fetcher(s3Bucket, s3Prefix, s3Region)
			}

			engineOpts := []urlsync.Option{
				urlsync.WithMiddleware(middleware.Prometheus()),
			}
			if pushMode {
				engineOpts = append(engineOpts, urlsync.WithMode(wire.ModePush))
			}

			srv := bridge.NewServer(registry,
				middleware.InstrumentFetcher(fetcher),
				bridge.WithLogger(logger),
				bridge.WithEngineOptions(engineOpts...),
				bridge.WithFetchOptions(
					fetch.WithQuietWindow(quietWindow),
					fetch.WithAttempts(attempts),
					fetch.WithValidator(dateRangeValid),
				),
			)
			defer srv.Close()

			r := chi.NewRouter()
			r.Use(chimw.RequestID)
			r.Use(chimw.Recoverer)
			srv.Mount(r)

			logger.Info("listening", "addr", addr)
			return http.ListenAndServe(addr, r)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&quietWindow, "quiet-window", 300*time.Millisecond, "Debounce quiet window before fetching")
	cmd.Flags().IntVar(&attempts, "attempts", 3, "Total fetch attempts per request")
	cmd.Flags().BoolVar(&pushMode, "push", false, "Push history entries instead of replacing")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "List results from this S3 bucket instead of the demo source")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "Key prefix for S3 listings")
	cmd.Flags().StringVar(&s3Region, "s3-region", "us-east-1", "AWS region for S3 listings")

	return cmd
}

// logViewerRegistry declares the demo screen's fields.
func logViewerRegistry() (*filter.Registry, error) {
	return filter.NewRegistry(
		filter.FieldSpec{Name: "accountId", Kind: filter.KindInteger},
		filter.FieldSpec{Name: "needToFix", Kind: filter.KindBoolean},
		filter.FieldSpec{Name: "level", Kind: filter.KindStringArray},
		filter.FieldSpec{Name: "dateFrom", Kind: filter.KindDate},
		filter.FieldSpec{Name: "dateTo", Kind: filter.KindDate},
		filter.FieldSpec{Name: "q", Kind: filter.KindText},
		filter.FieldSpec{Name: "severity", Kind: filter.KindEnum,
			EnumValues: []string{"minor", "major", "critical"}},
	)
}

// dateRangeValid gates fetching until the date range is coherent. An
// inverted range still syncs to the URL; it just does not hit the
// backend.
func dateRangeValid(snap filter.Snapshot) bool {
	from, hasFrom := snap.Get("dateFrom").Date()
	to, hasTo := snap.Get("dateTo").Date()
	if !hasFrom || !hasTo {
		return true
	}
	if from.Year != to.Year {
		return from.Year < to.Year
	}
	if from.Month != to.Month {
		return from.Month < to.Month
	}
	return from.Day <= to.Day
}

// logEntry is one row of the demo data set.
type logEntry struct {
	AccountID int64  `json:"accountId"`
	Level     string `json:"level"`
	NeedToFix bool   `json:"needToFix"`
	Date      string `json:"date"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

var demoEntries = []logEntry{
	{AccountID: 42, Level: "error", NeedToFix: true, Date: "2024-03-01", Severity: "critical", Message: "payment gateway timeout"},
	{AccountID: 42, Level: "warn", NeedToFix: false, Date: "2024-03-02", Severity: "major", Message: "retrying webhook delivery"},
	{AccountID: 42, Level: "info", NeedToFix: false, Date: "2024-03-02", Severity: "minor", Message: "webhook delivered"},
	{AccountID: 7, Level: "error", NeedToFix: true, Date: "2024-03-03", Severity: "major", Message: "invoice render failed"},
	{AccountID: 7, Level: "debug", NeedToFix: false, Date: "2024-03-03", Severity: "minor", Message: "cache warmed"},
	{AccountID: 13, Level: "warn", NeedToFix: true, Date: "2024-03-04", Severity: "major", Message: "quota at 90 percent"},
}

// demoFetcher filters the built-in entries by the snapshot. It sleeps
// briefly so the coordinator's debounce and cancellation are visible in
// the demo.
func demoFetcher() fetch.Fetcher[any] {
	return fetch.FetcherFunc[any](func(ctx context.Context, snap filter.Snapshot) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}

		out := make([]logEntry, 0, len(demoEntries))
		for _, e := range demoEntries {
			if !demoMatch(e, snap) {
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
}

func demoMatch(e logEntry, snap filter.Snapshot) bool {
	if id, ok := snap.Get("accountId").Int(); ok && id != e.AccountID {
		return false
	}
	if fix, ok := snap.Get("needToFix").Bool(); ok && fix != e.NeedToFix {
		return false
	}
	if levels, ok := snap.Get("level").Strings(); ok && len(levels) > 0 {
		found := false
		for _, l := range levels {
			if l == e.Level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q, ok := snap.Get("q").Text(); ok && q != "" {
		if !strings.Contains(e.Message, q) {
			return false
		}
	}
	if sev, ok := snap.Get("severity").Text(); ok && sev != e.Severity {
		return false
	}
	if from, ok := snap.Get("dateFrom").Date(); ok && e.Date < from.String() {
		return false
	}
	if to, ok := snap.Get("dateTo").Date(); ok && e.Date > to.String() {
		return false
	}
	return true
}

// s3Fetcher lists objects from a bucket, narrowed by the screen's date
// range.
func s3Fetcher(bucket, prefix, region string) fetch.Fetcher[any] {
	client := awss3.New(awss3.Options{Region: region})
	f := s3fetch.NewFetcher(client, bucket,
		s3fetch.WithPrefix(prefix),
		s3fetch.WithDateRange("dateFrom", "dateTo"),
	)
	return fetch.FetcherFunc[any](func(ctx context.Context, snap filter.Snapshot) (any, error) {
		objects, err := f.Fetch(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		return objects, nil
	})
}
