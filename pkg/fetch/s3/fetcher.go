// Package s3 provides a Fetcher that answers filter snapshots by
// listing objects in an S3 bucket. It exists both as a usable backend
// and as the reference for writing fetchers against real, slow,
// cancellable sources.
package s3

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/movapages/angular-url-form-sync/pkg/filter"
)

// Object is one listed S3 object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Fetcher lists bucket objects matching a filter snapshot.
//
// Example:
//
//	client := awss3.New(awss3.Options{Region: "eu-west-1"})
//	f := s3.NewFetcher(client, "log-archive",
//	    s3.WithPrefix("logs/"),
//	    s3.WithDateRange("dateFrom", "dateTo"),
//	)
//	coord := fetch.New[[]s3.Object](f, applyResults)
type Fetcher struct {
	client   *awss3.Client
	bucket   string
	prefix   string
	pageSize int32

	keyFn              func(snap filter.Snapshot) string
	fromField, toField string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPrefix sets a static key prefix for all listings.
func WithPrefix(prefix string) FetcherOption {
	return func(f *Fetcher) { f.prefix = prefix }
}

// WithPageSize sets the listing page size. Default 1000.
func WithPageSize(n int32) FetcherOption {
	return func(f *Fetcher) { f.pageSize = n }
}

// WithKeyFunc derives the listing prefix from the snapshot, appended to
// the static prefix. Lets a screen narrow the listing by, say, an
// account id field.
func WithKeyFunc(fn func(snap filter.Snapshot) string) FetcherOption {
	return func(f *Fetcher) { f.keyFn = fn }
}

// WithDateRange filters listed objects by LastModified calendar date
// using two date fields of the snapshot. Absent bounds are open.
func WithDateRange(fromField, toField string) FetcherOption {
	return func(f *Fetcher) {
		f.fromField = fromField
		f.toField = toField
	}
}

// NewFetcher creates a fetcher listing the given bucket.
func NewFetcher(client *awss3.Client, bucket string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{client: client, bucket: bucket, pageSize: 1000}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch lists objects for the snapshot. It honors ctx cancellation
// between pages, which is what the coordinator's latest-wins cancel
// relies on.
func (f *Fetcher) Fetch(ctx context.Context, snap filter.Snapshot) ([]Object, error) {
	prefix := f.prefix
	if f.keyFn != nil {
		prefix += f.keyFn(snap)
	}

	from, hasFrom := dateBound(snap, f.fromField)
	to, hasTo := dateBound(snap, f.toField)

	paginator := awss3.NewListObjectsV2Paginator(f.client, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(f.pageSize),
	})

	var out []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			o := Object{Key: *obj.Key}
			if obj.Size != nil {
				o.Size = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			if hasFrom || hasTo {
				d := filter.DateOf(o.LastModified)
				if hasFrom && before(d, from) {
					continue
				}
				if hasTo && before(to, d) {
					continue
				}
			}
			out = append(out, o)
		}
	}
	return out, nil
}

// dateBound reads a date field from the snapshot.
func dateBound(snap filter.Snapshot, field string) (filter.Date, bool) {
	if field == "" {
		return filter.Date{}, false
	}
	return snap.Get(field).Date()
}

// before reports whether a sorts strictly earlier than b.
func before(a, b filter.Date) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}
