// Package archive uploads a copy of the sheet to S3 before old years are
// purged from it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/warp/order-sheet/sheet"
)

// PutObjectAPI is the part of *s3.Client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores snapshots under purges/<year>/<revision>.json.
type S3 struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// New loads the default AWS configuration for region and returns an
// archiver writing to bucket.
func New(ctx context.Context, region, bucket string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3{Client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: "purges"}, nil
}

// Key returns the object key of snap archived before purging through year.
func (a *S3) Key(year int, snap sheet.Snapshot) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "purges"
	}
	return fmt.Sprintf("%s/%d/%s.json", prefix, year, snap.Revision)
}

// Archive uploads snap.
func (a *S3) Archive(ctx context.Context, year int, snap sheet.Snapshot) error {
	key := a.Key(year, snap)
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(snap.Data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"origin":   snap.Origin,
			"revision": snap.Revision,
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.Bucket, key, err)
	}

	slog.InfoContext(ctx, "archived sheet", "bucket", a.Bucket, "key", key, "bytes", len(snap.Data))
	return nil
}
