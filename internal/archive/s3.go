// Package archive keeps a durable JSON record of every publication in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// objectPutter is the part of *s3.Client the archiver uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver is a publish recorder writing {prefix}{yyyy/mm/dd}/{id}.json
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archiver builds a client from the default AWS chain with optional region and profile
func NewS3Archiver(ctx context.Context, cfg model.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required (set S3_BUCKET)")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Name identifies the recorder in logs
func (a *S3Archiver) Name() string {
	return "s3"
}

// ObjectKey returns the key pub is archived under
func (a *S3Archiver) ObjectKey(pub *model.Publication) string {
	return a.prefix + pub.PublishedAt.UTC().Format("2006/01/02") + "/" + safeName(pub.ID) + ".json"
}

// Record uploads pub as an indented JSON document
func (a *S3Archiver) Record(ctx context.Context, pub *model.Publication) error {
	body, err := json.MarshalIndent(pub, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal publication: %w", err)
	}

	key := a.ObjectKey(pub)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"item-id":   pub.ItemID,
			"publisher": pub.Publisher,
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

func safeName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(id)
}
