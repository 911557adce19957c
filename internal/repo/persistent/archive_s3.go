package persistent

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andreyxaxa/Resale-Delister/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveRepo writes cleanup batches to an S3 bucket.
type ArchiveRepo struct {
	*s3client.S3Client
	bucket string
}

func NewArchiveRepo(s3c *s3client.S3Client, bucket string) *ArchiveRepo {
	return &ArchiveRepo{s3c, bucket}
}

func (r *ArchiveRepo) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("ArchiveRepo - Put - r.Client.PutObject: %w", err)
	}

	return nil
}
