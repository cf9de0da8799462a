package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader archives segment zips to an S3 bucket under an "archive/" prefix.
type Uploader struct {
	client *s3.Client
	bucket string
}

// NewUploader creates an Uploader for the given bucket.
func NewUploader(client *s3.Client, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// ArchiveSegment zips the segment directory, uploads the zip, and removes
// the local zip. The segment directory itself is left in place; retention of
// source media is a caller decision.
func (u *Uploader) ArchiveSegment(ctx context.Context, segmentID, segmentDir string) (string, error) {
	zipPath := filepath.Join(os.TempDir(), segmentID+".zip")
	if err := BuildSegmentZip(segmentDir, zipPath); err != nil {
		return "", err
	}
	defer os.Remove(zipPath)

	key := fmt.Sprintf("archive/%s/%s.zip", time.Now().UTC().Format("2006-01-02"), segmentID)

	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()

	contentType := "application/zip"
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload segment archive: %w", err)
	}

	log.Info().
		Str("segmentId", segmentID).
		Str("key", key).
		Msg("Segment archived to S3")
	return key, nil
}
