package s3blob

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/polydeck/polydeck/internal/domain"
)

// snapshot is the archived payload of one sync run.
type snapshot struct {
	RunID     string          `json:"runId"`
	CreatedAt time.Time       `json:"createdAt"`
	Count     int             `json:"count"`
	Markets   []domain.Market `json:"markets"`
}

// Archiver writes one gzipped JSON snapshot per sync run, keyed by run date
// and id: snapshots/YYYY/MM/DD/<runID>.json.gz.
type Archiver struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewArchiver creates an Archiver backed by the given client.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{
		client:   c.s3,
		uploader: manager.NewUploader(c.s3),
		bucket:   c.bucket,
	}
}

// SnapshotKey builds the object key for a run.
func SnapshotKey(runID string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.json.gz", at.UTC().Format("2006/01/02"), runID)
}

// Archive uploads the markets of one sync run as a gzipped JSON object and
// returns the object key. The payload is streamed through a pipe so large
// batches never buffer fully in memory.
func (a *Archiver) Archive(ctx context.Context, runID string, at time.Time, markets []domain.Market) (string, error) {
	key := SnapshotKey(runID, at)

	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		enc := json.NewEncoder(gz)
		err := enc.Encode(snapshot{
			RunID:     runID,
			CreatedAt: at.UTC(),
			Count:     len(markets),
			Markets:   markets,
		})
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            pr,
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot %s: %w", key, err)
	}
	return key, nil
}
