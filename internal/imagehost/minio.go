package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"vtex/migrator/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// MinioRehoster downloads an image from the legacy site and re-hosts it
// in a public object-store bucket under a stable deterministic name, so
// the remote catalog can reference it long after the legacy site is gone.
type MinioRehoster struct {
	store      *minio.Client
	downloader *resty.Client
	bucket     string
	prefix     string
	publicBase string
}

func NewMinioRehoster(cfg config.ImagesConfig) (*MinioRehoster, error) {
	store, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store client: %w", err)
	}

	downloader := resty.New().
		SetTimeout(60 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return &MinioRehoster{
		store:      store,
		downloader: downloader,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Rehost fetches the source bytes and uploads them under fileName,
// returning the stable public URL. A download failure is terminal for the
// image; the caller records it and moves on without retries.
func (r *MinioRehoster) Rehost(ctx context.Context, sourceURL, fileName string) (string, error) {
	resp, err := r.downloader.R().SetContext(ctx).Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", sourceURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("download %s: HTTP %d", sourceURL, resp.StatusCode())
	}
	data := resp.Bytes()
	if len(data) == 0 {
		return "", fmt.Errorf("download %s: empty body", sourceURL)
	}

	objectName := fileName
	if r.prefix != "" {
		objectName = r.prefix + "/" + fileName
	}

	_, err = r.store.PutObject(ctx, r.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeFor(fileName),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	publicURL := fmt.Sprintf("%s/%s/%s", r.publicBase, r.bucket, objectName)
	log.Debugf("Re-hosted %s as %s", sourceURL, publicURL)
	return publicURL, nil
}
