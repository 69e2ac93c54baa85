package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Fetch resolves a document ref to a local PDF path. Supported refs:
//   - plain filesystem paths and file://path
//   - http:// and https:// URLs (downloaded to temp)
//   - s3://bucket/key (downloaded to temp via AWS SDK v2)
//
// The returned cleanup removes any temp file and is always safe to call.
func Fetch(ctx context.Context, ref string) (string, func(), error) {
	cleanup := func() {}

	var localPath string
	var err error

	switch {
	case strings.HasPrefix(ref, "s3://"):
		localPath, err = downloadS3ToTemp(ctx, ref)
		if err == nil {
			p := localPath
			cleanup = func() { os.Remove(p) }
		}
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		localPath, err = downloadHTTPToTemp(ctx, ref)
		if err == nil {
			p := localPath
			cleanup = func() { os.Remove(p) }
		}
	case strings.HasPrefix(ref, "file://"):
		localPath = strings.TrimPrefix(ref, "file://")
	default:
		localPath = ref
	}
	if err != nil {
		return "", cleanup, err
	}

	if err := validatePDF(localPath); err != nil {
		cleanup()
		return "", func() {}, err
	}

	return localPath, cleanup, nil
}

// validatePDF checks magic bytes, not the filename.
func validatePDF(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}
	if mtype.String() != "application/pdf" {
		return fmt.Errorf("unsupported file type %s, only PDF is accepted", mtype.String())
	}
	return nil
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}

	f, err := os.CreateTemp("", "deckdl-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
	// s3://bucket/key
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 {
		return "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := path[:slash]
	key := path[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	cli := s3.NewFromConfig(cfg)

	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "s3deck-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, out.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("downloaded s3 document to temp")
	return f.Name(), nil
}
