// Package artifact resolves the fitted scaler and model artifacts. Artifacts
// live either on local disk or in an S3-compatible object store
// (LocalStack/MinIO); the trainer uploads them and the serving paths download
// them once at cold start.
package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client talks to an S3-compatible object store using path-style requests.
type Client struct {
	rest     *resty.Client
	endpoint string
	bucket   string
}

// NewClient builds a store client for the given endpoint and bucket.
// Credentials are passed through as headers for stores that check them;
// LocalStack accepts the defaults.
func NewClient(endpoint, bucket, accessKey, secretKey, region string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	r.SetHeader("x-amz-security-region", region)
	if accessKey != "" {
		r.SetHeader("Authorization", fmt.Sprintf("AWS %s:%s", accessKey, secretKey))
	}

	return &Client{
		rest:     r,
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   bucket,
	}
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.bucket }

func (c *Client) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, strings.TrimLeft(key, "/"))
}

// EnsureBucket creates the bucket if it does not exist. An already-existing
// bucket is not an error.
func (c *Client) EnsureBucket(ctx context.Context) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		Put(fmt.Sprintf("%s/%s", c.endpoint, c.bucket))
	if err != nil {
		return fmt.Errorf("artifact: create bucket %s: %w", c.bucket, err)
	}
	switch resp.StatusCode() {
	case 200, 204, 409:
		return nil
	}
	return fmt.Errorf("artifact: create bucket %s: status %d", c.bucket, resp.StatusCode())
}

// Upload stores an object under the given key.
func (c *Client) Upload(ctx context.Context, key string, data []byte) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		Put(c.objectURL(key))
	if err != nil {
		return fmt.Errorf("artifact: upload %s: %w", key, err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
		return fmt.Errorf("artifact: upload %s: status %d", key, resp.StatusCode())
	}

	log.Info().Str("key", key).Str("bucket", c.bucket).Msg("artifact uploaded")
	return nil
}

// Download fetches an object by key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(c.objectURL(key))
	if err != nil {
		return nil, fmt.Errorf("artifact: download %s: %w", key, err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("artifact: %s not found in bucket %s", key, c.bucket)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("artifact: download %s: status %d", key, resp.StatusCode())
	}
	return resp.Body(), nil
}
