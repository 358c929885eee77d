// Package storage is a minimal S3-compatible object store client.
//
// It speaks the subset of the S3 REST API the pipeline needs (put, get,
// delete, presign) with AWS Signature Version 4 request signing, and works
// against AWS S3 as well as MinIO-style endpoints.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	serviceName      = "s3"
	unsignedPayload  = "UNSIGNED-PAYLOAD"
)

// Config holds connection settings for the object store.
type Config struct {
	// Endpoint is the base URL, e.g. "https://s3.ap-northeast-2.amazonaws.com"
	// or "http://localhost:9000" for MinIO.
	Endpoint string
	// Region is the signing region (default: us-east-1).
	Region string
	// Bucket is the bucket all operations target.
	Bucket string
	// AccessKey and SecretKey are the credentials (support ${ENV_VAR} syntax
	// when loaded through config).
	AccessKey string
	SecretKey string
	// Timeout for HTTP operations (default: 60s).
	Timeout time.Duration
}

// Client is an S3-compatible object store client using path-style addressing.
type Client struct {
	endpoint  string
	region    string
	bucket    string
	accessKey string
	secretKey string
	client    *http.Client
	now       func() time.Time
}

// New creates a new object store client.
func New(cfg Config) *Client {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		region:    cfg.Region,
		bucket:    cfg.Bucket,
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
		now:       time.Now,
	}
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// StorageKey returns the canonical s3:// reference for an object key.
func (c *Client) StorageKey(objectKey string) string {
	return BuildStorageKey(c.bucket, objectKey)
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, objectKey string, body []byte, contentType string) error {
	req, err := c.newSignedRequest(ctx, http.MethodPut, objectKey, body, contentType)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("put request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("put %s failed (status %d): %s", objectKey, resp.StatusCode, string(respBody))
	}
	return nil
}

// Get downloads an object.
func (c *Client) Get(ctx context.Context, objectKey string) ([]byte, error) {
	req, err := c.newSignedRequest(ctx, http.MethodGet, objectKey, nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s failed (status %d): %s", objectKey, resp.StatusCode, string(body))
	}
	return body, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	req, err := c.newSignedRequest(ctx, http.MethodDelete, objectKey, nil, "")
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete %s failed (status %d): %s", objectKey, resp.StatusCode, string(respBody))
	}
	return nil
}

// PresignGet returns a time-limited URL for downloading an object.
func (c *Client) PresignGet(objectKey string, expires time.Duration) (string, error) {
	return c.presign(http.MethodGet, objectKey, expires)
}

// PresignPut returns a time-limited URL for uploading an object.
func (c *Client) PresignPut(objectKey string, expires time.Duration) (string, error) {
	return c.presign(http.MethodPut, objectKey, expires)
}

// objectURL returns the path-style URL for an object.
func (c *Client) objectURL(objectKey string) string {
	return c.endpoint + c.objectPath(objectKey)
}

func (c *Client) objectPath(objectKey string) string {
	return "/" + c.bucket + "/" + encodePath(objectKey)
}

func (c *Client) host() string {
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(c.endpoint, "https://"), "http://")
	}
	return u.Host
}

// newSignedRequest builds a request with an Authorization header signature.
func (c *Client) newSignedRequest(ctx context.Context, method, objectKey string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.objectURL(objectKey), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	payloadHash := hashHex(body)
	now := c.now().UTC()
	amzDate := now.Format("20060102T150405Z")

	req.Header.Set("Host", c.host())
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	signedHeaders := "host;x-amz-content-sha256;x-amz-date"
	canonicalHeaders := "host:" + c.host() + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + amzDate + "\n"

	canonical := strings.Join([]string{
		method,
		c.objectPath(objectKey),
		"", // no query string on signed object operations
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := now.Format("20060102") + "/" + c.region + "/" + serviceName + "/aws4_request"
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hashHex([]byte(canonical)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(c.signingKey(now), []byte(stringToSign)))
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, c.accessKey, scope, signedHeaders, signature))

	return req, nil
}

// presign builds a query-string signed URL with an unsigned payload.
func (c *Client) presign(method, objectKey string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	if expires > 7*24*time.Hour {
		return "", fmt.Errorf("presign expiry exceeds 7 day limit: %s", expires)
	}

	now := c.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	scope := now.Format("20060102") + "/" + c.region + "/" + serviceName + "/aws4_request"

	query := url.Values{}
	query.Set("X-Amz-Algorithm", signingAlgorithm)
	query.Set("X-Amz-Credential", c.accessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", fmt.Sprintf("%d", int(expires.Seconds())))
	query.Set("X-Amz-SignedHeaders", "host")

	canonicalQuery := canonicalQueryString(query)
	canonical := strings.Join([]string{
		method,
		c.objectPath(objectKey),
		canonicalQuery,
		"host:" + c.host() + "\n",
		"host",
		unsignedPayload,
	}, "\n")

	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hashHex([]byte(canonical)),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(c.signingKey(now), []byte(stringToSign)))
	return c.objectURL(objectKey) + "?" + canonicalQuery + "&X-Amz-Signature=" + signature, nil
}

// signingKey derives the SigV4 signing key for the given date.
func (c *Client) signingKey(t time.Time) []byte {
	kDate := hmacSHA256([]byte("AWS4"+c.secretKey), []byte(t.Format("20060102")))
	kRegion := hmacSHA256(kDate, []byte(c.region))
	kService := hmacSHA256(kRegion, []byte(serviceName))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodePath URI-encodes an object key per the S3 canonical rules:
// every segment is encoded, slashes are preserved.
func encodePath(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, s := range segments {
		segments[i] = uriEncode(s)
	}
	return strings.Join(segments, "/")
}

// uriEncode implements the AWS variant of percent-encoding: unreserved
// characters per RFC 3986 are kept, everything else is %XX uppercase.
func uriEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '.', ch == '~':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}

// canonicalQueryString sorts and encodes query parameters per SigV4.
func canonicalQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, uriEncode(k)+"="+uriEncode(query.Get(k)))
	}
	return strings.Join(parts, "&")
}
