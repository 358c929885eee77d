package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scheme is the URI scheme for stored-object references.
const Scheme = "s3"

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BuildStorageKey returns the canonical reference for an object,
// e.g. "s3://bucket/prefix/file.pdf".
func BuildStorageKey(bucket, objectKey string) string {
	return fmt.Sprintf("%s://%s/%s", Scheme, bucket, strings.TrimPrefix(objectKey, "/"))
}

// ParseStorageKey splits an s3:// reference into bucket and object key.
func ParseStorageKey(storageKey string) (bucket, objectKey string, err error) {
	prefix := Scheme + "://"
	if !strings.HasPrefix(storageKey, prefix) {
		return "", "", fmt.Errorf("unsupported storage key scheme: %s", storageKey)
	}
	rest := strings.TrimPrefix(storageKey, prefix)
	bucket, objectKey, found := strings.Cut(rest, "/")
	if !found || bucket == "" || objectKey == "" {
		return "", "", fmt.Errorf("malformed storage key: %s", storageKey)
	}
	return bucket, objectKey, nil
}

// BuildObjectKey returns a date-partitioned object key for an uploaded
// file: {prefix}/YYYY/MM/DD/{uuid}-{sanitized-name}.
func BuildObjectKey(prefix, filename string, now time.Time) string {
	name := SanitizeFilename(filename)
	datePart := now.UTC().Format("2006/01/02")
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return path.Join(prefix, datePart, id+"-"+name)
}

// SanitizeFilename collapses characters unsafe for object keys to "-".
func SanitizeFilename(name string) string {
	name = path.Base(name)
	name = unsafeKeyChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "file"
	}
	return name
}

// AssetObjectKey returns the object key for a cropped candidate asset.
// Keys group by job, page, and candidate so a job's assets can be listed
// and cleaned with a single prefix.
func AssetObjectKey(prefix, jobID string, pageNo, candidateNo, idx int, assetType string) string {
	return path.Join(prefix, jobID,
		fmt.Sprintf("page-%04d", pageNo),
		fmt.Sprintf("candidate-%03d", candidateNo),
		fmt.Sprintf("%02d-%s.png", idx, assetType))
}
