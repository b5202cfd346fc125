// Package attachments stores project files in object storage under
// "{project}/{file}" and hands back a locator the browser can open.
package attachments

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/pkg/storage"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9\-_.]`)

// Sanitize replaces every character outside [A-Za-z0-9-_.] with an underscore
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Key builds the object path of a file
func Key(projectName, fileName string) string {
	return fmt.Sprintf("%s/%s", Sanitize(projectName), Sanitize(fileName))
}

// ContentType picks the type an attachment is stored and served with.
// A declared type wins unless it is missing or generic.
func ContentType(fileName, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Store uploads attachments to one bucket
type Store struct {
	s3      storage.S3Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewStore creates an attachment store. Locators are built on publicBaseURL
// when the bucket is public, otherwise on downloadURL, the API route that
// streams files out of a private bucket. Neither kind expires.
func NewStore(s3 storage.S3Client, bucket, publicBaseURL, downloadURL string, logger *zap.Logger) *Store {
	base := publicBaseURL
	if base == "" {
		base = downloadURL
	}
	return &Store{
		s3:      s3,
		bucket:  bucket,
		baseURL: strings.TrimRight(base, "/"),
		logger:  logger,
	}
}

// Upload stores the file, overwriting whatever was stored under the same
// project and file name, and returns its locator
func (s *Store) Upload(ctx context.Context, body io.Reader, projectName, fileName, contentType string) (string, error) {
	key := Key(projectName, fileName)
	if err := s.s3.Upload(ctx, s.bucket, key, body, ContentType(fileName, contentType)); err != nil {
		return "", err
	}

	s.logger.Info("Attachment uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key))
	return s.Locator(key), nil
}

// Locator returns the URL a stored key is reachable at
func (s *Store) Locator(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Open streams a stored attachment back
func (s *Store) Open(ctx context.Context, projectName, fileName string) (io.ReadCloser, error) {
	return s.s3.Download(ctx, s.bucket, Key(projectName, fileName))
}
