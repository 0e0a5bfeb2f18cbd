package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// StorageClient handles Supabase Storage operations.
type StorageClient struct {
	client *Client
}

// Upload uploads a file with the service role key.
func (s *StorageClient) Upload(ctx context.Context, bucketID, filePath string, data []byte, opts *UploadOptions) (*FileObject, error) {
	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, "POST", s.objectURL(bucketID, filePath), data, uploadHeaders(opts))
	if err != nil {
		return nil, err
	}
	return uploadResult(bucketID, filePath, respBody, statusCode)
}

// UploadWithToken uploads a file as the user owning accessToken.
func (s *StorageClient) UploadWithToken(ctx context.Context, bucketID, filePath string, data []byte, opts *UploadOptions, accessToken string) (*FileObject, error) {
	respBody, statusCode, err := s.client.requestWithToken(ctx, "POST", s.objectURL(bucketID, filePath), data, uploadHeaders(opts), accessToken)
	if err != nil {
		return nil, err
	}
	return uploadResult(bucketID, filePath, respBody, statusCode)
}

// Delete deletes files from a bucket.
func (s *StorageClient) Delete(ctx context.Context, bucketID string, filePaths []string) error {
	urlStr := fmt.Sprintf("%s/object/%s", s.client.storageURL, url.PathEscape(bucketID))

	body, err := json.Marshal(map[string]any{
		"prefixes": filePaths,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, "DELETE", urlStr, body, nil)
	if err != nil {
		return err
	}
	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}
	return nil
}

// GetPublicURL returns the public URL for a file in a public bucket.
func (s *StorageClient) GetPublicURL(bucketID, filePath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.client.storageURL, url.PathEscape(bucketID), escapePath(filePath))
}

func (s *StorageClient) objectURL(bucketID, filePath string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.client.storageURL, url.PathEscape(bucketID), escapePath(filePath))
}

func uploadHeaders(opts *UploadOptions) map[string]string {
	headers := map[string]string{}
	if opts != nil {
		if opts.ContentType != "" {
			headers["Content-Type"] = opts.ContentType
		}
		if opts.CacheControl != "" {
			headers["Cache-Control"] = opts.CacheControl
		}
		if opts.Upsert {
			headers["x-upsert"] = "true"
		}
	}
	if headers["Content-Type"] == "" {
		headers["Content-Type"] = "application/octet-stream"
	}
	return headers
}

func uploadResult(bucketID, filePath string, respBody []byte, statusCode int) (*FileObject, error) {
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var result FileObject
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	if result.Key == "" {
		result.Key = bucketID + "/" + filePath
	}
	result.Name = path.Base(filePath)
	return &result, nil
}

// escapePath escapes each segment of an object path, keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
