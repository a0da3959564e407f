package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"api-client/internal/common/errors"
	"api-client/internal/common/logging"
)

// cachedResponse is what the response cache keeps per GET URL
type cachedResponse struct {
	ETag        string `json:"etag"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

func responseCacheKey(req *http.Request) string {
	return "etag:" + req.URL.String()
}

// lookupCached returns the cached response for key. Cache failures are
// logged and treated as misses.
func (s *BaseClientService) lookupCached(ctx context.Context, key string) *cachedResponse {
	data, found, err := s.responseCache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Response cache lookup failed", logging.String("key", key), logging.Err(err))
		return nil
	}
	if !found {
		return nil
	}

	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil || entry.ETag == "" {
		s.logger.Warn("Discarding unreadable response cache entry", logging.String("key", key))
		_ = s.responseCache.Delete(ctx, key)
		return nil
	}
	return &entry
}

// storeCached keeps a 200 response that carries an ETag. The body is
// consumed and replaced so the caller can still read it.
func (s *BaseClientService) storeCached(ctx context.Context, key string, resp *http.Response) error {
	etag := resp.Header.Get("ETag")
	if etag == "" || resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return errors.ConnectionError("failed to read response body", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	data, err := json.Marshal(cachedResponse{
		ETag:        etag,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		return nil
	}
	if err := s.responseCache.Set(ctx, key, data, s.responseCacheTTL); err != nil {
		s.logger.Warn("Response cache write failed", logging.String("key", key), logging.Err(err))
	}
	return nil
}

// toResponse rebuilds a 200 response for req from the cache entry
func (c *cachedResponse) toResponse(req *http.Request) *http.Response {
	header := http.Header{}
	header.Set("ETag", c.ETag)
	if c.ContentType != "" {
		header.Set("Content-Type", c.ContentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(c.Body)))

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}
