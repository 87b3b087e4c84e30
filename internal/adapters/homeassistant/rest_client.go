package homeassistant

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/frostdev-ops/ha-trend-monitor/pkg/version"
	"github.com/sirupsen/logrus"
)

// maxBodySize caps response bodies.
const maxBodySize = 32 << 20

// DoRequest performs a request against the Home Assistant API. The whole
// call, retries included, is bounded by the configured request timeout.
// Only 2xx responses are treated as success.
func (c *Client) DoRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := c.baseURL + path

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var lastErr error
	retryDelay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, c.contextError(ctx, url, lastErr)
			case <-time.After(retryDelay):
			}

			retryDelay *= 2
			if retryDelay > c.maxRetryDelay {
				retryDelay = c.maxRetryDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, withDetails(ErrInvalidURL, map[string]interface{}{
				"error": err.Error(),
				"url":   url,
			})
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())

		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"url":     url,
			"attempt": attempt + 1,
		}).Trace("Making HTTP request to Home Assistant")

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.record(method, path, 0, time.Since(started), err)
			if ctx.Err() != nil {
				return nil, c.contextError(ctx, url, err)
			}
			lastErr = withDetails(ErrConnectionFailed, map[string]interface{}{
				"error":   err.Error(),
				"url":     url,
				"attempt": attempt + 1,
			})
			c.logger.WithFields(logrus.Fields{
				"error":   err.Error(),
				"attempt": attempt + 1,
			}).Debug("HTTP request failed")
			continue
		}

		responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		c.record(method, path, resp.StatusCode, time.Since(started), nil)
		if err != nil {
			lastErr = withDetails(ErrInvalidResponse, map[string]interface{}{
				"error":       err.Error(),
				"status_code": resp.StatusCode,
			})
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return responseBody, nil
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, ErrUnauthorized
		case http.StatusNotFound:
			return nil, withDetails(ErrEntityNotFound, map[string]interface{}{
				"path": path,
			})
		case http.StatusTooManyRequests:
			retryDelay = c.maxRetryDelay
			lastErr = NewHAError(resp.StatusCode, "Rate limited", map[string]interface{}{
				"response": truncate(responseBody),
			})
			continue
		default:
			if resp.StatusCode >= 500 {
				lastErr = NewHAError(resp.StatusCode, "Server error", map[string]interface{}{
					"response": truncate(responseBody),
				})
				continue
			}

			return nil, NewHAError(resp.StatusCode, "Unexpected response", map[string]interface{}{
				"response": truncate(responseBody),
			})
		}
	}

	if c.maxRetries > 0 {
		c.logger.WithError(lastErr).WithField("url", url).Warn("All retry attempts failed")
	}
	return nil, lastErr
}

func (c *Client) contextError(ctx context.Context, url string, cause error) error {
	details := map[string]interface{}{
		"url":     url,
		"timeout": c.requestTimeout.String(),
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return withDetails(ErrTimeout, details)
	}
	return withDetails(ErrConnectionFailed, details)
}

func (c *Client) record(method, path string, status int, latency time.Duration, err error) {
	if len(c.recorders) == 0 {
		return
	}
	fields := logrus.Fields{"path": path}
	if err != nil {
		fields["error"] = err.Error()
	}
	for _, r := range c.recorders {
		r.LogRequest(method, path, status, latency, fields)
	}
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
