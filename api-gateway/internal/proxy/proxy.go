package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/banking/shared/middleware"
)

// hop-by-hop headers are not forwarded.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

type Proxy struct {
	client *http.Client
	logger *zap.Logger
}

func New(logger *zap.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// To forwards the request to serviceURL, dropping stripPrefix from the path.
func (p *Proxy) To(serviceURL, stripPrefix string) gin.HandlerFunc {
	serviceURL = strings.TrimSuffix(serviceURL, "/")
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if stripPrefix != "" {
			path = "/v1" + strings.TrimPrefix(path, "/v1"+stripPrefix)
		}
		targetURL := serviceURL + path
		if c.Request.URL.RawQuery != "" {
			targetURL += "?" + c.Request.URL.RawQuery
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			var err error
			if bodyBytes, err = io.ReadAll(c.Request.Body); err != nil {
				p.logger.Warn("failed to read request body", zap.String("path", path), zap.Error(err))
				middleware.RespondWithError(c, http.StatusBadRequest, "Failed to read request body")
				return
			}
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, bytes.NewReader(bodyBytes))
		if err != nil {
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create request")
			return
		}

		for key, values := range c.Request.Header {
			if hopHeaders[key] {
				continue
			}
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		if requestID, ok := c.Get("requestId"); ok {
			req.Header.Set(middleware.RequestIDHeader, requestID.(string))
		}
		if userID, ok := middleware.GetUserID(c); ok {
			req.Header.Set("X-User-ID", userID)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.Error("upstream request failed", zap.String("target", targetURL), zap.Error(err))
			middleware.RespondWithError(c, http.StatusBadGateway, "Service unavailable")
			return
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadGateway, "Failed to read response")
			return
		}

		for key, values := range resp.Header {
			if hopHeaders[key] {
				continue
			}
			for _, value := range values {
				c.Header(key, value)
			}
		}
		c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}
}
