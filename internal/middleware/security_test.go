package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (string, error) {
	if tech, ok := s[token]; ok {
		return tech, nil
	}
	return "", errors.New("bad token")
}

func perform(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeadersAndCorrelationID(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), CorrelationID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CorrelationIDKey)) })

	w := perform(r, http.MethodGet, "/x", nil, nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "img-src 'self' data:")
	id := w.Header().Get("X-Correlation-ID")
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())

	w = perform(r, http.MethodGet, "/x", nil, map[string]string{"X-Correlation-ID": "abc"})
	assert.Equal(t, "abc", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := perform(r, http.MethodOptions, "/x", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodPost, "/x", nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})
	r.GET("/deadline", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	assert.Equal(t, http.StatusGatewayTimeout, perform(r, http.MethodGet, "/slow", nil, nil).Code)
	assert.JSONEq(t, `{"deadline":false}`, perform(r, http.MethodGet, "/deadline", nil, map[string]string{"Upgrade": "websocket"}).Body.String())
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/x", strings.NewReader("small"), nil).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, perform(r, http.MethodPost, "/x", strings.NewReader("much too large"), nil).Code)
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(CorrelationID(), AuditLogger(logger))
	r.GET("/reports/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(r, http.MethodGet, "/reports/42", nil, map[string]string{"X-Correlation-ID": "corr-1"})
	out := buf.String()
	assert.Contains(t, out, `"correlation_id":"corr-1"`)
	assert.Contains(t, out, `"path":"/reports/:id"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"level":"warning"`)
}

func TestRequireSession(t *testing.T) {
	r := gin.New()
	r.Use(RequireSession(stubVerifier{"good": "CADDL-T01"}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(TechNumberKey)) })

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		code    int
	}{
		{"bearer", "/x", map[string]string{"Authorization": "Bearer good"}, http.StatusOK},
		{"lowercase scheme", "/x", map[string]string{"Authorization": "bearer good"}, http.StatusOK},
		{"query token", "/x?token=good", nil, http.StatusOK},
		{"missing", "/x", nil, http.StatusUnauthorized},
		{"bad token", "/x", map[string]string{"Authorization": "Bearer bad"}, http.StatusUnauthorized},
		{"basic scheme", "/x", map[string]string{"Authorization": "Basic Z29vZA=="}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, tt.path, nil, tt.headers)
			require.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "CADDL-T01", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "AUTHENTICATION_ERROR")
			}
		})
	}
}
