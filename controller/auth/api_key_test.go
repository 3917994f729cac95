package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/send", APIKeyMiddleware(apiKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{name: "disabled", configured: "", header: "", want: http.StatusOK},
		{name: "missing", configured: "secret", header: "", want: http.StatusUnauthorized},
		{name: "wrong", configured: "secret", header: "nope", want: http.StatusUnauthorized},
		{name: "valid", configured: "secret", header: "secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/send", nil)
			if tt.header != "" {
				req.Header.Set(HeaderAPIKey, tt.header)
			}
			w := httptest.NewRecorder()
			newEngine(tt.configured).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
