package environment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/reviewfunnel/pkg/environment"
)

func TestNormalize(t *testing.T) {
	cases := map[string]environment.Environment{
		"prod":        environment.Production,
		"PRODUCTION":  environment.Production,
		"stage":       environment.Staging,
		"staging":     environment.Staging,
		"dev":         environment.Development,
		"":            environment.Development,
		"something":   environment.Development,
		" production": environment.Production,
	}
	for in, want := range cases {
		assert.Equal(t, want, environment.Normalize(in), in)
	}
}

func TestMiddleware(t *testing.T) {
	var got environment.Environment
	h := environment.Middleware(environment.Staging)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = environment.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, environment.Staging, got)
}

func TestLoggerExtractor(t *testing.T) {
	ex := environment.LoggerExtractor()
	_, ok := ex(context.Background())
	assert.False(t, ok)

	attr, ok := ex(environment.WithContext(context.Background(), environment.Production))
	assert.True(t, ok)
	assert.Equal(t, "production", attr.Value.String())
}
