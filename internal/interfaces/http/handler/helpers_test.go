package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/infrastructure/auth"
	"github.com/rouna/storefront/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

func userClaims(id uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: id.String(), Role: auth.RoleUser}
}

func adminClaims(id uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: id.String(), Role: auth.RoleAdmin}
}

// newTestEngine returns an engine whose requests are authenticated as
// claims; nil leaves them anonymous
func newTestEngine(claims *auth.Claims) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	if claims != nil {
		engine.Use(func(c *gin.Context) {
			c.Set(middleware.JWTClaimsKey, claims)
			c.Next()
		})
	}
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
		Details   []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
		Stock *struct {
			LineIndex int `json:"line_index"`
			Requested int `json:"requested"`
			Available int `json:"available"`
		} `json:"stock"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (e envelope) fields() []string {
	if e.Error == nil {
		return nil
	}
	out := make([]string, len(e.Error.Details))
	for i, d := range e.Error.Details {
		out[i] = d.Field
	}
	return out
}
