package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type seen struct {
	method, path, body, userID string
}

func upstream(t *testing.T, name string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = seen{method: r.Method, path: r.URL.Path, body: string(body), userID: r.Header.Get("X-User-ID")}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"from":"` + name + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(up Upstreams) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "usr-001")
		c.Next()
	})
	New(zap.NewNop()).RegisterRoutes(r.Group("/v1"), up)
	return r
}

func TestProxyRoutes(t *testing.T) {
	var banking, account seen
	gw := newGateway(Upstreams{
		BankingServiceURL: upstream(t, "banking", &banking).URL,
		AccountServiceURL: upstream(t, "account", &account).URL + "/",
	})

	req, _ := http.NewRequest(http.MethodPost, "/v1/transfers", strings.NewReader(`{"amount":"1"}`))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"from":"banking"}`, w.Body.String())
	assert.Equal(t, seen{method: http.MethodPost, path: "/v1/transfers", body: `{"amount":"1"}`, userID: "usr-001"}, banking)

	req, _ = http.NewRequest(http.MethodGet, "/v1/ledger/accounts/a1", nil)
	w = httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v1/accounts/a1", account.path)
}

func TestProxyUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	gw := newGateway(Upstreams{BankingServiceURL: srv.URL, AccountServiceURL: srv.URL})
	req, _ := http.NewRequest(http.MethodGet, "/v1/transactions/t1", nil)
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestProxyUnreadableBody(t *testing.T) {
	var banking seen
	gw := newGateway(Upstreams{
		BankingServiceURL: upstream(t, "banking", &banking).URL,
		AccountServiceURL: upstream(t, "account", &seen{}).URL,
	})

	req, _ := http.NewRequest(http.MethodPost, "/v1/deposits", io.MultiReader(strings.NewReader(`{"acc`), brokenBody{}))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, banking.path, "a truncated body must not reach the service")
}
