package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/metrics"
	"github.com/frahmantamala/hoa-reimbursement/internal/nudge"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/middleware"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport/rest"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/telemetry"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const openAPIPath = "../../../api/openapi.yml"

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

func newRouter(db rest.Pinger) *chi.Mux {
	lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:   rest.NewHealthHandler(db),
		Auth:     auth.NewHandler(nil, nil),
		Roles:    auth.NewRoleAuthorization(lg),
		User:     user.NewHandler(nil),
		Settings: settings.NewHandler(nil),
		Entry:    entry.NewHandler(nil),
		Nudge:    nudge.NewHandler(nil),
		Metrics:  metrics.NewHandler(nil),
	}, rest.Options{
		OpenAPIPath: openAPIPath,
		Telemetry:   telemetry.New(),
		MetricsPath: "/metrics",
		RateLimiter: middleware.NewRateLimiter(100, 100),
	}, lg)
	return router
}

var _ = Describe("API document", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		loader := openapi3.NewLoader()
		var err error
		doc, err = loader.LoadFromFile(openAPIPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Validate(loader.Context)).To(Succeed())
	})

	It("documents exactly the routes the router serves", func() {
		served := map[string]bool{}
		err := chi.Walk(newRouter(fakePinger{}), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if !strings.HasPrefix(route, "/api/v1/") {
				return nil
			}
			route = strings.TrimSuffix(strings.TrimPrefix(route, "/api/v1"), "/")
			served[method+" "+route] = true
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		documented := map[string]bool{}
		for path, item := range doc.Paths.Map() {
			for method := range item.Operations() {
				documented[method+" "+path] = true
			}
		}

		Expect(documented).To(Equal(served))
	})
})

var _ = Describe("Router", func() {
	It("reports a healthy database", func() {
		rec := httptest.NewRecorder()
		newRouter(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal(rest.HealthHealthy))
		Expect(body.Components).To(HaveKey("postgres"))
	})

	It("reports an unreachable database as unavailable", func() {
		rec := httptest.NewRecorder()
		newRouter(fakePinger{err: errors.New("connection refused")}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rec.Body.String()).To(ContainSubstring("connection refused"))
	})

	It("answers ping", func() {
		rec := httptest.NewRecorder()
		newRouter(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("rejects unauthenticated calls to protected routes", func() {
		rec := httptest.NewRecorder()
		newRouter(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("exposes prometheus metrics", func() {
		router := newRouter(fakePinger{})
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("hoa_http_requests_total"))
	})
})
