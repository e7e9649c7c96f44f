package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wibowo/expense-report/internal/transport/middleware"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("CORS", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(allowedOrigins, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/ping/", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		middleware.CORS(allowedOrigins)(noop).ServeHTTP(rec, req)
		return rec
	}

	It("allows all origins when none are configured", func() {
		rec := serve("", "http://localhost:3000")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})

	It("echoes a matching origin from a multi-origin list", func() {
		rec := serve("https://app.example.com, https://staging.example.com", "https://staging.example.com")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://staging.example.com"))
		Expect(rec.Header().Get("Vary")).To(Equal("Origin"))
	})

	It("omits the allow header for an unlisted origin", func() {
		rec := serve("https://app.example.com", "https://evil.example.com")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("short-circuits preflight requests", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/ping/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		middleware.CORS("https://app.example.com")(noop).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
	})
})
