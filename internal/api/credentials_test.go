package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/RedHatInsights/console-link/internal/csrf"
	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
)

const (
	CREDENTIALS_ENDPOINT       = URL_BASE_PATH + "/credentials"
	CREDENTIALS_RENEW_ENDPOINT = URL_BASE_PATH + "/credentials/renew"
)

var _ = Describe("Credentials", func() {

	var (
		apiMux   *mux.Router
		acquirer *fakeAcquirer
		tokens   *fakeTokenReporter
	)

	serve := func(method string, endpoint string) *httptest.ResponseRecorder {
		req, err := http.NewRequest(method, endpoint, nil)
		Expect(err).NotTo(HaveOccurred())

		rr := httptest.NewRecorder()
		apiMux.ServeHTTP(rr, req)
		return rr
	}

	BeforeEach(func() {
		tokens = &fakeTokenReporter{}
		acquirer = &fakeAcquirer{tokens: tokens}

		apiMux = mux.NewRouter()
		apiMux.Use(request_id.ConfiguredRequestID(logger.RequestIdHeader))
		NewCredentialServer(acquirer, tokens, apiMux, URL_BASE_PATH).Routes()
	})

	It("Should report that no token has been acquired yet", func() {
		rr := serve(http.MethodGet, CREDENTIALS_ENDPOINT)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(MatchJSON(`{"token_published":false}`))
	})

	It("Should renew the token on request", func() {
		rr := serve(http.MethodPost, CREDENTIALS_RENEW_ENDPOINT)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(acquirer.calls).To(Equal(1))
		Expect(rr.Body.String()).To(MatchJSON(`{"token_published":true,"last_acquired":"2024-03-01T12:00:00Z"}`))
		Expect(rr.Body.String()).NotTo(ContainSubstring("renewed"))
	})

	It("Should report exhaustion as unavailable", func() {
		acquirer.err = fmt.Errorf("%w after 3 attempts: %w", csrf.ErrAcquisitionExhausted, csrf.ErrTokenNotVisible)

		rr := serve(http.MethodPost, CREDENTIALS_RENEW_ENDPOINT)
		Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))

		var m map[string]interface{}
		Expect(json.Unmarshal(rr.Body.Bytes(), &m)).To(Succeed())
		Expect(m).Should(HaveKeyWithValue("status", BeNumerically("==", http.StatusServiceUnavailable)))
	})

	It("Should only accept POST for renewals", func() {
		rr := serve(http.MethodGet, CREDENTIALS_RENEW_ENDPOINT)
		Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(acquirer.calls).To(Equal(0))
	})
})
