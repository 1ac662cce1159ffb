package api

import (
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Metrics middleware", func() {

	It("Should count responses by route template and status code", func() {
		apiMux := mux.NewRouter()
		apiMux.Use(RecordHTTPMetrics)
		apiMux.HandleFunc("/things/{id}", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}).Methods(http.MethodGet)

		counter := statusCodeCounter.WithLabelValues("/things/{id}", "418")
		before := testutil.ToFloat64(counter)

		for _, id := range []string{"1", "2"} {
			req, err := http.NewRequest(http.MethodGet, "/things/"+id, nil)
			Expect(err).NotTo(HaveOccurred())

			rr := httptest.NewRecorder()
			apiMux.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusTeapot))
		}

		Expect(testutil.ToFloat64(counter)).To(Equal(before + 2))
	})

	It("Should default to 200 when the handler never sets a status", func() {
		apiMux := mux.NewRouter()
		apiMux.Use(RecordHTTPMetrics)
		apiMux.HandleFunc("/quiet", func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("ok"))
		})

		counter := statusCodeCounter.WithLabelValues("/quiet", "200")
		before := testutil.ToFloat64(counter)

		req, err := http.NewRequest(http.MethodGet, "/quiet", nil)
		Expect(err).NotTo(HaveOccurred())
		apiMux.ServeHTTP(httptest.NewRecorder(), req)

		Expect(testutil.ToFloat64(counter)).To(Equal(before + 1))
	})

	It("Should let streaming handlers flush through it", func() {
		apiMux := mux.NewRouter()
		apiMux.Use(RecordHTTPMetrics)
		apiMux.HandleFunc("/stream", func(w http.ResponseWriter, req *http.Request) {
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())
			w.Write([]byte("data: x\n\n"))
			flusher.Flush()
		}).Methods(http.MethodGet)

		req, err := http.NewRequest(http.MethodGet, "/stream", nil)
		Expect(err).NotTo(HaveOccurred())

		rr := httptest.NewRecorder()
		apiMux.ServeHTTP(rr, req)
		Expect(rr.Flushed).To(BeTrue())
	})
})
