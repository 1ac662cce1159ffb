package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/realtime"
	"github.com/RedHatInsights/console-link/internal/router"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
)

const (
	CHANNEL_LIST_ENDPOINT    = URL_BASE_PATH + "/channels"
	CHANNEL_STATUS_ENDPOINT  = URL_BASE_PATH + "/channels/inventory/42"
	CHANNEL_HISTORY_ENDPOINT = URL_BASE_PATH + "/channels/inventory/42/history"
	CHANNEL_REOPEN_ENDPOINT  = URL_BASE_PATH + "/channels/inventory/42/reopen"
	CHANNEL_EVENTS_ENDPOINT  = URL_BASE_PATH + "/channels/inventory/42/events"
)

var _ = Describe("Channels", func() {

	var (
		apiMux   *mux.Router
		registry *realtime.Registry
		dialer   *stubDialer
		channel  *realtime.Channel
		rtr      *router.Router
		ctx      context.Context
		cancel   context.CancelFunc
	)

	serve := func(method string, endpoint string) *httptest.ResponseRecorder {
		req, err := http.NewRequest(method, endpoint, nil)
		Expect(err).NotTo(HaveOccurred())

		rr := httptest.NewRecorder()
		apiMux.ServeHTTP(rr, req)
		return rr
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		history, err := router.NewHistory(router.DefaultHistorySize)
		Expect(err).NotTo(HaveOccurred())
		rtr = router.NewRouter(realtime.Key("inventory", "42"), router.DefaultDisplayPolicy(), history, router.Sinks{})

		dialer = &stubDialer{}
		channel = realtime.NewChannel("inventory", "42", "ws://localhost:8000/ws/inventory/42/", dialer, nopDispatcher{},
			realtime.WithMaxReconnectAttempts(1),
			realtime.WithReconnectBaseInterval(time.Millisecond),
			realtime.WithJitter(realtime.NoJitter),
		)

		registry = realtime.NewRegistry()
		Expect(registry.Register(ctx, channel)).To(Succeed())

		apiMux = mux.NewRouter()
		apiMux.Use(request_id.ConfiguredRequestID(logger.RequestIdHeader))
		apiMux.Use(RecordHTTPMetrics)
		NewChannelServer(registry, RouterMap{channel.Key(): rtr}, apiMux, URL_BASE_PATH).Routes()
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Listing channels", func() {
		It("Should list every registered channel with its state", func() {
			channel.Start(ctx)
			Eventually(channel.State).Should(Equal(realtime.Open))

			rr := serve(http.MethodGet, CHANNEL_LIST_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var response struct {
				Channels []map[string]interface{} `json:"channels"`
				Count    int                      `json:"count"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &response)).To(Succeed())

			Expect(response.Count).To(Equal(1))
			Expect(response.Channels[0]).Should(HaveKeyWithValue("key", "inventory/42"))
			Expect(response.Channels[0]).Should(HaveKeyWithValue("state", "open"))
			Expect(response.Channels[0]).Should(HaveKeyWithValue("attempts", BeNumerically("==", 0)))
		})

		It("Should return an empty list without channels", func() {
			registry.Unregister(ctx, "inventory", "42")

			rr := serve(http.MethodGet, CHANNEL_LIST_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"channels":[],"count":0}`))
		})
	})

	Describe("Channel status", func() {
		It("Should return 404 for an unknown channel", func() {
			rr := serve(http.MethodGet, URL_BASE_PATH+"/channels/inventory/999")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})

		It("Should report a channel that has not been started as closed", func() {
			rr := serve(http.MethodGet, CHANNEL_STATUS_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var m map[string]interface{}
			Expect(json.Unmarshal(rr.Body.Bytes(), &m)).To(Succeed())
			Expect(m).Should(HaveKeyWithValue("state", "closed"))
			Expect(m).Should(HaveKeyWithValue("url", "ws://localhost:8000/ws/inventory/42/"))
		})
	})

	Describe("Message history", func() {
		It("Should return the history oldest first", func() {
			rtr.Route(ctx, []byte(`{"type":"stock_update","payload":{"sku":"A","delta":1}}`))
			rtr.Route(ctx, []byte(`{"type":"shopify_order","payload":{"order_number":"#1"}}`))

			rr := serve(http.MethodGet, CHANNEL_HISTORY_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var response struct {
				Channel  string            `json:"channel"`
				Capacity int               `json:"capacity"`
				Messages []router.Envelope `json:"messages"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &response)).To(Succeed())

			Expect(response.Channel).To(Equal("inventory/42"))
			Expect(response.Capacity).To(Equal(router.DefaultHistorySize))
			Expect(response.Messages).To(HaveLen(2))
			Expect(response.Messages[0].Type).To(Equal(router.StockUpdate))
			Expect(response.Messages[1].Type).To(Equal(router.ShopifyOrder))
		})

		It("Should return 404 for an unknown channel", func() {
			rr := serve(http.MethodGet, URL_BASE_PATH+"/channels/orders/1/history")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Event stream", func() {
		It("Should stream envelopes accepted after subscribing", func() {
			server := httptest.NewServer(apiMux)
			defer server.Close()

			reqCtx, reqCancel := context.WithCancel(ctx)
			defer reqCancel()

			rtr.Route(ctx, []byte(`{"type":"shopify_order","payload":{"order_number":"#0"}}`))

			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, server.URL+CHANNEL_EVENTS_ENDPOINT, nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			rtr.Route(ctx, []byte(`{"type":"stock_update","payload":{"sku":"A","delta":1}}`))
			rtr.Route(ctx, []byte(`{"type":"shopify_order","payload":{"order_number":"#1"}}`))

			reader := bufio.NewReader(resp.Body)
			readEvent := func() map[string]string {
				fields := map[string]string{}
				for {
					line, err := reader.ReadString('\n')
					Expect(err).NotTo(HaveOccurred())

					line = strings.TrimSuffix(line, "\n")
					if line == "" {
						return fields
					}

					name, value, _ := strings.Cut(line, ": ")
					fields[name] = value
				}
			}

			for _, expected := range []router.MessageType{router.StockUpdate, router.ShopifyOrder} {
				event := readEvent()
				Expect(event["event"]).To(Equal(string(expected)))

				var envelope router.Envelope
				Expect(json.Unmarshal([]byte(event["data"]), &envelope)).To(Succeed())
				Expect(envelope.Type).To(Equal(expected))
				Expect(envelope.Channel).To(Equal("inventory/42"))
				Expect(event["id"]).To(Equal(envelope.ID.String()))
			}
		})

		It("Should return 404 for an unknown channel", func() {
			rr := serve(http.MethodGet, URL_BASE_PATH+"/channels/orders/1/events")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Reopening a channel", func() {
		It("Should reopen a channel that stopped reconnecting", func() {
			dialer.SetFailing(true)
			channel.Start(ctx)

			Eventually(channel.Attempts).Should(Equal(1))
			Eventually(channel.State).Should(Equal(realtime.Closed))

			dialer.SetFailing(false)

			rr := serve(http.MethodPost, CHANNEL_REOPEN_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusAccepted))

			Eventually(channel.State).Should(Equal(realtime.Open))
			Expect(channel.Attempts()).To(Equal(0))
		})

		It("Should refuse to reopen a channel that was never started", func() {
			rr := serve(http.MethodPost, CHANNEL_REOPEN_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusConflict))
		})

		It("Should only accept POST", func() {
			rr := serve(http.MethodGet, CHANNEL_REOPEN_ENDPOINT)
			Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})
})
