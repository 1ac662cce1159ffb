package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testUrl = "ws://backend.invalid/ws/inventory/42/"

var _ = Describe("Channel", func() {

	var (
		dialer *fakeDialer
		spy    *spyDispatcher
		timers *manualTimers
		ctx    context.Context
		cancel context.CancelFunc
	)

	newTestChannel := func(opts ...ChannelOptionFunc) *Channel {
		defaults := []ChannelOptionFunc{
			WithJitter(NoJitter),
			WithAfterFunc(timers.AfterFunc),
			WithReconnectBaseInterval(time.Second),
		}
		return NewChannel("inventory", "42", testUrl, dialer, spy, append(defaults, opts...)...)
	}

	BeforeEach(func() {
		dialer = &fakeDialer{}
		spy = &spyDispatcher{}
		timers = &manualTimers{}
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	It("should refuse requests before it is started", func() {
		channel := newTestChannel()

		Expect(channel.Open()).To(MatchError(ErrChannelNotStarted))
		Expect(channel.Close()).To(MatchError(ErrChannelNotStarted))
		Expect(channel.State()).To(Equal(Closed))
		Expect(dialer.Dials()).To(Equal(0))
	})

	Describe("Connecting", func() {
		It("should open and route frames in transport order", func() {
			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(channel.State).Should(Equal(Open))
			Expect(channel.Attempts()).To(Equal(0))

			conn := dialer.LastConn()
			for _, frame := range []string{`{"type":"a"}`, `{"type":"b"}`, `{"type":"c"}`} {
				conn.frames <- []byte(frame)
			}

			Eventually(spy.Frames).Should(Equal([]string{`{"type":"a"}`, `{"type":"b"}`, `{"type":"c"}`}))
		})

		It("should only dial once when started twice", func() {
			channel := newTestChannel()
			channel.Start(ctx)
			channel.Start(ctx)

			Eventually(channel.State).Should(Equal(Open))
			Consistently(dialer.Dials, "50ms").Should(Equal(1))
		})
	})

	Describe("Reconnecting", func() {
		It("should reconnect with exponential delays after losing the connection", func() {
			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(channel.State).Should(Equal(Open))

			dialer.SetFailing(true)
			dialer.LastConn().drop()

			Eventually(channel.State).Should(Equal(Error))
			Expect(timers.Pending()).To(Equal(1))
			Expect(channel.Attempts()).To(Equal(1))

			timers.FireNext()
			Eventually(timers.Pending).Should(Equal(1))

			dialer.SetFailing(false)
			timers.FireNext()

			Eventually(channel.State).Should(Equal(Open))
			Expect(channel.Attempts()).To(Equal(0))
			Expect(dialer.Dials()).To(Equal(3))
			Expect(timers.Delays()).To(Equal([]time.Duration{time.Second, 2 * time.Second}))
			Expect(spy.SyncErrors()).To(BeEmpty())
		})

		It("should stop after the maximum attempts and report exactly one sync error", func() {
			dialer.SetFailing(true)

			channel := newTestChannel()
			channel.Start(ctx)

			for i := 0; i < DefaultMaxReconnectAttempts; i++ {
				Eventually(timers.Pending).Should(Equal(1))
				timers.FireNext()
			}

			Eventually(spy.SyncErrors).Should(HaveLen(1))

			// The first dial plus one per reconnect attempt
			Expect(dialer.Dials()).To(Equal(6))
			Expect(spy.SyncErrors()[0].attempts).To(Equal(5))
			Expect(spy.SyncErrors()[0].reason).To(ContainSubstring("connection refused"))

			Expect(timers.Delays()).To(Equal([]time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
				8 * time.Second,
				16 * time.Second,
			}))

			Eventually(channel.State).Should(Equal(Closed))
			Expect(channel.Attempts()).To(Equal(5))

			Consistently(dialer.Dials, "50ms").Should(Equal(6))
			Expect(timers.Pending()).To(Equal(0))
			Expect(spy.SyncErrors()).To(HaveLen(1))
		})

		It("should cap the delay at the maximum backoff", func() {
			dialer.SetFailing(true)

			channel := newTestChannel(WithMaxReconnectAttempts(8), WithMaxBackoff(10*time.Second))
			channel.Start(ctx)

			for i := 0; i < 8; i++ {
				Eventually(timers.Pending).Should(Equal(1))
				timers.FireNext()
			}

			Eventually(spy.SyncErrors).Should(HaveLen(1))
			Expect(timers.Delays()).To(Equal([]time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
				8 * time.Second,
				10 * time.Second,
				10 * time.Second,
				10 * time.Second,
				10 * time.Second,
			}))
		})

		It("should reset the attempt counter when reopened after exhaustion", func() {
			dialer.SetFailing(true)

			channel := newTestChannel(WithMaxReconnectAttempts(1))
			channel.Start(ctx)

			Eventually(timers.Pending).Should(Equal(1))
			timers.FireNext()
			Eventually(spy.SyncErrors).Should(HaveLen(1))
			Eventually(channel.State).Should(Equal(Closed))

			dialer.SetFailing(false)
			Expect(channel.Open()).To(Succeed())

			Eventually(channel.State).Should(Equal(Open))
			Expect(channel.Attempts()).To(Equal(0))
			Expect(dialer.Dials()).To(Equal(3))
		})
	})

	Describe("Closing", func() {
		It("should close an open connection without reconnecting", func() {
			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(channel.State).Should(Equal(Open))
			conn := dialer.LastConn()

			Expect(channel.Close()).To(Succeed())

			Expect(channel.State()).To(Equal(Closed))
			Eventually(conn.IsClosed).Should(BeTrue())
			Consistently(dialer.Dials, "50ms").Should(Equal(1))
			Expect(timers.Pending()).To(Equal(0))
			Expect(spy.SyncErrors()).To(BeEmpty())
		})

		It("should cancel a pending reconnect", func() {
			dialer.SetFailing(true)

			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(timers.Pending).Should(Equal(1))

			Expect(channel.Close()).To(Succeed())
			Expect(timers.Pending()).To(Equal(0))
			Expect(timers.Stopped()).To(Equal(1))

			// A timer that fires despite being stopped must not dial
			timers.FireStopped()

			Consistently(dialer.Dials, "50ms").Should(Equal(1))
			Expect(channel.State()).To(Equal(Closed))
			Expect(spy.SyncErrors()).To(BeEmpty())
		})

		It("should not reconnect after teardown while a reconnect is pending", func() {
			dialer.SetFailing(true)

			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(timers.Pending).Should(Equal(1))

			cancel()
			Eventually(channel.Done()).Should(BeClosed())

			Expect(timers.Stopped()).To(Equal(1))
			timers.FireStopped()

			Consistently(dialer.Dials, "50ms").Should(Equal(1))
			Expect(channel.State()).To(Equal(Closed))
			Expect(spy.SyncErrors()).To(BeEmpty())
		})

		It("should close the socket on teardown", func() {
			channel := newTestChannel()
			channel.Start(ctx)

			Eventually(channel.State).Should(Equal(Open))
			conn := dialer.LastConn()

			cancel()
			Eventually(channel.Done()).Should(BeClosed())

			Expect(conn.IsClosed()).To(BeTrue())
			Expect(channel.State()).To(Equal(Closed))
			Expect(dialer.Dials()).To(Equal(1))
		})

		It("should close a connection whose dial completes after teardown", func() {
			for i := 0; i < 50; i++ {
				gated := newGatedDialer()
				runCtx, runCancel := context.WithCancel(ctx)

				channel := NewChannel("inventory", "42", testUrl, gated, spy, WithJitter(NoJitter), WithAfterFunc(timers.AfterFunc))
				channel.Start(runCtx)

				Eventually(gated.entered).Should(Receive())

				runCancel()
				Eventually(channel.Done()).Should(BeClosed())

				close(gated.release)

				Eventually(gated.LastConn).ShouldNot(BeNil())
				Eventually(gated.LastConn().IsClosed).Should(BeTrue())
				Expect(channel.State()).To(Equal(Closed))
			}
		})

		It("should close connections delivered to a torn down channel", func() {
			channel := newTestChannel()
			channel.Start(ctx)
			Eventually(channel.State).Should(Equal(Open))

			cancel()
			Eventually(channel.Done()).Should(BeClosed())

			for i := 0; i < 100; i++ {
				late := newFakeConn()
				channel.post(event{kind: eventDialSucceeded, generation: channel.generation, conn: late})
				Expect(late.IsClosed()).To(BeTrue())
			}
			Expect(channel.events).To(BeEmpty())
		})
	})

	Describe("Over a websocket", func() {
		It("should stop after 5 failed reconnects against a rejecting server", func() {
			var handshakes atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handshakes.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/inventory/42/"
			channel := NewChannel("inventory", "42", url, NewWebsocketDialer(nil), spy,
				WithJitter(NoJitter),
				WithReconnectBaseInterval(time.Millisecond),
				WithMaxBackoff(5*time.Millisecond),
			)
			channel.Start(ctx)

			Eventually(spy.SyncErrors, "2s").Should(HaveLen(1))
			Expect(handshakes.Load()).To(Equal(int32(6)))
			Expect(spy.SyncErrors()[0].reason).To(ContainSubstring("bad handshake"))

			Consistently(handshakes.Load, "50ms").Should(Equal(int32(6)))
			Expect(channel.State()).To(Equal(Closed))
		})

		It("should deliver server frames and reconnect after the server drops the connection", func() {
			var connections atomic.Int32
			upgrader := websocket.Upgrader{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					return
				}
				defer conn.Close()

				n := connections.Add(1)
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"inventory_sync","payload":{}}`))
				if n == 1 {
					// First connection goes away abruptly
					return
				}

				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}))
			defer server.Close()
			defer cancel()

			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/inventory/42/"
			channel := NewChannel("inventory", "42", url, NewWebsocketDialer(nil), spy,
				WithJitter(NoJitter),
				WithReconnectBaseInterval(time.Millisecond),
			)
			channel.Start(ctx)

			Eventually(connections.Load, "2s").Should(Equal(int32(2)))
			Eventually(channel.State).Should(Equal(Open))
			Eventually(spy.Frames).Should(HaveLen(2))
			Expect(channel.Attempts()).To(Equal(0))
			Expect(spy.SyncErrors()).To(BeEmpty())
		})
	})
})
