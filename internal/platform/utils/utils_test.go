package utils

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/go-playground/assert/v2"
)

func init() {
	logger.InitLogger()
}

func TestGetHostname(t *testing.T) {
	name := GetHostname("fallback")
	if name == "" {
		t.Fatal("expected a hostname")
	}
}

func TestStartAndShutdownHTTPServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("unable to reserve a port: ", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	srv := StartHTTPServer(addr, "test", handler)

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatal("server never came up: ", err)
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ShutdownHTTPServer(ctx, "test", srv)

	if _, err := net.DialTimeout("tcp", addr, 100*time.Millisecond); err == nil {
		t.Fatal("expected the listener to be closed")
	}
}
