package http1

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jihwankim/cachebench/internal/config"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

func startCloseEveryTenStub(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n%10 == 0 {
			w.Header().Set("Connection", "close")
		}
		w.WriteHeader(http.StatusOK)
	}))
	return srv, &count
}

func TestHTTP1GetHitAndServerClose(t *testing.T) {
	srv, _ := startCloseEveryTenStub(t)
	defer srv.Close()

	addr := srv.Listener.Addr().(*net.TCPAddr).String()
	d, err := transport.NewDialer(config.Connection{Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	connector := &Connector{Dialer: d, Addr: addr}
	conn, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if !conn.Supports(workload.Get) {
		t.Fatal("expected http1 driver to support Get")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item := workitem.New(workload.Get)
	item.Key = workitem.NewBuffer([]byte("some-key"))

	var sawClose bool
	for i := 0; i < 10; i++ {
		outcome, err := conn.Exchange(ctx, item)
		if err != nil {
			t.Fatalf("Exchange: %v", err)
		}
		if outcome.Hit == nil || !*outcome.Hit {
			t.Fatal("expected a hit for a 200 response")
		}
		if outcome.ServerClose {
			sawClose = true
		}
	}
	if !sawClose {
		t.Fatal("expected at least one Connection: close signal across 10 responses")
	}
}
