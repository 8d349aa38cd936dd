package ping

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/jihwankim/cachebench/internal/config"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

func startPongStub(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					if _, err := r.ReadString('\n'); err != nil {
						return
					}
					if _, err := conn.Write([]byte("PONG\r\n")); err != nil {
						return
					}
				}
			}()
		}
	}()
	return ln
}

func TestPingExchangeSucceeds(t *testing.T) {
	ln := startPongStub(t)
	defer ln.Close()

	d, err := transport.NewDialer(config.Connection{Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	connector := &Connector{Dialer: d, Addr: ln.Addr().String()}

	conn, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if !conn.Supports(workload.Ping) {
		t.Fatal("expected ping protocol to support the Ping command")
	}
	if conn.Supports(workload.Get) {
		t.Fatal("expected ping protocol to not support Get")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item := workitem.New(workload.Ping)
	if _, err := conn.Exchange(ctx, item); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
}

func TestPingExchangeTimesOutAgainstBlackhole(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			// Accept but never respond.
			_ = conn
		}
	}()

	d, err := transport.NewDialer(config.Connection{Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	connector := &Connector{Dialer: d, Addr: ln.Addr().String()}
	conn, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	item := workitem.New(workload.Ping)
	start := time.Now()
	_, err = conn.Exchange(ctx, item)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error against a black-hole endpoint")
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("exchange took %v, want close to the 100ms deadline", elapsed)
	}
}
