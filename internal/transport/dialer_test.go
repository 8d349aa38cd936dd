package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jihwankim/cachebench/internal/config"
)

func TestDialPlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	d, err := NewDialer(config.Connection{Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}

	conn, err := d.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}

func TestDialSucceedsAgainstUnacceptedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	// The listener never accepts; the kernel still completes the TCP
	// handshake into the backlog, so a dial under a bounded ctx succeeds.

	d, err := NewDialer(config.Connection{Timeout: 2 * time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}
