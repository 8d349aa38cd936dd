// Package redis implements a hand-rolled RESP (REdis Serialization
// Protocol) driver: Get, Set (with optional TTL), Delete, HashGet,
// HashSet, HashDelete, and HashExists are framed directly over net.Conn
// rather than through a client library, since the wire framing itself is
// what this driver exists to exercise.
package redis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Connector dials one Redis endpoint.
type Connector struct {
	Dialer *transport.Dialer
	Addr   string
}

// Connect opens a TCP connection. RESP has no connection handshake.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Dialer.Dial(ctx, c.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return &redisConn{conn: conn, r: bufio.NewReader(conn)}, nil
}

type redisConn struct {
	conn net.Conn
	r    *bufio.Reader
}

var supported = map[workload.CommandTag]bool{
	workload.Get:        true,
	workload.Set:        true,
	workload.Delete:     true,
	workload.HashGet:    true,
	workload.HashSet:    true,
	workload.HashDelete: true,
	workload.HashExists: true,
}

func (c *redisConn) Supports(cmd workload.CommandTag) bool { return supported[cmd] }

func (c *redisConn) Close() error { return c.conn.Close() }

// Exchange composes and sends one RESP command, then parses exactly one
// reply. A parse error or a RESP error reply ("-ERR ...") both count as a
// protocol exception; only "+OK", ":N", and "$N"/"$-1" outcomes map to
// success per command.
func (c *redisConn) Exchange(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	req, err := compose(item)
	if err != nil {
		return driver.Outcome{}, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	if _, err := c.conn.Write(req); err != nil {
		return driver.Outcome{}, classifyNetErr(err)
	}

	reply, err := c.readReply()
	if err != nil {
		return driver.Outcome{}, classifyNetErr(err)
	}
	return classify(item.Command, reply)
}

func compose(item *workitem.WorkItem) ([]byte, error) {
	switch item.Command {
	case workload.Get:
		return encodeArray([]byte("GET"), item.Key.Bytes()), nil
	case workload.Set:
		if item.TTL > 0 {
			return encodeArray(
				[]byte("SET"), item.Key.Bytes(), item.Value.Bytes(),
				[]byte("EX"), []byte(strconv.FormatInt(item.TTL, 10)),
			), nil
		}
		return encodeArray([]byte("SET"), item.Key.Bytes(), item.Value.Bytes()), nil
	case workload.Delete:
		return encodeArray([]byte("DEL"), item.Key.Bytes()), nil
	case workload.HashGet:
		return encodeArray([]byte("HGET"), item.Key.Bytes(), item.InnerKey.Bytes()), nil
	case workload.HashSet:
		return encodeArray([]byte("HSET"), item.Key.Bytes(), item.InnerKey.Bytes(), item.Value.Bytes()), nil
	case workload.HashDelete:
		return encodeArray([]byte("HDEL"), item.Key.Bytes(), item.InnerKey.Bytes()), nil
	case workload.HashExists:
		return encodeArray([]byte("HEXISTS"), item.Key.Bytes(), item.InnerKey.Bytes()), nil
	default:
		return nil, fmt.Errorf("redis: unsupported command %s", item.Command)
	}
}

func encodeArray(parts ...[]byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "*%d\r\n", len(parts))
	for _, p := range parts {
		fmt.Fprintf(&buf, "$%d\r\n", len(p))
		buf.Write(p)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// respValue is the subset of RESP reply types this driver's commands ever
// receive: simple strings, errors, integers, and bulk strings (including
// the null bulk string, "$-1").
type respValue struct {
	kind    byte
	str     string
	bulk    []byte
	bulkNil bool
}

func (c *redisConn) readReply() (respValue, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return respValue{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return respValue{}, errors.New("redis: empty reply line")
	}

	kind := line[0]
	body := line[1:]
	switch kind {
	case '+', '-', ':':
		return respValue{kind: kind, str: body}, nil
	case '$':
		n, err := strconv.Atoi(body)
		if err != nil {
			return respValue{}, fmt.Errorf("redis: malformed bulk length %q: %w", body, err)
		}
		if n < 0 {
			return respValue{kind: kind, bulkNil: true}, nil
		}
		buf := make([]byte, n+2) // payload plus trailing \r\n
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return respValue{}, err
		}
		return respValue{kind: kind, bulk: buf[:n]}, nil
	default:
		return respValue{}, fmt.Errorf("redis: unsupported reply type %q", kind)
	}
}

func classify(cmd workload.CommandTag, v respValue) (driver.Outcome, error) {
	if v.kind == '-' {
		return driver.Outcome{}, fmt.Errorf("redis: server error: %s", v.str)
	}

	switch cmd {
	case workload.Get, workload.HashGet:
		hit := !v.bulkNil
		return driver.Outcome{Hit: &hit}, nil

	case workload.Set:
		if v.kind == '+' && v.str == "OK" {
			return driver.Outcome{Stored: true}, nil
		}
		return driver.Outcome{}, fmt.Errorf("redis: unexpected SET reply %q", v.str)

	case workload.Delete, workload.HashDelete:
		n, err := strconv.ParseInt(v.str, 10, 64)
		if err != nil {
			return driver.Outcome{}, fmt.Errorf("redis: unexpected %s reply %q: %w", cmd, v.str, err)
		}
		return driver.Outcome{Deleted: n > 0}, nil

	case workload.HashExists:
		n, err := strconv.ParseInt(v.str, 10, 64)
		if err != nil {
			return driver.Outcome{}, fmt.Errorf("redis: unexpected HEXISTS reply %q: %w", v.str, err)
		}
		hit := n == 1
		return driver.Outcome{Hit: &hit}, nil

	case workload.HashSet:
		return driver.Outcome{Stored: true}, nil

	default:
		return driver.Outcome{}, fmt.Errorf("redis: unsupported command %s", cmd)
	}
}

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return context.DeadlineExceeded
	}
	return err
}
