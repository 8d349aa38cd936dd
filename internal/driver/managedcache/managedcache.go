// Package managedcache implements the gRPC-based managed-cache client and
// the pub/sub publisher, sharing one multiplexed channel per task. Request
// and response framing uses a hand-registered gob codec (see codec.go)
// rather than protoc-generated stubs, since no .proto ships for a managed
// cache service in this repository.
package managedcache

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

const (
	executeMethod = "/cachebench.managedcache.v1.ManagedCache/Execute"
	publishMethod = "/cachebench.managedcache.v1.PubSub/Publish"
)

// Connector dials one managed-cache endpoint over gRPC.
type Connector struct {
	Addr          string
	TLSConfig     *grpc.DialOption // nil uses insecure transport credentials
	Authorization string           // MOMENTO_AUTHENTICATION value, sent per-call
}

// Connect opens the gRPC channel, blocking until it reaches the READY
// state or ctx's deadline, the gRPC equivalent of the common contract's
// "open the transport under connection.timeout".
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithBlock(),
	}
	if c.TLSConfig != nil {
		opts = append(opts, *c.TLSConfig)
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	cc, err := grpc.DialContext(ctx, c.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("managedcache: dial: %w", err)
	}
	return &managedCacheConn{cc: cc, authorization: c.Authorization}, nil
}

type managedCacheConn struct {
	cc            *grpc.ClientConn
	authorization string
}

var supported = map[workload.CommandTag]bool{
	workload.Get:           true,
	workload.Set:           true,
	workload.HashGet:       true,
	workload.HashSet:       true,
	workload.HashDelete:    true,
	workload.HashIncrement: true,
	workload.HashMultiGet:  true,
	workload.Publish:       true,
}

func (c *managedCacheConn) Supports(cmd workload.CommandTag) bool { return supported[cmd] }

func (c *managedCacheConn) Close() error { return c.cc.Close() }

func (c *managedCacheConn) Exchange(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	if item.Command == workload.Publish {
		return c.publish(ctx, item)
	}

	req, err := compose(item)
	if err != nil {
		return driver.Outcome{}, err
	}

	var resp Response
	if err := c.cc.Invoke(ctx, executeMethod, req, &resp); err != nil {
		return driver.Outcome{}, fmt.Errorf("managedcache: invoke: %w", err)
	}
	return classify(item.Command, resp)
}

func (c *managedCacheConn) publish(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	req := &Request{
		Op:      "PUBLISH",
		Topic:   item.Topic.Bytes(),
		Message: item.Message.Bytes(),
	}
	var resp Response
	if err := c.cc.Invoke(ctx, publishMethod, req, &resp); err != nil {
		return driver.Outcome{}, fmt.Errorf("managedcache: publish: %w", err)
	}
	if resp.Status == "ERROR" {
		return driver.Outcome{}, fmt.Errorf("managedcache: publish error: %s", resp.Error)
	}
	return driver.Outcome{}, nil
}

func compose(item *workitem.WorkItem) (*Request, error) {
	switch item.Command {
	case workload.Get:
		return &Request{Op: "GET", Key: item.Key.Bytes()}, nil
	case workload.Set:
		return &Request{Op: "SET", Key: item.Key.Bytes(), Value: item.Value.Bytes(), TTL: item.TTL}, nil
	case workload.HashGet:
		return &Request{Op: "HGET", Key: item.Key.Bytes(), Field: item.InnerKey.Bytes()}, nil
	case workload.HashSet:
		return &Request{Op: "HSET", Key: item.Key.Bytes(), Field: item.InnerKey.Bytes(), Value: item.Value.Bytes()}, nil
	case workload.HashDelete:
		return &Request{Op: "HDEL", Key: item.Key.Bytes(), Field: item.InnerKey.Bytes()}, nil
	case workload.HashIncrement:
		return &Request{Op: "HINCR", Key: item.Key.Bytes(), Field: item.InnerKey.Bytes(), Delta: 1}, nil
	case workload.HashMultiGet:
		fields := make([][]byte, len(item.InnerKeys))
		for i, ik := range item.InnerKeys {
			fields[i] = ik.Bytes()
		}
		return &Request{Op: "HMGET", Key: item.Key.Bytes(), Fields: fields}, nil
	default:
		return nil, fmt.Errorf("managedcache: unsupported command %s", item.Command)
	}
}

func classify(cmd workload.CommandTag, resp Response) (driver.Outcome, error) {
	switch resp.Status {
	case "ERROR":
		return driver.Outcome{}, fmt.Errorf("managedcache: %s", resp.Error)
	case "HIT":
		hit := true
		return driver.Outcome{Hit: &hit}, nil
	case "MISS":
		hit := false
		return driver.Outcome{Hit: &hit}, nil
	case "STORED":
		return driver.Outcome{Stored: true}, nil
	case "DELETED":
		return driver.Outcome{Deleted: true}, nil
	case "OK":
		return driver.Outcome{}, nil
	default:
		return driver.Outcome{}, fmt.Errorf("managedcache: unrecognized status %q for %s", resp.Status, cmd)
	}
}
