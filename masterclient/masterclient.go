// Package masterclient implements the retry-queued master RPC client
// described in spec §4.3: a FIFO queue of calls to a single endpoint,
// where the head call executes alone, retrying with backoff on
// transport-refused-class failures and advancing to the next call on
// any other completion.
//
// The queue-drain goroutine's lifecycle follows the teacher's
// taskgroup.Group usage (peer.go starts one service goroutine per
// Peer and Wait()s on it at shutdown). The serialized,
// one-at-a-time-with-retry queue shape is grounded cross-pack on
// dermesser-clusterrpc/client/async_client.go, which drains a buffered
// channel of requests in a single background goroutine; this package
// adds the backoff-on-transport-failure behaviour that async_client.go
// does not need, since spec §4.3 requires it.
package masterclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/creachadair/taskgroup"
)

// Backoff is the fixed millisecond schedule from spec §4.3, saturating
// at the last entry.
var Backoff = []int{1, 2, 2, 4, 4, 4, 4, 8, 8, 8, 8, 16, 32, 64, 128, 256, 512, 1000}

// BackoffDelay returns the delay for the k'th consecutive failure
// (k starts at 1), saturating at the schedule's last entry.
func BackoffDelay(k int) time.Duration {
	idx := k - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Backoff) {
		idx = len(Backoff) - 1
	}
	return time.Duration(Backoff[idx]) * time.Millisecond
}

// A Transport performs one RPC call against the master endpoint and
// returns the decoded [code, message, value] result, or a transport
// error if the call could not be completed at all (as opposed to
// completing with a non-1 status code, which is an application-level
// failure, not a transport one).
type Transport interface {
	Call(ctx context.Context, method string, params []any) (code int, message string, value any, err error)
}

// Result is the outcome of a completed call: either the decoded
// [code, message, value] on success (code == 1), or the decoded
// failure tuple (code != 1), surfaced to the caller as described in
// spec §7 taxonomy item 5.
type Result struct {
	Code    int
	Message string
	Value   any
}

// Ok reports whether the result's status code is the success sentinel (1).
func (r Result) Ok() bool { return r.Code == 1 }

// Err returns a non-nil error iff the result's status code is not the
// success sentinel (1).
func (r Result) Err() error {
	if r.Code == 1 {
		return nil
	}
	return fmt.Errorf("masterclient: rpc failed: status=%d message=%s", r.Code, r.Message)
}

type call struct {
	method string
	params []any
	result chan Result
	err    chan error
	ctx    context.Context
}

// A Client serializes calls to one master endpoint, retrying
// transport-refused-class failures with the spec §4.3 backoff and
// otherwise delivering each call's outcome in FIFO order.
type Client struct {
	transport Transport

	mu      sync.Mutex
	pending []*call
	closed  bool

	wake  chan struct{}
	tasks *taskgroup.Group
}

// New constructs a Client bound to transport and starts its
// queue-drain goroutine.
func New(transport Transport) *Client {
	c := &Client{
		transport: transport,
		wake:      make(chan struct{}, 1),
		tasks:     taskgroup.New(nil),
	}
	c.tasks.Go(c.drain)
	return c
}

// Call enqueues an RPC call and blocks until it completes or ctx ends.
// The result's Err method reports whether the master's response
// indicated an application-level failure; a non-nil returned error
// indicates the call was rejected outright (e.g. the client is
// closed, or ctx ended before the call reached the head of the
// queue).
func (c *Client) Call(ctx context.Context, method string, params ...any) (Result, error) {
	cl := &call{method: method, params: params, result: make(chan Result, 1), err: make(chan error, 1), ctx: ctx}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, errors.New("masterclient: client is shut down")
	}
	c.pending = append(c.pending, cl)
	c.mu.Unlock()
	c.poke()

	select {
	case r := <-cl.result:
		return r, nil
	case err := <-cl.err:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Client) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drain is the single background goroutine that executes the head of
// the queue, retrying on transport-refused-class failures and
// advancing otherwise. It runs until Close.
func (c *Client) drain() error {
	failures := 0
	for {
		head, ok := c.peekHead()
		if !ok {
			if !c.waitForWork() {
				return nil // closed
			}
			continue
		}

		if head.ctx.Err() != nil {
			c.shiftHead()
			head.err <- head.ctx.Err()
			continue
		}

		code, message, value, err := c.transport.Call(head.ctx, head.method, head.params)
		if err != nil {
			if isRetryable(err) {
				failures++
				delay := BackoffDelay(failures)
				if !c.sleepOrClosed(delay) {
					return nil
				}
				continue // retry the same head call
			}
			// Non-retryable transport error: definitive failure, advance.
			failures = 0
			c.shiftHead()
			head.err <- err
			continue
		}

		failures = 0
		c.shiftHead()
		head.result <- Result{Code: code, Message: message, Value: value}
	}
}

func (c *Client) peekHead() (*call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, false
	}
	return c.pending[0], true
}

func (c *Client) shiftHead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		c.pending = c.pending[1:]
	}
}

// waitForWork blocks until a call is enqueued or the client is
// closed, reporting false in the latter case.
func (c *Client) waitForWork() bool {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		if len(c.pending) > 0 {
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()
		<-c.wake
	}
}

// sleepOrClosed waits for d or until the client closes, reporting
// false in the latter case.
func (c *Client) sleepOrClosed(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			return true
		case <-c.wake:
			// A new call arrived; keep waiting out the backoff for the
			// current head before re-checking, but notice a close.
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return false
			}
		}
	}
}

// isRetryable classifies a transport error as the "connection
// refused / DNS failure / timeout" class from spec §4.3. Context
// deadline errors, connection resets, and any other error carrying a
// *net.OpError (any socket-level dial, read, or write failure) are
// retried as well; see DESIGN.md's Open Question decision.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// A reset or refusal surfaced as a generic OpError before any
		// response bytes look identical to "nobody was listening" from
		// the caller's perspective.
		return true
	}
	return false
}

// Close stops the drain goroutine, rejecting any queued calls
// (including the head) with a shutdown error. It blocks until the
// goroutine has exited.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, cl := range pending {
		cl.err <- errors.New("masterclient: client is shut down")
	}
	c.poke()
	c.tasks.Wait()
}
