// Package lsp implements a Language Server Protocol server for Scratch Language.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// JSON-RPC 2.0 message types

// Request is a JSON-RPC request or notification.
type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"` // nil for notifications
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  any              `json:"result"`
	Error   *ResponseError   `json:"error,omitempty"`
}

// MarshalJSON omits result on error responses and keeps a null result on
// successful ones, as JSON-RPC requires.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string           `json:"jsonrpc"`
			ID      *json.RawMessage `json:"id"`
			Error   *ResponseError   `json:"error"`
		}{r.JSONRPC, r.ID, r.Error})
	}
	type plain Response
	return json.Marshal(plain(r))
}

// ResponseError is a JSON-RPC error.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific error codes
	CodeRequestCancelled = -32800
	CodeContentModified  = -32801
)

// ErrClosed is returned by Call when the connection goes away before the
// response arrives.
var ErrClosed = errors.New("jsonrpc: connection closed")

// message is the union of every shape read off the wire.
type message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

func (m *message) isResponse() bool {
	return m.Method == "" && m.ID != nil
}

// Conn handles JSON-RPC communication over an io.ReadWriteCloser.
//
// Incoming requests and notifications are handled one at a time, in arrival
// order, on a single dispatch goroutine. Responses to calls made with Call
// are delivered by the read loop directly, so a handler may wait on Call
// without stalling the connection.
type Conn struct {
	rwc     io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex

	handler Handler
	logger  *zap.Logger

	seq       atomic.Int64
	pendingMu sync.Mutex
	pending   map[string]chan *message
	closed    bool
}

// Handler processes incoming requests.
type Handler interface {
	Handle(ctx context.Context, req *Request) (result any, err error)
}

// HandlerFunc is an adapter to use functions as Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger used for transport-level failures.
func WithLogger(logger *zap.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

// NewConn creates a new JSON-RPC connection.
func NewConn(rwc io.ReadWriteCloser, handler Handler, opts ...ConnOption) *Conn {
	c := &Conn{
		rwc:     rwc,
		reader:  bufio.NewReader(rwc),
		handler: handler,
		logger:  zap.NewNop(),
		pending: make(map[string]chan *message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads and handles messages until EOF, an error, or ctx is done.
//
// When ctx is done Run closes the connection and returns without waiting
// for the reader: a blocked read on stdin cannot be interrupted.
func (c *Conn) Run(ctx context.Context) error {
	q := newRequestQueue()
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for {
			req, ok := q.pop()
			if !ok {
				return
			}
			c.handleRequest(ctx, req)
		}
	}()

	readDone := make(chan error, 1)
	go func() {
		readDone <- c.readLoop(ctx, q)
	}()

	var err error
	select {
	case err = <-readDone:
	case <-ctx.Done():
		_ = c.rwc.Close()
		err = ctx.Err()
	}
	c.failPending()
	q.close()
	<-dispatched
	return err
}

func (c *Conn) readLoop(ctx context.Context, q *requestQueue) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		if msg.isResponse() {
			c.deliver(msg)
			continue
		}
		q.push(&Request{
			JSONRPC: msg.JSONRPC,
			ID:      msg.ID,
			Method:  msg.Method,
			Params:  msg.Params,
		})
	}
}

func (c *Conn) readMessage() (*message, error) {
	// Read headers
	var contentLength int
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // End of headers
		}

		// Parse Content-Length header
		if value, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	// Read body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	return &msg, nil
}

func (c *Conn) handleRequest(ctx context.Context, req *Request) {
	result, err := c.safeHandle(ctx, req)

	// Notifications don't get responses
	if req.IsNotification() {
		if err != nil {
			c.logger.Warn("notification failed", zap.String("method", req.Method), zap.Error(err))
		}
		return
	}

	resp := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if err != nil {
		resp.Error = &ResponseError{
			Code:    CodeInternalError,
			Message: err.Error(),
		}
		// Check for specific error types
		var rpcErr *ResponseError
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
		}
	} else {
		resp.Result = result
	}

	if err := c.writeResponse(&resp); err != nil {
		c.logger.Error("failed to send response", zap.String("method", req.Method), zap.Error(err))
	}
}

// safeHandle runs the handler, turning a panic into an internal error so one
// bad request cannot take the server down.
func (c *Conn) safeHandle(ctx context.Context, req *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in handler",
				zap.String("method", req.Method),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result, err = nil, &ResponseError{
				Code:    CodeInternalError,
				Message: fmt.Sprintf("%v", r),
			}
		}
	}()
	if c.handler == nil {
		return nil, ErrMethodNotFound
	}
	return c.handler.Handle(ctx, req)
}

func (c *Conn) writeResponse(resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	return c.write(body)
}

func (c *Conn) write(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := c.rwc.Write([]byte(header)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := c.rwc.Write(body); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}

	return nil
}

// Notify sends a notification to the peer (no response expected).
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = data
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	return c.write(body)
}

// Call sends a request to the peer and waits for its response. If result is
// non-nil the response result is decoded into it. An error response is
// returned as a *ResponseError.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := json.RawMessage(strconv.FormatInt(c.seq.Add(1), 10))
	req := Request{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = data
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	ch := make(chan *message, 1)
	key := string(id)
	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return ErrClosed
	}
	c.pending[key] = ch
	c.pendingMu.Unlock()

	if err := c.write(body); err != nil {
		c.forget(key)
		return err
	}

	select {
	case <-ctx.Done():
		c.forget(key)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Conn) forget(key string) {
	c.pendingMu.Lock()
	delete(c.pending, key)
	c.pendingMu.Unlock()
}

// deliver hands a response to the Call waiting for it.
func (c *Conn) deliver(msg *message) {
	key := string(*msg.ID)
	c.pendingMu.Lock()
	ch, ok := c.pending[key]
	delete(c.pending, key)
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request", zap.String("id", key))
		return
	}
	ch <- msg
}

// failPending wakes every waiting Call with ErrClosed.
func (c *Conn) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.closed = true
	for key, ch := range c.pending {
		close(ch)
		delete(c.pending, key)
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.rwc.Close()
}

// ErrMethodNotFound is returned when a method is not implemented.
var ErrMethodNotFound = &ResponseError{
	Code:    CodeMethodNotFound,
	Message: "method not found",
}

// requestQueue is an unbounded FIFO between the read loop and the
// dispatcher. It never blocks the reader.
type requestQueue struct {
	mu     sync.Mutex
	items  []*Request
	ready  chan struct{}
	closed bool
}

func newRequestQueue() *requestQueue {
	return &requestQueue{ready: make(chan struct{}, 1)}
}

func (q *requestQueue) push(req *Request) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, req)
	q.mu.Unlock()
	q.signal()
}

func (q *requestQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *requestQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop blocks until a request is available. It reports false once the queue
// is closed and drained.
func (q *requestQueue) pop() (*Request, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.ready
	}
}
