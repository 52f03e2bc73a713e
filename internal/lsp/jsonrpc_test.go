package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReadMessage(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"test","params":{}}`)

	conn := NewConn(&mockConn{
		Reader: strings.NewReader(input),
		Writer: io.Discard,
	}, nil)

	msg, err := conn.readMessage()
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}

	if msg.Method != "test" {
		t.Errorf("Method = %q, want %q", msg.Method, "test")
	}
	if msg.ID == nil {
		t.Error("ID should not be nil")
	}
	if msg.isResponse() {
		t.Error("request classified as response")
	}
}

func TestReadMessageResponse(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":7,"result":[{"maxNumberOfProblems":5}]}`)

	conn := NewConn(&mockConn{
		Reader: strings.NewReader(input),
		Writer: io.Discard,
	}, nil)

	msg, err := conn.readMessage()
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}
	if !msg.isResponse() {
		t.Error("response not classified as response")
	}
}

func TestReadMessageMissingLength(t *testing.T) {
	conn := NewConn(&mockConn{
		Reader: strings.NewReader("Content-Type: x\r\n\r\n{}"),
		Writer: io.Discard,
	}, nil)

	if _, err := conn.readMessage(); err == nil {
		t.Fatal("expected error for missing Content-Length")
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{
		Reader: bytes.NewReader(nil),
		Writer: &buf,
	}, nil)

	id := json.RawMessage(`1`)
	resp := &Response{
		JSONRPC: "2.0",
		ID:      &id,
		Result:  map[string]string{"status": "ok"},
	}

	if err := conn.writeResponse(resp); err != nil {
		t.Fatalf("writeResponse failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Content-Length:") {
		t.Error("output should contain Content-Length header")
	}
	if !strings.Contains(output, `"result"`) {
		t.Error("output should contain result field")
	}
}

func TestResponseMarshal(t *testing.T) {
	id := json.RawMessage(`3`)
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "null result",
			resp: Response{JSONRPC: "2.0", ID: &id},
			want: `{"jsonrpc":"2.0","id":3,"result":null}`,
		},
		{
			name: "error omits result",
			resp: Response{
				JSONRPC: "2.0",
				ID:      &id,
				Error:   &ResponseError{Code: CodeInvalidParams, Message: "bad"},
			},
			want: `{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"bad"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResponseError(t *testing.T) {
	err := &ResponseError{
		Code:    CodeMethodNotFound,
		Message: "method not found",
	}

	if err.Error() != "jsonrpc error -32601: method not found" {
		t.Errorf("Error() = %q, want %q", err.Error(), "jsonrpc error -32601: method not found")
	}
}

func TestHandlerFunc(t *testing.T) {
	called := false
	h := HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		called = true
		return "ok", nil
	})

	result, err := h.Handle(context.Background(), &Request{Method: "test"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "ok" {
		t.Errorf("result = %v, want %q", result, "ok")
	}
}

func TestConnRunHandlesInOrder(t *testing.T) {
	var input strings.Builder
	for i, method := range []string{"first", "second", "third"} {
		input.WriteString(frame(fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":{"n":%d}}`, method, i)))
	}

	var got []string
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(input.String()),
		Writer: io.Discard,
	}, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		got = append(got, req.Method)
		return nil, nil
	}))

	if err := conn.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handled methods mismatch (-want +got):\n%s", diff)
	}
}

func TestConnRecoversFromPanic(t *testing.T) {
	var out bytes.Buffer
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(frame(`{"jsonrpc":"2.0","id":1,"method":"boom"}`)),
		Writer: &out,
	}, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		panic("kaboom")
	}))

	if err := conn.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	msgs := readMessages(t, &out)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Error == nil || msgs[0].Error.Code != CodeInternalError {
		t.Errorf("error = %+v, want code %d", msgs[0].Error, CodeInternalError)
	}
}

func TestConnUnknownMethod(t *testing.T) {
	var out bytes.Buffer
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(frame(`{"jsonrpc":"2.0","id":2,"method":"nope"}`)),
		Writer: &out,
	}, nil)

	if err := conn.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	msgs := readMessages(t, &out)
	if len(msgs) != 1 || msgs[0].Error == nil {
		t.Fatalf("messages = %+v, want one error response", msgs)
	}
	if msgs[0].Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", msgs[0].Error.Code, CodeMethodNotFound)
	}
}

func TestConnCallFromHandler(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The server answers a request by first asking the client something,
	// which only works if responses bypass the dispatcher.
	var server *Conn
	server = NewConn(a, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		var echoed string
		if err := server.Call(ctx, "client/echo", "ping", &echoed); err != nil {
			return nil, err
		}
		return "server saw " + echoed, nil
	}))
	client := NewConn(b, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		var s string
		if err := json.Unmarshal(req.Params, &s); err != nil {
			return nil, err
		}
		return s + "-pong", nil
	}))
	go server.Run(ctx)
	go client.Run(ctx)

	var result string
	if err := client.Call(ctx, "server/ask", nil, &result); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if want := "server saw ping-pong"; result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestConnCallErrorResponse(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := NewConn(a, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: "no"}
	}))
	client := NewConn(b, nil)
	go server.Run(ctx)
	go client.Run(ctx)

	err := client.Call(ctx, "anything", map[string]int{"x": 1}, nil)
	var rpcErr *ResponseError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call error = %v, want *ResponseError", err)
	}
	if rpcErr.Code != CodeInvalidParams {
		t.Errorf("Code = %d, want %d", rpcErr.Code, CodeInvalidParams)
	}
}

func TestCallAfterClose(t *testing.T) {
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(""),
		Writer: io.Discard,
	}, nil)
	if err := conn.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := conn.Call(context.Background(), "late", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Call error = %v, want ErrClosed", err)
	}
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

// readMessages decodes every framed message in r.
func readMessages(t *testing.T, r io.Reader) []*message {
	t.Helper()
	conn := NewConn(&mockConn{Reader: r, Writer: io.Discard}, nil)
	var msgs []*message
	for {
		msg, err := conn.readMessage()
		if errors.Is(err, io.EOF) {
			return msgs
		}
		if err != nil {
			t.Fatalf("readMessage failed: %v", err)
		}
		msgs = append(msgs, msg)
	}
}

type mockConn struct {
	io.Reader
	io.Writer
}

func (m *mockConn) Close() error {
	return nil
}

func TestConnRunReturnsWhenContextDone(t *testing.T) {
	// Nothing is ever written, so the reader stays blocked.
	r, w := io.Pipe()
	defer w.Close()

	conn := NewConn(&mockConn{Reader: r, Writer: io.Discard}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
