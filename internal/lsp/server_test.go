package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.lsp.dev/protocol"
)

func TestServerInitialize(t *testing.T) {
	server := NewServer(nil, WithVersion("1.2.3"))

	params, _ := json.Marshal(protocol.InitializeParams{
		ProcessID: 1234,
		RootURI:   "file:///test",
	})

	result, err := server.Handle(context.Background(), &Request{
		JSONRPC: "2.0",
		ID:      rawID(1),
		Method:  "initialize",
		Params:  params,
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	initResult, ok := result.(*protocol.InitializeResult)
	if !ok {
		t.Fatalf("result is not *protocol.InitializeResult: %T", result)
	}

	if initResult.ServerInfo == nil || initResult.ServerInfo.Name != "scl-ls" {
		t.Errorf("ServerInfo = %+v, want name %q", initResult.ServerInfo, "scl-ls")
	}
	if initResult.ServerInfo.Version != "1.2.3" {
		t.Errorf("ServerInfo.Version = %q, want %q", initResult.ServerInfo.Version, "1.2.3")
	}

	syncOpts, ok := initResult.Capabilities.TextDocumentSync.(protocol.TextDocumentSyncOptions)
	if !ok {
		t.Fatalf("TextDocumentSync is %T", initResult.Capabilities.TextDocumentSync)
	}
	if !syncOpts.OpenClose || syncOpts.Change != protocol.TextDocumentSyncKindIncremental {
		t.Errorf("TextDocumentSync = %+v, want open/close with incremental changes", syncOpts)
	}
	if cp := initResult.Capabilities.CompletionProvider; cp == nil || !cp.ResolveProvider {
		t.Errorf("CompletionProvider = %+v, want resolve support", cp)
	}
	if initResult.Capabilities.Workspace != nil {
		t.Error("Workspace capabilities advertised without client folder support")
	}
}

func TestServerInitializeWorkspaceFolders(t *testing.T) {
	server := NewServer(nil)

	params, _ := json.Marshal(protocol.InitializeParams{
		Capabilities: protocol.ClientCapabilities{
			Workspace: &protocol.WorkspaceClientCapabilities{WorkspaceFolders: true},
		},
	})
	result, err := server.Handle(context.Background(), &Request{
		ID:     rawID(1),
		Method: "initialize",
		Params: params,
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	ws := result.(*protocol.InitializeResult).Capabilities.Workspace
	if ws == nil || ws.WorkspaceFolders == nil || !ws.WorkspaceFolders.Supported {
		t.Errorf("Workspace = %+v, want workspace folders supported", ws)
	}
}

func TestServerNotInitialized(t *testing.T) {
	server := NewServer(nil)

	// Try to call a method before initialization
	params, _ := json.Marshal(protocol.CompletionParams{})
	_, err := server.Handle(context.Background(), &Request{
		JSONRPC: "2.0",
		ID:      rawID(1),
		Method:  "textDocument/completion",
		Params:  params,
	})

	if err == nil {
		t.Fatal("expected error for uninitialized server")
	}

	var rpcErr *ResponseError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected ResponseError, got %T", err)
	}
	if rpcErr.Code != CodeInvalidRequest {
		t.Errorf("Code = %d, want %d", rpcErr.Code, CodeInvalidRequest)
	}
}

func TestServerLifecycle(t *testing.T) {
	exitCalled := false
	server := NewServer(func() { exitCalled = true })

	initParams, _ := json.Marshal(protocol.InitializeParams{})
	if _, err := server.Handle(context.Background(), &Request{
		Method: "initialize",
		ID:     rawID(1),
		Params: initParams,
	}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	// Initialized notification (no ID)
	if _, err := server.Handle(context.Background(), &Request{
		Method: "initialized",
		Params: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("initialized failed: %v", err)
	}

	if _, err := server.Handle(context.Background(), &Request{
		Method: "shutdown",
		ID:     rawID(2),
	}); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	// After shutdown, only exit is allowed
	_, err := server.Handle(context.Background(), &Request{
		Method: "textDocument/completion",
		ID:     rawID(3),
		Params: json.RawMessage("{}"),
	})
	var rpcErr *ResponseError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("request after shutdown: err = %v, want InvalidRequest", err)
	}

	if _, err := server.Handle(context.Background(), &Request{Method: "exit"}); err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	if !exitCalled {
		t.Error("onExit was not called")
	}
	if got := server.ExitCode(); got != 0 {
		t.Errorf("ExitCode() = %d, want 0", got)
	}
}

func TestServerExitWithoutShutdown(t *testing.T) {
	server := NewServer(nil)
	if got := server.ExitCode(); got != 0 {
		t.Errorf("ExitCode() before exit = %d, want 0", got)
	}
	if _, err := server.Handle(context.Background(), &Request{Method: "exit"}); err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	if got := server.ExitCode(); got != 1 {
		t.Errorf("ExitCode() = %d, want 1", got)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t, protocol.ClientCapabilities{})

	_, err := server.Handle(context.Background(), &Request{
		ID:     rawID(4),
		Method: "textDocument/hover",
		Params: json.RawMessage("{}"),
	})
	if !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("err = %v, want ErrMethodNotFound", err)
	}
}

func TestInitializedRegistersForConfiguration(t *testing.T) {
	_, client := newTestServer(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})

	calls := client.callMethods()
	if diff := cmp.Diff([]string{"client/registerCapability"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestInitializedWithoutConfigurationSkipsRegistration(t *testing.T) {
	_, client := newTestServer(t, protocol.ClientCapabilities{})

	if calls := client.callMethods(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{})

	openDocument(t, server, "file:///a.scl", "HELLO world FOO")

	published := client.lastDiagnostics(t, "file:///a.scl")
	got := summarize(published)
	want := []diagSummary{
		{Message: "HELLO is all uppercase.", Range: rng(0, 0, 0, 5)},
		{Message: "FOO is all uppercase.", Range: rng(0, 12, 0, 15)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	for _, d := range published {
		if d.Severity != protocol.DiagnosticSeverityWarning {
			t.Errorf("Severity = %v, want Warning", d.Severity)
		}
		if d.Source != "scl" {
			t.Errorf("Source = %q, want %q", d.Source, "scl")
		}
		if d.RelatedInformation != nil {
			t.Errorf("RelatedInformation = %v, want none without client support", d.RelatedInformation)
		}
	}
}

func TestDidOpenRelatedInformation(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{
		TextDocument: &protocol.TextDocumentClientCapabilities{
			PublishDiagnostics: &protocol.PublishDiagnosticsClientCapabilities{RelatedInformation: true},
		},
	})

	openDocument(t, server, "file:///a.scl", "say HI")

	published := client.lastDiagnostics(t, "file:///a.scl")
	if len(published) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(published))
	}
	var notes []string
	for _, info := range published[0].RelatedInformation {
		notes = append(notes, info.Message)
		if info.Location.Range != published[0].Range {
			t.Errorf("related range = %v, want %v", info.Location.Range, published[0].Range)
		}
	}
	if diff := cmp.Diff([]string{"Spelling matters", "Particularly for names"}, notes); diff != "" {
		t.Errorf("related information mismatch (-want +got):\n%s", diff)
	}
}

func TestDidChangeIncremental(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{})
	openDocument(t, server, "file:///a.scl", "hello\nworld")

	changeDocument(t, server, "file:///a.scl", 2, []contentChange{
		{Range: &protocol.Range{Start: pos(1, 0), End: pos(1, 5)}, Text: "WORLD"},
	})

	doc, ok := server.Document("file:///a.scl")
	if !ok {
		t.Fatal("document not found after change")
	}
	if doc.Content != "hello\nWORLD" {
		t.Errorf("Content = %q, want %q", doc.Content, "hello\nWORLD")
	}
	if doc.Version != 2 {
		t.Errorf("Version = %d, want 2", doc.Version)
	}

	got := summarize(client.lastDiagnostics(t, "file:///a.scl"))
	want := []diagSummary{{Message: "WORLD is all uppercase.", Range: rng(1, 0, 1, 5)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestDidChangeFullReplacement(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{})
	openDocument(t, server, "file:///a.scl", "ABC")

	changeDocument(t, server, "file:///a.scl", 2, []contentChange{{Text: "abc"}})

	doc, _ := server.Document("file:///a.scl")
	if doc.Content != "abc" {
		t.Errorf("Content = %q, want %q", doc.Content, "abc")
	}
	if got := client.lastDiagnostics(t, "file:///a.scl"); len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})
	openDocument(t, server, "file:///a.scl", "BAD")
	if server.Settings().Cached() != 1 {
		t.Fatalf("Cached = %d, want 1", server.Settings().Cached())
	}

	params, _ := json.Marshal(protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.scl"},
	})
	if _, err := server.Handle(context.Background(), &Request{Method: "textDocument/didClose", Params: params}); err != nil {
		t.Fatalf("didClose failed: %v", err)
	}

	if _, ok := server.Document("file:///a.scl"); ok {
		t.Error("document still open after didClose")
	}
	if server.Settings().Cached() != 0 {
		t.Errorf("Cached = %d, want 0 after didClose", server.Settings().Cached())
	}
	got := client.lastDiagnostics(t, "file:///a.scl")
	if got == nil || len(got) != 0 {
		t.Errorf("diagnostics = %v, want empty set", got)
	}
}

func TestDidChangeConfigurationGlobal(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{})
	openDocument(t, server, "file:///b.scl", "B1 OK")
	openDocument(t, server, "file:///a.scl", "A1 OK")
	before := client.publishCount()

	changeConfiguration(t, server, `{"settings":{"scl":{"maxNumberOfProblems":5}}}`)
	if got := server.Settings().Global().MaxNumberOfProblems; got != 5 {
		t.Errorf("MaxNumberOfProblems = %d, want 5", got)
	}

	// Every open document is revalidated, in URI order.
	published := client.publishedURIs()[before:]
	want := []protocol.DocumentURI{"file:///a.scl", "file:///b.scl"}
	if diff := cmp.Diff(want, published); diff != "" {
		t.Errorf("revalidated documents mismatch (-want +got):\n%s", diff)
	}

	changeConfiguration(t, server, `{"settings":{"other":{}}}`)
	if got := server.Settings().Global().MaxNumberOfProblems; got != DefaultMaxNumberOfProblems {
		t.Errorf("MaxNumberOfProblems = %d, want default %d", got, DefaultMaxNumberOfProblems)
	}
}

func TestDidChangeConfigurationUsesConfiguredDefaults(t *testing.T) {
	client := &fakeClient{}
	server := NewServer(nil, WithDefaultSettings(Settings{MaxNumberOfProblems: 42}))
	server.SetConn(client)
	initialize(t, server, protocol.ClientCapabilities{})

	changeConfiguration(t, server, `{"settings":null}`)
	if got := server.Settings().Global().MaxNumberOfProblems; got != 42 {
		t.Errorf("MaxNumberOfProblems = %d, want 42", got)
	}
}

func TestDidChangeConfigurationScoped(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})
	client.setSettings("file:///a.scl", `{"maxNumberOfProblems":3}`)

	openDocument(t, server, "file:///a.scl", "X")
	changeDocument(t, server, "file:///a.scl", 2, []contentChange{{Text: "Y"}})
	if got := client.configurationCalls(); got != 1 {
		t.Fatalf("configuration calls = %d, want 1 (cached)", got)
	}

	changeConfiguration(t, server, `{"settings":{"scl":{"maxNumberOfProblems":9}}}`)
	if got := client.configurationCalls(); got != 2 {
		t.Errorf("configuration calls = %d, want 2 after reset", got)
	}

	s, err := server.Settings().Get(context.Background(), "file:///a.scl")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.MaxNumberOfProblems != 3 {
		t.Errorf("MaxNumberOfProblems = %d, want 3 from client", s.MaxNumberOfProblems)
	}
}

func TestSettingsFailureAbortsValidation(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})
	client.configErr = errors.New("client went away")

	params, _ := json.Marshal(protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.scl", LanguageID: "scl", Version: 1, Text: "BAD"},
	})
	_, err := server.Handle(context.Background(), &Request{Method: "textDocument/didOpen", Params: params})
	if err == nil {
		t.Fatal("expected didOpen to report the settings failure")
	}
	if client.publishCount() != 0 {
		t.Errorf("published %d times, want 0", client.publishCount())
	}

	// The document is still tracked.
	if _, ok := server.Document("file:///a.scl"); !ok {
		t.Error("document not tracked after failed validation")
	}
}

func TestWorkspaceEventsLogToClient(t *testing.T) {
	server, client := newTestServer(t, protocol.ClientCapabilities{})

	params, _ := json.Marshal(protocol.DidChangeWorkspaceFoldersParams{
		Event: protocol.WorkspaceFoldersChangeEvent{
			Added: []protocol.WorkspaceFolder{{URI: "file:///w", Name: "w"}},
		},
	})
	if _, err := server.Handle(context.Background(), &Request{Method: "workspace/didChangeWorkspaceFolders", Params: params}); err != nil {
		t.Fatalf("didChangeWorkspaceFolders failed: %v", err)
	}

	params, _ = json.Marshal(protocol.DidChangeWatchedFilesParams{
		Changes: []*protocol.FileEvent{{Type: protocol.FileChangeTypeChanged, URI: "file:///w/a.scl"}},
	})
	if _, err := server.Handle(context.Background(), &Request{Method: "workspace/didChangeWatchedFiles", Params: params}); err != nil {
		t.Fatalf("didChangeWatchedFiles failed: %v", err)
	}

	if got := client.countNotifications("window/logMessage"); got != 2 {
		t.Errorf("logMessage notifications = %d, want 2", got)
	}
}

// --- helpers ---

func rawID(n int) *json.RawMessage {
	raw := json.RawMessage([]byte{byte('0' + n)})
	return &raw
}

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func rng(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{Start: pos(sl, sc), End: pos(el, ec)}
}

type diagSummary struct {
	Message string
	Range   protocol.Range
}

func summarize(diags []protocol.Diagnostic) []diagSummary {
	out := make([]diagSummary, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagSummary{Message: d.Message, Range: d.Range})
	}
	return out
}

// newTestServer returns an initialized server talking to a fake client.
func newTestServer(t *testing.T, caps protocol.ClientCapabilities) (*Server, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	server := NewServer(nil)
	server.SetConn(client)
	initialize(t, server, caps)
	return server, client
}

func initialize(t *testing.T, server *Server, caps protocol.ClientCapabilities) {
	t.Helper()
	params, _ := json.Marshal(protocol.InitializeParams{Capabilities: caps})
	if _, err := server.Handle(context.Background(), &Request{ID: rawID(1), Method: "initialize", Params: params}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := server.Handle(context.Background(), &Request{Method: "initialized", Params: json.RawMessage("{}")}); err != nil {
		t.Fatalf("initialized failed: %v", err)
	}
}

func openDocument(t *testing.T, server *Server, uri protocol.DocumentURI, text string) {
	t.Helper()
	params, _ := json.Marshal(protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "scl", Version: 1, Text: text},
	})
	if _, err := server.Handle(context.Background(), &Request{Method: "textDocument/didOpen", Params: params}); err != nil {
		t.Fatalf("didOpen failed: %v", err)
	}
}

func changeDocument(t *testing.T, server *Server, uri protocol.DocumentURI, version int32, changes []contentChange) {
	t.Helper()
	params, _ := json.Marshal(didChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: changes,
	})
	if _, err := server.Handle(context.Background(), &Request{Method: "textDocument/didChange", Params: params}); err != nil {
		t.Fatalf("didChange failed: %v", err)
	}
}

func changeConfiguration(t *testing.T, server *Server, params string) {
	t.Helper()
	if _, err := server.Handle(context.Background(), &Request{
		Method: "workspace/didChangeConfiguration",
		Params: json.RawMessage(params),
	}); err != nil {
		t.Fatalf("didChangeConfiguration failed: %v", err)
	}
}

type notification struct {
	method string
	params json.RawMessage
}

// fakeClient records what the server sends and answers server requests.
type fakeClient struct {
	mu            sync.Mutex
	notifications []notification
	calls         []string
	settings      map[protocol.DocumentURI]json.RawMessage
	configErr     error
}

func (c *fakeClient) Notify(ctx context.Context, method string, params any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, notification{method: method, params: data})
	return nil
}

func (c *fakeClient) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	c.mu.Unlock()

	if method != "workspace/configuration" {
		return nil
	}
	if c.configErr != nil {
		return c.configErr
	}

	var p protocol.ConfigurationParams
	data, _ := json.Marshal(params)
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.mu.Lock()
	answers := make([]json.RawMessage, 0, len(p.Items))
	for _, item := range p.Items {
		s, ok := c.settings[item.ScopeURI]
		if !ok {
			s = json.RawMessage("null")
		}
		answers = append(answers, s)
	}
	c.mu.Unlock()

	data, _ = json.Marshal(answers)
	return json.Unmarshal(data, result)
}

func (c *fakeClient) setSettings(uri protocol.DocumentURI, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil {
		c.settings = make(map[protocol.DocumentURI]json.RawMessage)
	}
	c.settings[uri] = json.RawMessage(raw)
}

func (c *fakeClient) callMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeClient) configurationCalls() int {
	n := 0
	for _, m := range c.callMethods() {
		if m == "workspace/configuration" {
			n++
		}
	}
	return n
}

func (c *fakeClient) countNotifications(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, note := range c.notifications {
		if note.method == method {
			n++
		}
	}
	return n
}

func (c *fakeClient) publishCount() int {
	return c.countNotifications("textDocument/publishDiagnostics")
}

func (c *fakeClient) publishes() []protocol.PublishDiagnosticsParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.PublishDiagnosticsParams
	for _, note := range c.notifications {
		if note.method != "textDocument/publishDiagnostics" {
			continue
		}
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(note.params, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeClient) publishedURIs() []protocol.DocumentURI {
	var uris []protocol.DocumentURI
	for _, p := range c.publishes() {
		uris = append(uris, p.URI)
	}
	return uris
}

// lastDiagnostics returns the most recent diagnostic set published for uri.
func (c *fakeClient) lastDiagnostics(t *testing.T, uri protocol.DocumentURI) []protocol.Diagnostic {
	t.Helper()
	all := c.publishes()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].URI == uri {
			return all[i].Diagnostics
		}
	}
	t.Fatalf("no diagnostics published for %s", uri)
	return nil
}
