package shim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/scratchlang/scl/internal/lsp"
)

// DialFunc opens a transport to a language server.
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// LanguageClient speaks LSP to one server over a DialFunc transport. It
// answers the server's configuration requests from a fixed Settings value
// and hands published diagnostics to callers waiting in Open.
type LanguageClient struct {
	folder   *WorkspaceFolder
	dial     DialFunc
	settings lsp.Settings
	logger   *zap.Logger

	conn    *lsp.Conn
	cancel  context.CancelFunc
	done    chan error
	stopped bool

	mu      sync.Mutex
	waiters map[protocol.DocumentURI][]chan []protocol.Diagnostic
	latest  map[protocol.DocumentURI][]protocol.Diagnostic
}

// NewLanguageClient returns a client for folder that reaches its server
// through dial. folder is nil for the untitled-document client.
func NewLanguageClient(folder *WorkspaceFolder, dial DialFunc, settings lsp.Settings, logger *zap.Logger) *LanguageClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LanguageClient{
		folder:   folder,
		dial:     dial,
		settings: settings,
		logger:   logger,
		waiters:  make(map[protocol.DocumentURI][]chan []protocol.Diagnostic),
		latest:   make(map[protocol.DocumentURI][]protocol.Diagnostic),
	}
}

// Start connects to the server and performs the initialize handshake.
func (c *LanguageClient) Start(ctx context.Context) error {
	rwc, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.conn = lsp.NewConn(rwc, lsp.HandlerFunc(c.handle), lsp.WithLogger(c.logger))
	c.cancel = cancel
	c.done = make(chan error, 1)
	go func() {
		c.done <- c.conn.Run(runCtx)
	}()

	params := protocol.InitializeParams{
		ProcessID:  int32(os.Getpid()),
		ClientInfo: &protocol.ClientInfo{Name: DisplayName},
		Capabilities: protocol.ClientCapabilities{
			Workspace: &protocol.WorkspaceClientCapabilities{
				Configuration:    true,
				WorkspaceFolders: true,
			},
			TextDocument: &protocol.TextDocumentClientCapabilities{
				PublishDiagnostics: &protocol.PublishDiagnosticsClientCapabilities{
					RelatedInformation: true,
				},
			},
		},
	}
	if c.folder != nil {
		params.RootURI = c.folder.URI
		params.WorkspaceFolders = []protocol.WorkspaceFolder{{
			URI:  string(c.folder.URI),
			Name: c.folder.Name,
		}}
	}

	var result protocol.InitializeResult
	if err := c.conn.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		c.abort()
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.conn.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}); err != nil {
		c.abort()
		return fmt.Errorf("initialized: %w", err)
	}

	if info := result.ServerInfo; info != nil {
		c.logger.Info("connected to server", zap.String("name", info.Name), zap.String("version", info.Version))
	}
	return nil
}

// Stop shuts the server down and closes the transport.
func (c *LanguageClient) Stop(ctx context.Context) error {
	if c.conn == nil || c.stopped {
		return nil
	}
	c.stopped = true

	var errs []error
	if err := c.conn.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if err := c.conn.Notify(ctx, protocol.MethodExit, nil); err != nil {
		errs = append(errs, fmt.Errorf("exit: %w", err))
	}
	if err := c.abort(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// abort closes the transport and waits for the read loop to finish.
func (c *LanguageClient) abort() error {
	err := c.conn.Close()
	<-c.done
	c.cancel()
	return err
}

// Open sends doc with text to the server and waits for the first set of
// diagnostics published for it.
func (c *LanguageClient) Open(ctx context.Context, doc TextDocument, text string) ([]protocol.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan []protocol.Diagnostic, 1)
	c.mu.Lock()
	c.waiters[doc.URI] = append(c.waiters[doc.URI], ch)
	c.mu.Unlock()

	err := c.conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        doc.URI,
			LanguageID: protocol.LanguageIdentifier(doc.LanguageID),
			Version:    1,
			Text:       text,
		},
	})
	if err != nil {
		c.dropWaiter(doc.URI, ch)
		return nil, fmt.Errorf("opening %s: %w", doc.URI, err)
	}

	select {
	case diags := <-ch:
		return diags, nil
	case <-ctx.Done():
		c.dropWaiter(doc.URI, ch)
		return nil, ctx.Err()
	}
}

// Close tells the server doc is no longer open.
func (c *LanguageClient) Close(ctx context.Context, doc TextDocument) error {
	return c.conn.Notify(ctx, protocol.MethodTextDocumentDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI},
	})
}

// Diagnostics returns the most recent diagnostics published for u.
func (c *LanguageClient) Diagnostics(u uri.URI) ([]protocol.Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	diags, ok := c.latest[u]
	return diags, ok
}

func (c *LanguageClient) dropWaiter(u protocol.DocumentURI, ch chan []protocol.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.waiters[u]
	for i, w := range waiters {
		if w == ch {
			c.waiters[u] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.waiters[u]) == 0 {
		delete(c.waiters, u)
	}
}

// handle serves requests and notifications from the server.
func (c *LanguageClient) handle(ctx context.Context, req *lsp.Request) (any, error) {
	switch req.Method {
	case protocol.MethodWorkspaceConfiguration:
		var p protocol.ConfigurationParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &lsp.ResponseError{Code: lsp.CodeInvalidParams, Message: err.Error()}
		}
		result := make([]any, len(p.Items))
		for i, item := range p.Items {
			if item.Section == lsp.SettingsSection {
				result[i] = c.settings
			}
		}
		return result, nil

	case protocol.MethodClientRegisterCapability, protocol.MethodClientUnregisterCapability:
		return nil, nil

	case protocol.MethodWindowLogMessage, protocol.MethodWindowShowMessage:
		var p protocol.LogMessageParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		c.logger.Info(p.Message, zap.Stringer("type", p.Type))
		return nil, nil

	case protocol.MethodTextDocumentPublishDiagnostics:
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		c.publish(p.URI, p.Diagnostics)
		return nil, nil

	default:
		return nil, lsp.ErrMethodNotFound
	}
}

func (c *LanguageClient) publish(u protocol.DocumentURI, diags []protocol.Diagnostic) {
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	c.mu.Lock()
	c.latest[u] = diags
	waiters := c.waiters[u]
	delete(c.waiters, u)
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- diags
	}
}

// ProcessClientFactory starts one server process per client and talks to
// it over stdin and stdout.
type ProcessClientFactory struct {
	// Command is the server executable, found through PATH when not a path.
	Command string
	Args    []string

	Settings lsp.Settings
	Logger   *zap.Logger

	// Stderr receives the server's standard error. Nil discards it.
	Stderr io.Writer
}

// NewClient implements ClientFactory.
func (f *ProcessClientFactory) NewClient(ctx context.Context, folder *WorkspaceFolder) (Client, error) {
	return f.NewLanguageClient(folder), nil
}

// NewLanguageClient returns a client whose server is a fresh process.
func (f *ProcessClientFactory) NewLanguageClient(folder *WorkspaceFolder) *LanguageClient {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if folder != nil {
		logger = logger.With(zap.String("folder", string(folder.URI)))
	}
	return NewLanguageClient(folder, f.dial, f.Settings, logger)
}

func (f *ProcessClientFactory) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	// The process outlives ctx; it ends when the stream is closed.
	cmd := exec.Command(f.Command, f.Args...)
	cmd.Stderr = f.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", f.Command, err)
	}
	return &processStream{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// processStream joins a child process's stdio into one stream.
type processStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

func (p *processStream) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *processStream) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close closes the process's stdin and waits for it to exit.
func (p *processStream) Close() error {
	p.once.Do(func() {
		p.stdin.Close()
		p.err = p.cmd.Wait()
	})
	return p.err
}
