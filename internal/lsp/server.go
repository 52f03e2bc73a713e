package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// ServerName is reported to clients in the initialize result.
const ServerName = "scl-ls"

// ClientConn is the part of the connection the server uses to talk back to
// the client. *Conn implements it.
type ClientConn interface {
	Notify(ctx context.Context, method string, params any) error
	Call(ctx context.Context, method string, params, result any) error
}

// clientCaps records what the client announced in initialize.
type clientCaps struct {
	configuration      bool
	workspaceFolders   bool
	relatedInformation bool
}

// Server handles LSP requests for Scratch Language files.
type Server struct {
	conn    ClientConn
	logger  *zap.Logger
	version string

	// State
	mu          sync.RWMutex
	initialized bool
	shutdown    bool
	exited      bool
	documents   map[protocol.DocumentURI]*Document
	caps        clientCaps

	defaults Settings
	settings *SettingsResolver

	// Callbacks
	onExit func()
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaultSettings replaces the built-in global settings, e.g. with the
// values from a discovered config file.
func WithDefaultSettings(settings Settings) ServerOption {
	return func(s *Server) {
		s.defaults = settings
	}
}

// WithVersion sets the version reported in the initialize result.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a new LSP server. onExit is called when the client
// sends exit.
func NewServer(onExit func(), opts ...ServerOption) *Server {
	s := &Server{
		logger:    zap.NewNop(),
		version:   "dev",
		documents: make(map[protocol.DocumentURI]*Document),
		defaults:  DefaultSettings(),
		onExit:    onExit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.settings = NewSettingsResolver(s.fetchSettings)
	s.settings.SetGlobal(s.defaults)
	return s
}

// SetConn sets the connection for notifications and server-initiated requests.
func (s *Server) SetConn(conn ClientConn) {
	s.conn = conn
}

// ExitCode is the process status the client asked for: 1 when exit arrived
// without a prior shutdown, 0 otherwise.
func (s *Server) ExitCode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exited && !s.shutdown {
		return 1
	}
	return 0
}

// Settings returns the server's settings resolver.
func (s *Server) Settings() *SettingsResolver {
	return s.settings
}

// Document returns a snapshot of the open document at uri.
func (s *Server) Document(uri protocol.DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[uri]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Handle implements Handler interface - routes requests to methods.
func (s *Server) Handle(ctx context.Context, req *Request) (any, error) {
	s.mu.RLock()
	shutdown := s.shutdown
	initialized := s.initialized
	s.mu.RUnlock()

	// Check shutdown state - only allow exit after shutdown
	if shutdown && req.Method != protocol.MethodExit {
		return nil, &ResponseError{
			Code:    CodeInvalidRequest,
			Message: "server is shutting down",
		}
	}

	// Check initialization - only lifecycle methods allowed before initialize
	if !initialized {
		switch req.Method {
		case protocol.MethodInitialize, protocol.MethodInitialized, protocol.MethodShutdown, protocol.MethodExit:
		default:
			return nil, &ResponseError{
				Code:    CodeInvalidRequest,
				Message: "server not initialized",
			}
		}
	}

	switch req.Method {
	// Lifecycle
	case protocol.MethodInitialize:
		return s.handleInitialize(ctx, req.Params)
	case protocol.MethodInitialized:
		return s.handleInitialized(ctx, req.Params)
	case protocol.MethodShutdown:
		return s.handleShutdown(ctx)
	case protocol.MethodExit:
		return s.handleExit(ctx)

	// Text document sync
	case protocol.MethodTextDocumentDidOpen:
		return s.handleDidOpen(ctx, req.Params)
	case protocol.MethodTextDocumentDidChange:
		return s.handleDidChange(ctx, req.Params)
	case protocol.MethodTextDocumentDidClose:
		return s.handleDidClose(ctx, req.Params)
	case protocol.MethodTextDocumentDidSave:
		return s.handleDidSave(ctx, req.Params)

	// Language features
	case protocol.MethodTextDocumentCompletion:
		return s.handleCompletion(ctx, req.Params)
	case protocol.MethodCompletionItemResolve:
		return s.handleCompletionResolve(ctx, req.Params)

	// Workspace
	case protocol.MethodWorkspaceDidChangeConfiguration:
		return s.handleDidChangeConfiguration(ctx, req.Params)
	case protocol.MethodWorkspaceDidChangeWatchedFiles:
		return s.handleDidChangeWatchedFiles(ctx, req.Params)
	case protocol.MethodWorkspaceDidChangeWorkspaceFolders:
		return s.handleDidChangeWorkspaceFolders(ctx, req.Params)

	case protocol.MethodCancelRequest, protocol.MethodSetTrace:
		// Requests run to completion; nothing to cancel or trace.
		return nil, nil

	default:
		s.logger.Debug("unhandled method", zap.String("method", req.Method))
		return nil, ErrMethodNotFound
	}
}

// --- Lifecycle methods ---

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing initialize params: %w", err)
	}

	var caps clientCaps
	if ws := p.Capabilities.Workspace; ws != nil {
		caps.configuration = ws.Configuration
		caps.workspaceFolders = ws.WorkspaceFolders
	}
	if td := p.Capabilities.TextDocument; td != nil && td.PublishDiagnostics != nil {
		caps.relatedInformation = td.PublishDiagnostics.RelatedInformation
	}

	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
	s.settings.SetScoped(caps.configuration)

	s.logger.Info("initialize",
		zap.Int32("pid", p.ProcessID),
		zap.String("root", string(p.RootURI)),
		zap.Int("folders", len(p.WorkspaceFolders)),
		zap.Bool("configuration", caps.configuration),
		zap.Bool("workspaceFolders", caps.workspaceFolders),
		zap.Bool("relatedInformation", caps.relatedInformation))

	result := &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: true,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    ServerName,
			Version: s.version,
		},
	}
	if caps.workspaceFolders {
		result.Capabilities.Workspace = &protocol.ServerCapabilitiesWorkspace{
			WorkspaceFolders: &protocol.ServerCapabilitiesWorkspaceFolders{
				Supported: true,
			},
		}
	}
	return result, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.Lock()
	s.initialized = true
	caps := s.caps
	s.mu.Unlock()

	s.logger.Info("initialized")

	if caps.configuration && s.conn != nil {
		err := s.conn.Call(ctx, protocol.MethodClientRegisterCapability, protocol.RegistrationParams{
			Registrations: []protocol.Registration{{
				ID:     protocol.MethodWorkspaceDidChangeConfiguration,
				Method: protocol.MethodWorkspaceDidChangeConfiguration,
			}},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("registering for configuration changes: %w", err)
		}
	}
	return nil, nil
}

func (s *Server) handleShutdown(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.logger.Info("shutdown")
	return nil, nil
}

func (s *Server) handleExit(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()

	s.logger.Info("exit")
	if s.onExit != nil {
		s.onExit()
	}
	return nil, nil
}

// --- Text document sync ---

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	doc := &Document{
		URI:        p.TextDocument.URI,
		LanguageID: string(p.TextDocument.LanguageID),
		Version:    p.TextDocument.Version,
		Content:    p.TextDocument.Text,
	}
	s.mu.Lock()
	s.documents[doc.URI] = doc
	snapshot := *doc
	s.mu.Unlock()

	s.logger.Debug("didOpen", zap.String("uri", string(doc.URI)), zap.Int32("version", doc.Version))

	return nil, s.validate(ctx, snapshot)
}

func (s *Server) handleDidChange(ctx context.Context, params json.RawMessage) (any, error) {
	var p didChangeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc, ok := s.documents[p.TextDocument.URI]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("didChange for unknown document", zap.String("uri", string(p.TextDocument.URI)))
		return nil, nil
	}
	if err := doc.apply(p.ContentChanges); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("applying changes to %s: %w", p.TextDocument.URI, err)
	}
	doc.Version = p.TextDocument.Version
	snapshot := *doc
	s.mu.Unlock()

	s.logger.Debug("didChange", zap.String("uri", string(snapshot.URI)), zap.Int32("version", snapshot.Version))

	return nil, s.validate(ctx, snapshot)
}

func (s *Server) handleDidClose(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.documents, p.TextDocument.URI)
	s.mu.Unlock()
	s.settings.Forget(p.TextDocument.URI)

	s.logger.Debug("didClose", zap.String("uri", string(p.TextDocument.URI)))

	// Clear diagnostics for closed document
	s.publishDiagnostics(ctx, p.TextDocument.URI, []protocol.Diagnostic{})
	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	// Content is already current through didChange.
	s.logger.Debug("didSave", zap.String("uri", string(p.TextDocument.URI)))
	return nil, nil
}

// --- Workspace ---

// configurationChange is the payload of workspace/didChangeConfiguration.
// Only the server's own section is read.
type configurationChange struct {
	Settings struct {
		SCL json.RawMessage `json:"scl"`
	} `json:"settings"`
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, params json.RawMessage) (any, error) {
	var p configurationChange
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	if s.settings.Scoped() {
		s.settings.Reset()
	} else {
		settings, err := decodeSettings(p.Settings.SCL, s.defaults)
		if err != nil {
			return nil, err
		}
		s.settings.SetGlobal(settings)
	}

	s.logger.Debug("didChangeConfiguration", zap.Bool("scoped", s.settings.Scoped()))

	// Revalidate all open documents
	s.mu.RLock()
	docs := make([]Document, 0, len(s.documents))
	for _, uri := range slices.Sorted(maps.Keys(s.documents)) {
		docs = append(docs, *s.documents[uri])
	}
	s.mu.RUnlock()

	var errs []error
	for _, doc := range docs {
		errs = append(errs, s.validate(ctx, doc))
	}
	return nil, errors.Join(errs...)
}

func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	for _, ch := range p.Changes {
		s.logMessage(ctx, protocol.MessageTypeLog, fmt.Sprintf("File change event received: %s %s", ch.Type, ch.URI))
	}
	return nil, nil
}

func (s *Server) handleDidChangeWorkspaceFolders(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidChangeWorkspaceFoldersParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.logMessage(ctx, protocol.MessageTypeLog, fmt.Sprintf("Workspace folder change event received: %d added, %d removed",
		len(p.Event.Added), len(p.Event.Removed)))
	return nil, nil
}

// --- Client requests ---

// fetchSettings asks the client for the server's configuration section
// scoped to uri.
func (s *Server) fetchSettings(ctx context.Context, uri protocol.DocumentURI) (Settings, error) {
	if s.conn == nil {
		return Settings{}, errors.New("fetching settings: no client connection")
	}

	var sections []json.RawMessage
	err := s.conn.Call(ctx, protocol.MethodWorkspaceConfiguration, protocol.ConfigurationParams{
		Items: []protocol.ConfigurationItem{{
			ScopeURI: uri,
			Section:  SettingsSection,
		}},
	}, &sections)
	if err != nil {
		return Settings{}, fmt.Errorf("fetching settings for %s: %w", uri, err)
	}
	if len(sections) == 0 {
		return s.defaults, nil
	}
	return decodeSettings(sections[0], s.defaults)
}

// logMessage writes msg to the client's console.
func (s *Server) logMessage(ctx context.Context, typ protocol.MessageType, msg string) {
	s.logger.Info(msg)
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(ctx, protocol.MethodWindowLogMessage, protocol.LogMessageParams{
		Type:    typ,
		Message: msg,
	}); err != nil {
		s.logger.Warn("failed to send log message", zap.Error(err))
	}
}
