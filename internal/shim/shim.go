// Package shim connects an editor host to Scratch Language servers.
//
// An Extension routes opened documents to one language client per
// outermost workspace folder, with a shared fallback client for untitled
// buffers, and implements the run command that hands the active document
// to the external compiler.
package shim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// LanguageID is the editor language identifier of Scratch Language documents.
const LanguageID = "scl"

// UntitledScheme is the scheme of unsaved editor buffers.
const UntitledScheme = "untitled"

// DisplayName names clients, terminals and output channels.
const DisplayName = "Scratch Language"

// TextDocument is a document as the host reports it.
type TextDocument struct {
	URI        uri.URI
	LanguageID string
}

// WorkspaceFolder is a root folder open in the host.
type WorkspaceFolder struct {
	URI  uri.URI
	Name string
}

// Workspace reports the host's current workspace folders.
type Workspace interface {
	Folders() []WorkspaceFolder
}

// StaticWorkspace is a fixed set of folders.
type StaticWorkspace []WorkspaceFolder

// Folders implements Workspace.
func (w StaticWorkspace) Folders() []WorkspaceFolder { return w }

// Client is a language client bound to one server.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ClientFactory creates clients. folder is nil for the fallback client
// serving untitled documents.
type ClientFactory interface {
	NewClient(ctx context.Context, folder *WorkspaceFolder) (Client, error)
}

// ClientFactoryFunc is an adapter to use functions as ClientFactory.
type ClientFactoryFunc func(ctx context.Context, folder *WorkspaceFolder) (Client, error)

// NewClient implements ClientFactory.
func (f ClientFactoryFunc) NewClient(ctx context.Context, folder *WorkspaceFolder) (Client, error) {
	return f(ctx, folder)
}

// Host bundles the editor services an Extension depends on.
type Host struct {
	Workspace Workspace
	Clients   ClientFactory
	Window    Window
	Terminals TerminalFactory

	// Settings returns the current run settings. It is consulted on every run.
	Settings func() RunSettings
}

// Extension routes documents to language clients and runs the compiler.
type Extension struct {
	host   Host
	logger *zap.Logger

	mu            sync.Mutex
	sorted        []string // normalized folder URIs, shortest first; nil when stale
	defaultClient Client
	clients       map[string]Client
	terminal      Terminal
}

// NewExtension creates an Extension for host. A nil logger discards logs.
func NewExtension(host Host, logger *zap.Logger) *Extension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extension{
		host:    host,
		logger:  logger,
		clients: make(map[string]Client),
	}
}

// DidOpenTextDocument routes doc to its client, creating and starting the
// client on first use, and returns it. Documents that are not Scratch
// Language, use another scheme, or lie outside every workspace folder are
// ignored and yield a nil client.
func (e *Extension) DidOpenTextDocument(ctx context.Context, doc TextDocument) (Client, error) {
	if doc.LanguageID != LanguageID {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch scheme(doc.URI) {
	case UntitledScheme:
		if e.defaultClient == nil {
			client, err := e.startClient(ctx, nil)
			if err != nil {
				return nil, err
			}
			e.defaultClient = client
		}
		return e.defaultClient, nil
	case uri.FileScheme:
	default:
		return nil, nil
	}

	folder, ok := e.folderFor(doc.URI)
	if !ok {
		e.logger.Debug("document outside workspace folders", zap.String("uri", string(doc.URI)))
		return nil, nil
	}
	folder = e.outermost(folder)

	key := string(folder.URI)
	if client, ok := e.clients[key]; ok {
		return client, nil
	}
	client, err := e.startClient(ctx, &folder)
	if err != nil {
		return nil, err
	}
	e.clients[key] = client
	return client, nil
}

func (e *Extension) startClient(ctx context.Context, folder *WorkspaceFolder) (Client, error) {
	name := "untitled"
	if folder != nil {
		name = string(folder.URI)
	}

	client, err := e.host.Clients.NewClient(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", name, err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting client for %s: %w", name, err)
	}

	e.logger.Info("started language client", zap.String("folder", name))
	return client, nil
}

// DidChangeWorkspaceFolders forgets the cached folder order and stops the
// clients of removed folders. Stop errors are joined; every removed client
// is forgotten regardless.
func (e *Extension) DidChangeWorkspaceFolders(ctx context.Context, added, removed []WorkspaceFolder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sorted = nil

	var errs []error
	for _, folder := range removed {
		key := string(folder.URI)
		client, ok := e.clients[key]
		if !ok {
			continue
		}
		delete(e.clients, key)
		if err := client.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping client for %s: %w", key, err))
		}
	}

	e.logger.Debug("workspace folders changed", zap.Int("added", len(added)), zap.Int("removed", len(removed)))
	return errors.Join(errs...)
}

// Deactivate stops every client.
func (e *Extension) Deactivate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.defaultClient != nil {
		if err := e.defaultClient.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping untitled client: %w", err))
		}
		e.defaultClient = nil
	}
	for key, client := range e.clients {
		if err := client.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping client for %s: %w", key, err))
		}
	}
	clear(e.clients)
	return errors.Join(errs...)
}

// Clients returns the number of running clients, the untitled one included.
func (e *Extension) Clients() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.clients)
	if e.defaultClient != nil {
		n++
	}
	return n
}
