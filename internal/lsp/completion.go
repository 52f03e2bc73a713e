package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/scratchlang/scl/internal/catalog"
)

// completionItems is the static candidate list. Every keyword and function
// appears once under its identifier; every function appears a second time
// under its filtered Chinese gloss, inserting the identifier.
var completionItems = sync.OnceValue(func() []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(catalog.Keywords)+2*len(catalog.Functions))

	for i := range catalog.Keywords {
		k := &catalog.Keywords[i]
		items = append(items, protocol.CompletionItem{
			Label: k.Name,
			Kind:  protocol.CompletionItemKindKeyword,
			Data:  catalog.PayloadFor(catalog.KeywordRef{Entry: k}),
		})
	}
	for i := range catalog.Functions {
		f := &catalog.Functions[i]
		items = append(items, protocol.CompletionItem{
			Label: f.Name,
			Kind:  protocol.CompletionItemKindFunction,
			Data:  catalog.PayloadFor(catalog.FunctionRef{Entry: f}),
		})
	}
	for i := range catalog.Functions {
		f := &catalog.Functions[i]
		items = append(items, protocol.CompletionItem{
			Label:      catalog.FilterLabel(f.Gloss),
			Kind:       protocol.CompletionItemKindFunction,
			InsertText: f.Name,
			Data:       catalog.PayloadFor(catalog.FunctionRef{Entry: f}),
		})
	}
	return items
})

// CompletionItems returns a copy of the full candidate list.
func CompletionItems() []protocol.CompletionItem {
	items := completionItems()
	return append([]protocol.CompletionItem(nil), items...)
}

// handleCompletion returns every candidate. The cursor position is not
// consulted; clients filter by prefix.
func (s *Server) handleCompletion(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.CompletionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
	}

	items := CompletionItems()
	s.logger.Debug("completion",
		zap.String("uri", string(p.TextDocument.URI)),
		zap.Int("items", len(items)))

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

// handleCompletionResolve attaches detail and markdown documentation to an
// item produced by handleCompletion.
func (s *Server) handleCompletionResolve(ctx context.Context, params json.RawMessage) (any, error) {
	var item protocol.CompletionItem
	if err := json.Unmarshal(params, &item); err != nil {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return ResolveCompletion(item)
}

// ResolveCompletion fills in Detail and Documentation for item from the
// catalog entry named by its data payload.
func ResolveCompletion(item protocol.CompletionItem) (*protocol.CompletionItem, error) {
	ref, err := catalog.DecodePayload(item.Data)
	if err != nil {
		return nil, &ResponseError{
			Code:    CodeInvalidParams,
			Message: fmt.Sprintf("resolving %q: %v", item.Label, err),
		}
	}

	item.Detail = catalog.Detail
	item.Documentation = protocol.MarkupContent{
		Kind:  protocol.Markdown,
		Value: catalog.Render(ref),
	}
	return &item, nil
}
