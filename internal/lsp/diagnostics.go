package lsp

import (
	"context"
	"fmt"
	"regexp"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// DiagnosticSource tags every diagnostic the server publishes.
const DiagnosticSource = "scl"

var uppercaseWord = regexp.MustCompile(`\b[A-Z]{2,}\b`)

// Diagnose reports every all-uppercase word of two or more ASCII letters in
// text. When relatedInfo is set, each diagnostic carries two advisory notes
// pointing at the same range. The result is never nil.
func Diagnose(uri protocol.DocumentURI, text string, relatedInfo bool) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	matches := uppercaseWord.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return diagnostics
	}

	idx := newLineIndex(text)
	for _, m := range matches {
		rng := protocol.Range{
			Start: idx.position(m[0]),
			End:   idx.position(m[1]),
		}
		d := protocol.Diagnostic{
			Range:    rng,
			Severity: protocol.DiagnosticSeverityWarning,
			Source:   DiagnosticSource,
			Message:  fmt.Sprintf("%s is all uppercase.", text[m[0]:m[1]]),
		}
		if relatedInfo {
			d.RelatedInformation = []protocol.DiagnosticRelatedInformation{
				{
					Location: protocol.Location{URI: uri, Range: rng},
					Message:  "Spelling matters",
				},
				{
					Location: protocol.Location{URI: uri, Range: rng},
					Message:  "Particularly for names",
				},
			}
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics
}

// validate runs the diagnostics pass over doc and publishes the result,
// replacing whatever was published for the document before. A failed
// settings lookup aborts the pass and is returned.
func (s *Server) validate(ctx context.Context, doc Document) error {
	settings, err := s.settings.Get(ctx, doc.URI)
	if err != nil {
		return fmt.Errorf("validating %s: %w", doc.URI, err)
	}

	s.mu.RLock()
	relatedInfo := s.caps.relatedInformation
	s.mu.RUnlock()

	diagnostics := Diagnose(doc.URI, doc.Content, relatedInfo)
	if len(diagnostics) > settings.MaxNumberOfProblems {
		s.logger.Debug("problem count above maxNumberOfProblems",
			zap.String("uri", string(doc.URI)),
			zap.Int("problems", len(diagnostics)),
			zap.Int("max", settings.MaxNumberOfProblems))
	}

	s.publishDiagnostics(ctx, doc.URI, diagnostics)
	return nil
}

// publishDiagnostics sends the full diagnostic set for uri to the client.
func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, diagnostics []protocol.Diagnostic) {
	// Guard against nil connection (e.g., in tests)
	if s.conn == nil {
		return
	}

	if err := s.conn.Notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		s.logger.Warn("failed to publish diagnostics", zap.String("uri", string(uri)), zap.Error(err))
		return
	}

	s.logger.Debug("published diagnostics", zap.String("uri", string(uri)), zap.Int("count", len(diagnostics)))
}
