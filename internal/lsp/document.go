package lsp

import (
	"fmt"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// Document represents an open text document.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID string
	Version    int32
	Content    string
}

// contentChange mirrors protocol.TextDocumentContentChangeEvent with an
// optional range, so a whole-document replacement can be told apart from an
// insertion at the start of the file.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                          `json:"contentChanges"`
}

// apply applies content changes in order. Ranged changes are incremental
// edits; a change without a range replaces the whole text.
func (d *Document) apply(changes []contentChange) error {
	for i, ch := range changes {
		if ch.Range == nil {
			d.Content = ch.Text
			continue
		}
		idx := newLineIndex(d.Content)
		start := idx.offset(ch.Range.Start)
		end := idx.offset(ch.Range.End)
		if end < start {
			return fmt.Errorf("change %d: range end %v before start %v", i, ch.Range.End, ch.Range.Start)
		}
		d.Content = d.Content[:start] + ch.Text + d.Content[end:]
	}
	return nil
}

// lineIndex converts between byte offsets and LSP positions. Characters are
// counted in UTF-16 code units; "\n", "\r\n" and "\r" all end a line.
type lineIndex struct {
	text  string
	lines []int // byte offset of each line start
}

func newLineIndex(text string) *lineIndex {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			lines = append(lines, i+1)
		case '\n':
			lines = append(lines, i+1)
		}
	}
	return &lineIndex{text: text, lines: lines}
}

// position returns the position of the byte at offset.
func (x *lineIndex) position(offset int) protocol.Position {
	offset = max(0, min(offset, len(x.text)))

	// Binary search for the last line starting at or before offset.
	lo, hi := 0, len(x.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if x.lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	var units uint32
	for _, r := range x.text[x.lines[lo]:offset] {
		units += uint32(utf16Len(r))
	}
	return protocol.Position{Line: uint32(lo), Character: units}
}

// offset returns the byte offset of pos, clamped to the line and the text.
func (x *lineIndex) offset(pos protocol.Position) int {
	if int(pos.Line) >= len(x.lines) {
		return len(x.text)
	}
	start := x.lines[pos.Line]
	end := len(x.text)
	if int(pos.Line)+1 < len(x.lines) {
		end = x.lines[pos.Line+1]
	}
	// Exclude the line break.
	for end > start && (x.text[end-1] == '\n' || x.text[end-1] == '\r') {
		end--
	}

	var units uint32
	i := start
	for i < end && units < pos.Character {
		r, size := utf8.DecodeRuneInString(x.text[i:end])
		units += uint32(utf16Len(r))
		i += size
	}
	return i
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
