package lsp

import (
	"testing"

	"go.lsp.dev/protocol"
)

func TestLineIndexPosition(t *testing.T) {
	text := "ab\r\ncd\ne😀f\rg"
	idx := newLineIndex(text)

	tests := []struct {
		offset int
		want   protocol.Position
	}{
		{0, pos(0, 0)},
		{2, pos(0, 2)},
		{4, pos(1, 0)},  // after \r\n
		{7, pos(2, 0)},  // after \n
		{8, pos(2, 1)},  // before the emoji
		{12, pos(2, 3)}, // the emoji counts twice
		{14, pos(3, 0)}, // after \r
		{15, pos(3, 1)},
		{99, pos(3, 1)}, // clamped
	}
	for _, tt := range tests {
		if got := idx.position(tt.offset); got != tt.want {
			t.Errorf("position(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestLineIndexOffset(t *testing.T) {
	text := "ab\r\ncd\ne😀f"
	idx := newLineIndex(text)

	tests := []struct {
		pos  protocol.Position
		want int
	}{
		{pos(0, 0), 0},
		{pos(0, 2), 2},
		{pos(0, 10), 2}, // clamped to the line, before \r\n
		{pos(1, 1), 5},
		{pos(2, 1), 8},
		{pos(2, 3), 12},
		{pos(9, 0), len(text)},
	}
	for _, tt := range tests {
		if got := idx.offset(tt.pos); got != tt.want {
			t.Errorf("offset(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestDocumentApply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		changes []contentChange
		want    string
	}{
		{
			name:    "insert",
			content: "if x",
			changes: []contentChange{{Range: &protocol.Range{Start: pos(0, 3), End: pos(0, 3)}, Text: "(a) "}},
			want:    "if (a) x",
		},
		{
			name:    "replace across lines",
			content: "one\ntwo\nthree",
			changes: []contentChange{{Range: &protocol.Range{Start: pos(0, 1), End: pos(2, 2)}, Text: "-"}},
			want:    "o-ree",
		},
		{
			name:    "insert at start is not a replacement",
			content: "abc",
			changes: []contentChange{{Range: &protocol.Range{}, Text: "x"}},
			want:    "xabc",
		},
		{
			name:    "full then incremental",
			content: "old",
			changes: []contentChange{
				{Text: "new text"},
				{Range: &protocol.Range{Start: pos(0, 0), End: pos(0, 3)}, Text: "NEW"},
			},
			want: "NEW text",
		},
		{
			name:    "utf-16 columns",
			content: "😀x",
			changes: []contentChange{{Range: &protocol.Range{Start: pos(0, 2), End: pos(0, 3)}, Text: "y"}},
			want:    "😀y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Content: tt.content}
			if err := doc.apply(tt.changes); err != nil {
				t.Fatalf("apply failed: %v", err)
			}
			if doc.Content != tt.want {
				t.Errorf("Content = %q, want %q", doc.Content, tt.want)
			}
		})
	}
}

func TestDocumentApplyReversedRange(t *testing.T) {
	doc := &Document{Content: "abcdef"}
	err := doc.apply([]contentChange{{Range: &protocol.Range{Start: pos(0, 4), End: pos(0, 1)}, Text: ""}})
	if err == nil {
		t.Fatal("expected error for reversed range")
	}
	if doc.Content != "abcdef" {
		t.Errorf("Content = %q, want unchanged", doc.Content)
	}
}
