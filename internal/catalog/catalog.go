// Package catalog holds the static keyword and builtin function tables for
// Scratch Language, and renders their completion documentation.
//
// The tables are built once at package initialization and never mutated.
// Completion items refer back to an entry through a [Ref], which survives a
// round trip through the client as a small JSON payload.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Detail is the fixed detail string attached to resolved completion items.
const Detail = "Scratch Language"

// Keyword describes a language keyword.
type Keyword struct {
	// Name is the keyword as written in source.
	Name string

	// Description is a short explanation of the keyword.
	Description string

	// Gloss is the block's label in the localized Scratch editor, if any.
	Gloss string

	// Example is a source snippet using the keyword, if any.
	Example string
}

// Extension names a Scratch extension a builtin block belongs to.
type Extension string

// Known extensions.
const (
	ExtensionMusic        Extension = "music"
	ExtensionPen          Extension = "pen"
	ExtensionVideoSensing Extension = "videoSensing"
	ExtensionText2Speech  Extension = "text2speech"
	ExtensionTranslate    Extension = "translate"
)

// Valid reports whether e is one of the known extensions.
func (e Extension) Valid() bool {
	switch e {
	case ExtensionMusic, ExtensionPen, ExtensionVideoSensing, ExtensionText2Speech, ExtensionTranslate:
		return true
	}
	return false
}

// Function describes a builtin function, which compiles to a single block.
type Function struct {
	// Name is the block opcode, in category_name form.
	Name string

	// Gloss is the block's label in the localized Scratch editor.
	// Parameters appear as (NAME), [NAME] or <NAME> placeholders.
	Gloss string

	// Params lists the call arguments in order.
	Params []string

	// Extensions lists the extensions the block belongs to.
	Extensions []Extension
}

// Category returns the part of the name before the first underscore.
func (f *Function) Category() string {
	category, _, ok := strings.Cut(f.Name, "_")
	if !ok {
		return ""
	}
	return category
}

// RefKind discriminates the cases of a Ref.
type RefKind string

const (
	KindKeyword  RefKind = "keyword"
	KindFunction RefKind = "function"
)

// Ref points at exactly one catalog entry. It is either a KeywordRef or a
// FunctionRef.
type Ref interface {
	Kind() RefKind
	Name() string
	isRef()
}

// KeywordRef refers to a keyword entry.
type KeywordRef struct{ Entry *Keyword }

func (KeywordRef) Kind() RefKind { return KindKeyword }
func (r KeywordRef) Name() string { return r.Entry.Name }
func (KeywordRef) isRef() {}

// FunctionRef refers to a builtin function entry.
type FunctionRef struct{ Entry *Function }

func (FunctionRef) Kind() RefKind { return KindFunction }
func (r FunctionRef) Name() string { return r.Entry.Name }
func (FunctionRef) isRef() {}

// ErrUnknownEntry is returned when a payload names no catalog entry.
var ErrUnknownEntry = errors.New("unknown catalog entry")

// Payload is the wire form of a Ref, carried in CompletionItem.data.
type Payload struct {
	Kind RefKind `json:"kind"`
	Name string  `json:"name"`
}

// PayloadFor returns the wire form of r.
func PayloadFor(r Ref) Payload {
	return Payload{Kind: r.Kind(), Name: r.Name()}
}

// Resolve maps a payload back to its catalog entry.
func (p Payload) Resolve() (Ref, error) {
	switch p.Kind {
	case KindKeyword:
		if k := LookupKeyword(p.Name); k != nil {
			return KeywordRef{Entry: k}, nil
		}
	case KindFunction:
		if f := LookupFunction(p.Name); f != nil {
			return FunctionRef{Entry: f}, nil
		}
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownEntry, p.Kind)
	}
	return nil, fmt.Errorf("%w: %s %q", ErrUnknownEntry, p.Kind, p.Name)
}

// DecodePayload decodes raw completion item data into a Ref.
// data is whatever the client echoed back, typically a map from a generic
// JSON decode.
func DecodePayload(data any) (Ref, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrUnknownEntry)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return p.Resolve()
}

var (
	keywordIndex  = index(Keywords, func(k *Keyword) string { return k.Name })
	functionIndex = index(Functions, func(f *Function) string { return f.Name })
)

func index[T any](entries []T, name func(*T) string) map[string]*T {
	m := make(map[string]*T, len(entries))
	for i := range entries {
		e := &entries[i]
		if _, dup := m[name(e)]; !dup {
			m[name(e)] = e
		}
	}
	return m
}

// LookupKeyword returns the keyword with the given name, or nil.
func LookupKeyword(name string) *Keyword {
	return keywordIndex[name]
}

// LookupFunction returns the builtin function with the given name, or nil.
func LookupFunction(name string) *Function {
	return functionIndex[name]
}

// Validate checks the catalog invariants: identifiers are unique within each
// table and every extension tag is known.
func Validate() error {
	var errs []error
	seen := make(map[string]bool, len(Keywords))
	for _, k := range Keywords {
		if seen[k.Name] {
			errs = append(errs, fmt.Errorf("duplicate keyword %q", k.Name))
		}
		seen[k.Name] = true
	}
	seen = make(map[string]bool, len(Functions))
	for _, f := range Functions {
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate function %q", f.Name))
		}
		seen[f.Name] = true
		if f.Category() == "" {
			errs = append(errs, fmt.Errorf("function %q: name is not category_name", f.Name))
		}
		for _, ext := range f.Extensions {
			if !ext.Valid() {
				errs = append(errs, fmt.Errorf("function %q: unknown extension %q", f.Name, ext))
			}
		}
	}
	return errors.Join(errs...)
}
