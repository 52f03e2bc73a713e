package shim

import (
	"cmp"
	"slices"
	"strings"

	"go.lsp.dev/uri"
)

// scheme returns the scheme of u, or "" if it has none.
func scheme(u uri.URI) string {
	s, _, ok := strings.Cut(string(u), ":")
	if !ok {
		return ""
	}
	return s
}

// normalize appends the trailing slash folder URIs are compared with, so
// file:///a does not prefix file:///ab.
func normalize(u uri.URI) string {
	s := string(u)
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}

// sortedFolders returns the normalized workspace folder URIs, shortest
// first. The result is cached until the folders change. e.mu must be held.
func (e *Extension) sortedFolders() []string {
	if e.sorted == nil {
		folders := e.folders()
		sorted := make([]string, 0, len(folders))
		for _, f := range folders {
			sorted = append(sorted, normalize(f.URI))
		}
		slices.SortStableFunc(sorted, func(a, b string) int {
			return cmp.Compare(len(a), len(b))
		})
		e.sorted = sorted
	}
	return e.sorted
}

func (e *Extension) folders() []WorkspaceFolder {
	if e.host.Workspace == nil {
		return nil
	}
	return e.host.Workspace.Folders()
}

// folderFor returns the innermost workspace folder containing u.
func (e *Extension) folderFor(u uri.URI) (WorkspaceFolder, bool) {
	var (
		best    WorkspaceFolder
		bestLen = -1
	)
	for _, f := range e.folders() {
		prefix := normalize(f.URI)
		if strings.HasPrefix(string(u), prefix) && len(prefix) > bestLen {
			best, bestLen = f, len(prefix)
		}
	}
	return best, bestLen >= 0
}

// outermost returns the outermost workspace folder containing folder, which
// is folder itself when it is not nested. e.mu must be held.
func (e *Extension) outermost(folder WorkspaceFolder) WorkspaceFolder {
	target := normalize(folder.URI)
	for _, prefix := range e.sortedFolders() {
		if !strings.HasPrefix(target, prefix) {
			continue
		}
		for _, f := range e.folders() {
			if normalize(f.URI) == prefix {
				return f
			}
		}
	}
	return folder
}
