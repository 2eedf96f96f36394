// Package symbols maintains a lightweight code index over the generated
// project: declared symbols, file-to-file dependency edges, and a full-text
// index for relevance ranking. Agents query it through the search_symbols
// and get_file_context tools, and the build controller uses the dependency
// edges to find files invalidated by an edit.
package symbols

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Index ties the symbol database and the text index together.
type Index struct {
	root string

	mu   sync.Mutex
	db   *db
	text *textIndex
}

// Open creates or opens the index for a project. Index files live under
// <root>/.foreman/.
func Open(ctx context.Context, root string) (*Index, error) {
	stateDir := filepath.Join(root, ".foreman")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	d, err := openDB(ctx, filepath.Join(stateDir, "symbols.db"))
	if err != nil {
		return nil, err
	}
	t, err := openTextIndex(filepath.Join(stateDir, "symbols"))
	if err != nil {
		d.Close()
		return nil, err
	}

	return &Index{root: root, db: d, text: t}, nil
}

// Close releases both stores.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	err1 := ix.db.Close()
	err2 := ix.text.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// IndexFile (re)indexes one file, given as a path relative to the project
// root. Indexing the same content twice is a no-op. Dependency edges are
// recomputed from the file's imports against the set of indexed files.
func (ix *Index) IndexFile(ctx context.Context, rel string) error {
	rel = filepath.ToSlash(rel)
	if DetectLanguage(rel) == LangUnknown {
		return nil
	}

	abs := filepath.Join(ix.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.db.fileHash(ctx, rel); ok && prev == hash {
		return nil
	}

	content := string(data)
	syms := ExtractSymbols(rel, content)
	specs := ExtractImports(rel, content)

	indexed, err := ix.db.allPaths(ctx)
	if err != nil {
		return err
	}
	deps := ResolveImports(rel, specs, indexed)

	if err := ix.db.upsertFile(ctx, rel, string(DetectLanguage(rel)), hash, info.ModTime().Unix(), syms, deps); err != nil {
		return err
	}

	names := make([]string, 0, len(syms))
	for _, s := range syms {
		names = append(names, s.Name)
	}
	return ix.text.indexFile(rel, content, strings.Join(names, " "))
}

// RemoveFile drops a deleted file from both stores.
func (ix *Index) RemoveFile(ctx context.Context, rel string) error {
	rel = filepath.ToSlash(rel)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.db.removeFile(ctx, rel); err != nil {
		return err
	}
	return ix.text.deleteFile(rel)
}

// Reindex walks the whole project and indexes every discovered file.
// Files whose content is unchanged are skipped via the stored hash.
func (ix *Index) Reindex(ctx context.Context) (int, error) {
	files, err := Walk(ix.root)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rel := range files {
		if err := ix.IndexFile(ctx, rel); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Dependents returns files whose recorded dependencies include rel.
// This is the one-hop edge set used for invalidation.
func (ix *Index) Dependents(ctx context.Context, rel string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.dependents(ctx, filepath.ToSlash(rel))
}

// Dependencies returns the files rel imports.
func (ix *Index) Dependencies(ctx context.Context, rel string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.dependencies(ctx, filepath.ToSlash(rel))
}

// Lookup finds symbols whose name matches exactly or contains the query.
func (ix *Index) Lookup(ctx context.Context, name string, limit int) ([]Symbol, error) {
	if limit <= 0 {
		limit = 20
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.lookup(ctx, name, limit)
}

// FileSymbols returns all symbols declared in one file.
func (ix *Index) FileSymbols(ctx context.Context, rel string) ([]Symbol, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.symbolsForFile(ctx, filepath.ToSlash(rel))
}

// RelevantFiles ranks indexed files against a free-text query.
func (ix *Index) RelevantFiles(query string, k int) ([]Relevance, error) {
	if k <= 0 {
		k = 10
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.text.search(query, k)
}

// watchDebounce batches bursts of filesystem events before re-indexing.
const watchDebounce = 500 * time.Millisecond

// Watch re-indexes files as they change on disk until ctx is done.
// Intended to run in its own goroutine alongside an interactive session.
func (ix *Index) Watch(ctx context.Context) error {
	w, err := newWatcher(ix.root)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.run(ctx, func(changed []string, removed []string) {
		for _, rel := range changed {
			if err := ix.IndexFile(ctx, rel); err != nil && ctx.Err() == nil {
				continue
			}
		}
		for _, rel := range removed {
			_ = ix.RemoveFile(ctx, rel)
		}
	})
}
