package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	root := t.TempDir()
	ix, err := Open(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix, root
}

func TestIndexAndLookup(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "store.py", `class UrlStore:
    def save(self, url):
        pass
`)
	if err := ix.IndexFile(ctx, "store.py"); err != nil {
		t.Fatal(err)
	}

	syms, err := ix.Lookup(ctx, "UrlStore", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 || syms[0].FilePath != "store.py" || syms[0].Kind != "class" {
		t.Fatalf("lookup = %+v", syms)
	}
}

func TestIndexFileIdempotent(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "app.py", "def run():\n    pass\n")
	if err := ix.IndexFile(ctx, "app.py"); err != nil {
		t.Fatal(err)
	}
	if err := ix.IndexFile(ctx, "app.py"); err != nil {
		t.Fatal(err)
	}

	syms, err := ix.FileSymbols(ctx, "app.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 {
		t.Errorf("re-indexing duplicated symbols: %+v", syms)
	}
}

func TestDependentsOneHop(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "store.py", "class UrlStore:\n    pass\n")
	writeProjectFile(t, root, "handlers.py", "from store import UrlStore\n")
	writeProjectFile(t, root, "app.py", "from handlers import routes\n")

	for _, rel := range []string{"store.py", "handlers.py", "app.py"} {
		if err := ix.IndexFile(ctx, rel); err != nil {
			t.Fatal(err)
		}
	}

	deps, err := ix.Dependents(ctx, "store.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0] != "handlers.py" {
		t.Errorf("dependents(store.py) = %v, want [handlers.py] only (one hop)", deps)
	}

	deps, err = ix.Dependents(ctx, "handlers.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0] != "app.py" {
		t.Errorf("dependents(handlers.py) = %v, want [app.py]", deps)
	}
}

func TestDependencyEdgesReplacedOnReindex(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "store.py", "class UrlStore:\n    pass\n")
	writeProjectFile(t, root, "handlers.py", "from store import UrlStore\n")
	for _, rel := range []string{"store.py", "handlers.py"} {
		if err := ix.IndexFile(ctx, rel); err != nil {
			t.Fatal(err)
		}
	}

	// rewrite handlers.py without the import
	writeProjectFile(t, root, "handlers.py", "def routes():\n    pass\n")
	if err := ix.IndexFile(ctx, "handlers.py"); err != nil {
		t.Fatal(err)
	}

	deps, err := ix.Dependents(ctx, "store.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 0 {
		t.Errorf("stale dependency edge survived re-index: %v", deps)
	}
}

func TestReindexWalksProject(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeProjectFile(t, root, "internal/server/handler.go", "package server\n\nfunc Handle() {}\n")
	writeProjectFile(t, root, "README.md", "# not source\n")
	writeProjectFile(t, root, "node_modules/dep/index.js", "module.exports = {}\n")

	n, err := ix.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("indexed %d files, want 2 (source only, ignores respected)", n)
	}
}

func TestRemoveFile(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "app.py", "def run():\n    pass\n")
	if err := ix.IndexFile(ctx, "app.py"); err != nil {
		t.Fatal(err)
	}
	if err := ix.RemoveFile(ctx, "app.py"); err != nil {
		t.Fatal(err)
	}

	syms, err := ix.Lookup(ctx, "run", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 0 {
		t.Errorf("symbols survived removal: %+v", syms)
	}
}

func TestRelevantFiles(t *testing.T) {
	ix, root := newTestIndex(t)
	ctx := context.Background()

	writeProjectFile(t, root, "shortener.py", "def shorten_url(url):\n    return url[:8]\n")
	writeProjectFile(t, root, "billing.py", "def charge_customer(amount):\n    pass\n")
	for _, rel := range []string{"shortener.py", "billing.py"} {
		if err := ix.IndexFile(ctx, rel); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := ix.RelevantFiles("shorten url", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].Path != "shortener.py" {
		t.Errorf("relevance hits = %+v, want shortener.py first", hits)
	}
}
