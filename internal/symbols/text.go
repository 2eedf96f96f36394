package symbols

import (
	"fmt"
	"log"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Relevance is one full-text search hit.
type Relevance struct {
	Path  string
	Score float64
}

// textIndex provides keyword search over indexed file contents, used to
// rank which project files are relevant to a task description.
type textIndex struct {
	index bleve.Index
	path  string
}

// openTextIndex opens or creates the bleve index next to the symbol
// database. A corrupted index is deleted and rebuilt rather than failing
// the whole run.
func openTextIndex(dir string) (*textIndex, error) {
	indexPath := dir + ".bleve"

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildFileMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create text index: %w", err)
		}
	} else if err != nil {
		log.Printf("⚠️  text index appears corrupted (%v), recreating", err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			log.Printf("⚠️  failed to remove corrupted text index: %v", err)
		}
		index, err = bleve.New(indexPath, buildFileMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate text index: %w", err)
		}
	}

	return &textIndex{index: index, path: indexPath}, nil
}

func buildFileMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	fileMapping := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	pathField.Index = true
	fileMapping.AddFieldMappingsAt("path", pathField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = false
	contentField.Index = true
	fileMapping.AddFieldMappingsAt("content", contentField)

	symbolsField := bleve.NewTextFieldMapping()
	symbolsField.Analyzer = standard.Name
	symbolsField.Store = false
	symbolsField.Index = true
	fileMapping.AddFieldMappingsAt("symbols", symbolsField)

	indexMapping.DefaultMapping = fileMapping
	return indexMapping
}

// indexFile indexes one file's content and symbol names, keyed by path so
// re-indexing replaces the previous document.
func (t *textIndex) indexFile(path, content string, symbolNames string) error {
	return t.index.Index(path, map[string]any{
		"path":    path,
		"content": content,
		"symbols": symbolNames,
	})
}

func (t *textIndex) deleteFile(path string) error {
	return t.index.Delete(path)
}

// search returns the top-k files matching a free-text query.
func (t *textIndex) search(query string, k int) ([]Relevance, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.Fields = []string{"path"}

	res, err := t.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	out := make([]Relevance, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Relevance{Path: hit.ID, Score: hit.Score}
		if p, ok := hit.Fields["path"].(string); ok {
			r.Path = p
		}
		out = append(out, r)
	}
	return out, nil
}

func (t *textIndex) Close() error {
	return t.index.Close()
}
