package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/trendhaul/farfetch-scraper/internal/models"
)

// FileStore keeps scraped product snapshots in a single JSON file, keyed
// by product URL. It is the lightweight alternative to Postgres for CLI
// runs; re-scraping a URL replaces its snapshot.
type FileStore struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	savedAt  time.Time
	filename string
}

type fileSnapshot struct {
	SavedAt  time.Time                  `json:"saved_at"`
	Products map[string]*models.Product `json:"products"`
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		products: make(map[string]*models.Product),
		filename: filename,
	}
	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return fs, nil
}

// SaveBatch merges the batch into the store and writes it out.
func (fs *FileStore) SaveBatch(products []*models.Product) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, p := range products {
		if p.URL == "" {
			return fmt.Errorf("product URL is required")
		}
		fs.products[p.URL] = p
	}
	return fs.save()
}

func (fs *FileStore) Get(url string) (*models.Product, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	p, ok := fs.products[url]
	return p, ok
}

func (fs *FileStore) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.products)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	if snapshot.Products != nil {
		fs.products = snapshot.Products
	}
	fs.savedAt = snapshot.SavedAt
	return nil
}

// save writes via a temp file so a crash cannot truncate the store.
func (fs *FileStore) save() error {
	fs.savedAt = time.Now()
	data, err := json.MarshalIndent(fileSnapshot{
		SavedAt:  fs.savedAt,
		Products: fs.products,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp := fs.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, fs.filename); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
