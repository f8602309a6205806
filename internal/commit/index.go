package commit

import (
	"time"

	"github.com/dgraph-io/badger/v4"

	"sprig/internal/storage"
)

// Summary is the index entry kept for every commit so that enumeration and
// prefix lookup do not need to scan the object store.
type Summary struct {
	Digest    string    `json:"digest"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Index struct {
	store *storage.Table[Summary]
}

func NewIndex(db *badger.DB) *Index {
	return &Index{store: storage.NewTable(db, "commit", func(s *Summary) string { return s.Digest })}
}

func (i *Index) Record(c *Commit) error {
	return i.store.Put(&Summary{
		Digest:    c.Digest,
		Message:   c.Message,
		Timestamp: c.Timestamp,
	})
}

func (i *Index) Has(digest string) (bool, error) {
	return i.store.Has(digest)
}

// Match returns every indexed digest beginning with prefix.
func (i *Index) Match(prefix string) ([]string, error) {
	return i.store.Keys(prefix)
}

func (i *Index) All() ([]Summary, error) {
	return i.store.All()
}
