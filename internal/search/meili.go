package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const indexUID = "pulseboard_docs"

// Meili indexes Docs in Meilisearch. It tracks its own health in the
// background so a down search server degrades to the local matcher
// instead of failing requests.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. The
// caller proceeds without acceleration if the server is unreachable.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        indexUID,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", indexUID, err)
	}

	index := m.client.Index(indexUID)
	filterable := []interface{}{"kind", "status", "type"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "description", "type", "refId"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
	sortable := []string{"createdAtMs"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("search: update sortable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search runs a query against the index.
func (m *Meili) Search(q Query) ([]Doc, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 50
	}

	sr := &meili.SearchRequest{
		Limit: limit,
	}
	var filters []string
	if q.Kind != "" {
		filters = append(filters, fmt.Sprintf("kind = %q", string(q.Kind)))
	}
	if q.Status != "" {
		filters = append(filters, fmt.Sprintf("status = %q", q.Status))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}
	if q.Sort == SortOldest {
		sr.Sort = []string{"createdAtMs:asc"}
	} else {
		sr.Sort = []string{"createdAtMs:desc"}
	}

	resp, err := m.client.Index(indexUID).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	docs := make([]Doc, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if d, ok := hitToDoc(hit); ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func hitToDoc(hit meili.Hit) (Doc, bool) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Doc{}, false
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return Doc{}, false
	}
	if d.CreatedAtMs != 0 {
		d.CreatedAt = time.UnixMilli(d.CreatedAtMs).UTC()
	}
	return d, d.ID != ""
}

// IndexDocs bulk-indexes docs.
func (m *Meili) IndexDocs(docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(indexUID).AddDocuments(docs, nil)
	return err
}

// DeleteDoc removes one doc from the index.
func (m *Meili) DeleteDoc(id string) error {
	_, err := m.client.Index(indexUID).DeleteDocument(id, nil)
	return err
}
