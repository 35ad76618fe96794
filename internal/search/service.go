package search

import "log"

// Service tries Meilisearch first and falls back to the local matcher.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured; the local matcher then handles everything.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// Search answers q. docs is the candidate set the caller assembled from
// the repositories; it is both the fallback corpus and the source of
// truth, so a stale index can narrow results but never invent them.
func (s *Service) Search(q Query, docs []Doc) []Doc {
	if s.meili != nil && s.meili.Healthy() {
		hits, err := s.meili.Search(q)
		if err == nil {
			return intersect(hits, docs)
		}
		log.Printf("search: meilisearch error, falling back to local filter: %v", err)
	}
	return Filter(docs, q)
}

// Index pushes docs to Meilisearch (fire-and-forget).
func (s *Service) Index(docs []Doc) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocs(docs); err != nil {
			log.Printf("search: index %d docs: %v", len(docs), err)
		}
	}()
}

// Delete removes a doc from the index (fire-and-forget).
func (s *Service) Delete(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDoc(id); err != nil {
			log.Printf("search: delete doc %s: %v", id, err)
		}
	}()
}

// intersect keeps index hits that still exist in the live corpus,
// preferring the live copy of each doc.
func intersect(hits, docs []Doc) []Doc {
	live := make(map[string]Doc, len(docs))
	for _, d := range docs {
		live[d.ID] = d
	}
	out := make([]Doc, 0, len(hits))
	for _, h := range hits {
		if d, ok := live[h.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}
