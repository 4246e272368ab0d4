package graph

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Index is the immutable entity table built from a graph plus its lexical
// and property-value indices. It is safe for concurrent readers.
type Index struct {
	vocab    Vocabulary
	order    []string
	entities map[string]*Entity
	lexical  map[string][]string
	props    map[string][]string
}

// Stats summarizes an index for logs and health endpoints.
type Stats struct {
	Entities  int `json:"entities"`
	Terms     int `json:"terms"`
	Relations int `json:"relations"`
	Triples   int `json:"triples,omitempty"`
	Skipped   int `json:"skipped,omitempty"`
}

// Builder accumulates triples into entities. Use Build for the common case.
type Builder struct {
	vocab    Vocabulary
	order    []string
	entities map[string]*Entity
	triples  int
	skipped  int
}

// NewBuilder creates an empty builder for the given vocabulary.
func NewBuilder(vocab Vocabulary) *Builder {
	return &Builder{
		vocab:    vocab,
		entities: make(map[string]*Entity),
	}
}

// Build indexes all triples in one pass and derives inverse relations.
func Build(triples []Triple, vocab Vocabulary) *Index {
	b := NewBuilder(vocab)
	for _, t := range triples {
		b.Add(t)
	}
	return b.Index()
}

// entity returns the record for a subject IRI, registering it on first sight.
func (b *Builder) entity(uri string) *Entity {
	id := LocalName(uri)
	if e, ok := b.entities[id]; ok {
		return e
	}
	e := &Entity{ID: id, URI: uri, Properties: make(map[string]string)}
	b.entities[id] = e
	b.order = append(b.order, id)
	return e
}

// Add folds one triple into the entity table. A triple that cannot be used
// is counted and skipped; it never fails the load.
func (b *Builder) Add(t Triple) {
	b.triples++
	e := b.entity(t.Subject)

	switch kind := b.vocab.Kind(t.Predicate, t.Object); kind {
	case KindLabel:
		e.Labels = append(e.Labels, t.Object.Value)
	case KindComment:
		e.Comments = append(e.Comments, t.Object.Value)
	case KindDescription:
		e.Descriptions = append(e.Descriptions, t.Object.Value)
	case KindType:
		e.Type = LocalName(t.Object.Value)
	case KindProperty:
		prop := LocalName(t.Predicate)
		value := strings.TrimSpace(t.Object.Value)
		if b.vocab.isNumericProperty(prop) {
			if _, err := strconv.Atoi(value); err != nil {
				slog.Debug("index: skipping non-numeric property",
					"entity", e.ID, "property", prop, "value", t.Object.Value)
				b.skipped++
				return
			}
		}
		e.Properties[prop] = value
	case KindRelation:
		target := b.entity(t.Object.Value)
		e.Relations.add(LocalName(t.Predicate), target.ID)
	default:
		b.skipped++
	}
}

// Index finalizes the builder. The builder must not be used afterwards.
func (b *Builder) Index() *Index {
	start := time.Now()
	idx := newIndex(b.vocab, b.order, b.entities)
	st := idx.Stats()
	slog.Info("index: built",
		"entities", st.Entities, "terms", st.Terms, "relations", st.Relations,
		"triples", b.triples, "skipped", b.skipped,
		"elapsed", time.Since(start).Round(time.Microsecond))
	return idx
}

// Restore rebuilds an index from previously built entities, e.g. a cache
// snapshot. Inverse relations and both indices are derived again, so the
// result ranks identically to the index the snapshot came from.
func Restore(entities []Entity, vocab Vocabulary) *Index {
	order := make([]string, 0, len(entities))
	byID := make(map[string]*Entity, len(entities))
	for i := range entities {
		e := entities[i]
		if _, dup := byID[e.ID]; dup {
			continue
		}
		if e.Properties == nil {
			e.Properties = make(map[string]string)
		}
		e.InverseRelations = nil
		byID[e.ID] = &e
		order = append(order, e.ID)
	}
	return newIndex(vocab, order, byID)
}

func newIndex(vocab Vocabulary, order []string, entities map[string]*Entity) *Index {
	idx := &Index{
		vocab:    vocab,
		order:    order,
		entities: entities,
		lexical:  make(map[string][]string),
		props:    make(map[string][]string),
	}

	// Inverse relations, in entity order then relation order.
	for _, id := range order {
		e := entities[id]
		for _, r := range e.Relations {
			for _, target := range r.Targets {
				if t, ok := entities[target]; ok {
					t.InverseRelations.add(r.Predicate, id)
				}
			}
		}
	}

	for _, id := range order {
		idx.indexEntity(entities[id])
	}
	return idx
}

func (idx *Index) indexEntity(e *Entity) {
	for _, l := range e.Labels {
		idx.indexText(l, e.ID)
	}
	for _, c := range e.Comments {
		idx.indexText(c, e.ID)
	}
	for _, d := range e.Descriptions {
		idx.indexText(d, e.ID)
	}
	for _, prop := range idx.vocab.IndexedProperties() {
		if v, ok := e.Properties[prop]; ok {
			idx.indexText(v, e.ID)
			key := prop + ":" + v
			idx.props[key] = append(idx.props[key], e.ID)
		}
	}
	for _, r := range e.Relations {
		for _, target := range r.Targets {
			idx.indexText(IDText(target), e.ID)
			key := r.Predicate + ":" + target
			idx.props[key] = append(idx.props[key], e.ID)
		}
	}
}

// indexText posts each distinct token of one text once for the entity.
func (idx *Index) indexText(text, id string) {
	seen := make(map[string]bool)
	for _, tok := range Tokens(text) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		idx.lexical[tok] = append(idx.lexical[tok], id)
	}
}

// Vocabulary returns the vocabulary the index was built with.
func (idx *Index) Vocabulary() Vocabulary { return idx.vocab }

// Len returns the number of entities.
func (idx *Index) Len() int { return len(idx.order) }

// IDs returns entity ids in registration order. The slice is shared.
func (idx *Index) IDs() []string { return idx.order }

// Entity looks up an entity by id.
func (idx *Index) Entity(id string) (*Entity, bool) {
	e, ok := idx.entities[id]
	return e, ok
}

// Name returns the display name of id, or id itself when unknown.
func (idx *Index) Name(id string) string {
	if e, ok := idx.entities[id]; ok {
		return e.Name()
	}
	return id
}

// Entities returns all entities in registration order.
func (idx *Index) Entities() []*Entity {
	out := make([]*Entity, len(idx.order))
	for i, id := range idx.order {
		out[i] = idx.entities[id]
	}
	return out
}

// Postings returns the entity ids indexed under a normalized token, one
// entry per indexed text that contains it.
func (idx *Index) Postings(token string) []string { return idx.lexical[token] }

// ByProperty returns the entities whose property (or relation) has exactly
// the given value.
func (idx *Index) ByProperty(prop, value string) []string {
	return idx.props[prop+":"+value]
}

// Stats counts entities, distinct terms and relation edges.
func (idx *Index) Stats() Stats {
	st := Stats{Entities: len(idx.order), Terms: len(idx.lexical)}
	for _, e := range idx.entities {
		for _, r := range e.Relations {
			st.Relations += len(r.Targets)
		}
	}
	return st
}
