package graph

import "strings"

// Neighbour is an entity reached from a seed during traversal.
type Neighbour struct {
	ID        string `json:"id"`
	Depth     int    `json:"depth"`
	Predicate string `json:"predicate"`
	Inverse   bool   `json:"inverse,omitempty"`
}

// Traverse walks forward and inverse relations breadth-first from seed up
// to maxDepth hops and returns every entity reached, nearest first. The
// seed itself is not included.
func (idx *Index) Traverse(seed string, maxDepth int) []Neighbour {
	if _, ok := idx.entities[seed]; !ok || maxDepth <= 0 {
		return nil
	}

	visited := map[string]bool{seed: true}
	queue := []string{seed}
	var out []Neighbour

	for depth := 1; depth <= maxDepth && len(queue) > 0; depth++ {
		var next []string
		for _, id := range queue {
			e := idx.entities[id]
			visit := func(rs Relations, inverse bool) {
				for _, r := range rs {
					for _, t := range r.Targets {
						if visited[t] {
							continue
						}
						visited[t] = true
						next = append(next, t)
						out = append(out, Neighbour{ID: t, Depth: depth, Predicate: r.Predicate, Inverse: inverse})
					}
				}
			}
			visit(e.Relations, false)
			visit(e.InverseRelations, true)
		}
		queue = next
	}
	return out
}

const (
	contextRelations = 3
	contextTargets   = 2
)

// ContextText builds the text embedded for an entity: labels, type,
// comments, the date and order properties as "property value", then a
// thin slice of graph context: for the first three relation predicates, up
// to two labelled targets each as "predicate label".
func (idx *Index) ContextText(id string) string {
	e, ok := idx.entities[id]
	if !ok {
		return ""
	}

	parts := make([]string, 0, len(e.Labels)+len(e.Comments)+8)
	parts = append(parts, e.Labels...)
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	parts = append(parts, e.Comments...)
	for _, prop := range idx.vocab.IndexedProperties() {
		if v, ok := e.Properties[prop]; ok {
			parts = append(parts, prop+" "+v)
		}
	}

	rels := e.Relations
	if len(rels) > contextRelations {
		rels = rels[:contextRelations]
	}
	for _, r := range rels {
		targets := r.Targets
		if len(targets) > contextTargets {
			targets = targets[:contextTargets]
		}
		for _, t := range targets {
			if te, ok := idx.entities[t]; ok && len(te.Labels) > 0 {
				parts = append(parts, r.Predicate+" "+te.Labels[0])
			}
		}
	}
	return strings.Join(parts, " ")
}
