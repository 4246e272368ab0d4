package graph

// Entity is one subject of the graph with everything the engine knows
// about it. Entities handed out by an Index are shared and must be treated
// as read-only.
type Entity struct {
	ID           string            `json:"id"`
	URI          string            `json:"uri"`
	Labels       []string          `json:"labels,omitempty"`
	Comments     []string          `json:"comments,omitempty"`
	Descriptions []string          `json:"descriptions,omitempty"`
	Type         string            `json:"type,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	Relations    Relations         `json:"relations,omitempty"`
	// InverseRelations is derived after all triples are read and is not
	// persisted.
	InverseRelations Relations `json:"-"`
}

// Name is the display name: the first label, else the id.
func (e *Entity) Name() string {
	if len(e.Labels) > 0 {
		return e.Labels[0]
	}
	return e.ID
}

// Summary returns the first description, else the first comment.
func (e *Entity) Summary() string {
	if len(e.Descriptions) > 0 {
		return e.Descriptions[0]
	}
	if len(e.Comments) > 0 {
		return e.Comments[0]
	}
	return ""
}

// Property returns a scalar property value.
func (e *Entity) Property(name string) (string, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

// Relation is the ordered target list of one predicate.
type Relation struct {
	Predicate string   `json:"predicate"`
	Targets   []string `json:"targets"`
}

// Relations keeps predicates in first-seen order.
type Relations []Relation

// Get returns the targets of a predicate, or nil.
func (rs Relations) Get(predicate string) []string {
	for _, r := range rs {
		if r.Predicate == predicate {
			return r.Targets
		}
	}
	return nil
}

// Has reports whether the predicate has at least one target.
func (rs Relations) Has(predicate string) bool {
	return len(rs.Get(predicate)) > 0
}

func (rs *Relations) add(predicate, target string) {
	for i := range *rs {
		if (*rs)[i].Predicate == predicate {
			(*rs)[i].Targets = append((*rs)[i].Targets, target)
			return
		}
	}
	*rs = append(*rs, Relation{Predicate: predicate, Targets: []string{target}})
}
