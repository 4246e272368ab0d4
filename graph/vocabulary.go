package graph

import "strings"

const (
	rdfsLabel   = "http://www.w3.org/2000/01/rdf-schema#label"
	rdfsComment = "http://www.w3.org/2000/01/rdf-schema#comment"
)

// Vocabulary names the predicates the engine gives meaning to. Label and
// Comment are full IRIs; the rest are local names matched against the
// predicate's LocalName, so the graph's own namespace does not matter.
type Vocabulary struct {
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
	Comment     string `json:"comment" yaml:"comment" mapstructure:"comment"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
	// TypeSuffix matches any predicate IRI ending with it (rdf:type, a:type).
	TypeSuffix string `json:"type_suffix" yaml:"type_suffix" mapstructure:"type_suffix"`

	OccursAt            string `json:"occurs_at" yaml:"occurs_at" mapstructure:"occurs_at"`
	LocatedIn           string `json:"located_in" yaml:"located_in" mapstructure:"located_in"`
	PerformedBy         string `json:"performed_by" yaml:"performed_by" mapstructure:"performed_by"`
	ParticipatesIn      string `json:"participates_in" yaml:"participates_in" mapstructure:"participates_in"`
	DefinesTimeframeFor string `json:"defines_timeframe_for" yaml:"defines_timeframe_for" mapstructure:"defines_timeframe_for"`

	Date       string `json:"date" yaml:"date" mapstructure:"date"`
	DayOrder   string `json:"day_order" yaml:"day_order" mapstructure:"day_order"`
	EventOrder string `json:"event_order" yaml:"event_order" mapstructure:"event_order"`

	// Language keeps annotations tagged with it (or any of its regions)
	// plus untagged ones.
	Language string `json:"language" yaml:"language" mapstructure:"language"`
}

// DefaultVocabulary returns the Spanish predicate names of the Qoyllur Rit'i
// ontology.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Label:               rdfsLabel,
		Comment:             rdfsComment,
		Description:         "tieneDescripcion",
		TypeSuffix:          "type",
		OccursAt:            "ocurreEnLugar",
		LocatedIn:           "estaEn",
		PerformedBy:         "realizadoPor",
		ParticipatesIn:      "participaEn",
		DefinesTimeframeFor: "defineMarcoTemporal",
		Date:                "tieneFecha",
		DayOrder:            "tieneOrden",
		EventOrder:          "tieneOrdenEvento",
		Language:            "es",
	}
}

// IndexedProperties returns the scalar properties whose values are indexed
// for lookup, in display order: date, day order, event order.
func (v Vocabulary) IndexedProperties() []string {
	return []string{v.Date, v.DayOrder, v.EventOrder}
}

func (v Vocabulary) isIndexedProperty(prop string) bool {
	return prop == v.Date || prop == v.DayOrder || prop == v.EventOrder
}

func (v Vocabulary) isNumericProperty(prop string) bool {
	return prop == v.DayOrder || prop == v.EventOrder
}

// PredicateKind is the role a triple plays in the entity record.
type PredicateKind int

const (
	KindIgnored PredicateKind = iota
	KindLabel
	KindComment
	KindDescription
	KindType
	KindProperty
	KindRelation
)

var kindNames = [...]string{"ignored", "label", "comment", "description", "type", "property", "relation"}

func (k PredicateKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Kind classifies a triple once so the builder can dispatch on it.
// Annotations in another language are KindIgnored.
func (v Vocabulary) Kind(predicate string, obj Term) PredicateKind {
	switch {
	case predicate == v.Label && obj.IsLiteral():
		return v.annotation(KindLabel, obj)
	case predicate == v.Comment && obj.IsLiteral():
		return v.annotation(KindComment, obj)
	case v.Description != "" && LocalName(predicate) == v.Description && obj.IsLiteral():
		return v.annotation(KindDescription, obj)
	case v.TypeSuffix != "" && strings.HasSuffix(predicate, v.TypeSuffix):
		return KindType
	case obj.IsLiteral():
		return KindProperty
	default:
		return KindRelation
	}
}

func (v Vocabulary) annotation(k PredicateKind, obj Term) PredicateKind {
	if v.acceptsLang(obj.Lang) {
		return k
	}
	return KindIgnored
}

func (v Vocabulary) acceptsLang(lang string) bool {
	if lang == "" || v.Language == "" {
		return true
	}
	lang = strings.ToLower(lang)
	want := strings.ToLower(v.Language)
	return lang == want || strings.HasPrefix(lang, want+"-")
}
