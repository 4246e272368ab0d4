// Package intent classifies questions about the festival by keyword
// pattern. Rules are tried in a fixed order and the first match wins.
package intent

import "strings"

// Intent is the kind of answer a question asks for.
type Intent string

const (
	Location     Intent = "location"
	Time         Intent = "time"
	Agent        Intent = "agent"
	EventListing Intent = "event_listing"
	DanceListing Intent = "dance_listing"
	GenericWhat  Intent = "generic_what"
	Count        Intent = "count"
	Other        Intent = "other"
)

// Rules holds the keyword lists for each step of the chain. Keywords are
// matched as substrings of the lowercased question.
type Rules struct {
	// DayListing triggers EventListing when the question also names a day.
	DayListing []string `json:"day_listing" yaml:"day_listing" mapstructure:"day_listing"`
	Location   []string `json:"location" yaml:"location" mapstructure:"location"`
	Time       []string `json:"time" yaml:"time" mapstructure:"time"`
	Agent      []string `json:"agent" yaml:"agent" mapstructure:"agent"`
	What       []string `json:"what" yaml:"what" mapstructure:"what"`
	// Event and Dance refine a What question.
	Event []string `json:"event" yaml:"event" mapstructure:"event"`
	Dance []string `json:"dance" yaml:"dance" mapstructure:"dance"`
	Count []string `json:"count" yaml:"count" mapstructure:"count"`
}

// DefaultRules returns the Spanish keyword lists with a few English
// equivalents.
func DefaultRules() Rules {
	return Rules{
		DayListing: []string{"qué", "que", "cuales", "cuáles", "eventos", "actividades", "what", "which", "events"},
		Location:   []string{"dónde", "donde", "lugar", "ubicación", "sitio", "está", "esta", "where"},
		Time:       []string{"cuándo", "cuando", "fecha", "día", "hora", "when", "date"},
		Agent:      []string{"quién", "quien", "quiénes", "quienes", "participa", "realiza", "who"},
		What:       []string{"qué", "que", "cómo", "como", "cuál", "cual", "what", "which"},
		Event:      []string{"evento", "actividad", "hito", "event"},
		Dance:      []string{"danza", "baile", "dance"},
		Count:      []string{"cuántos", "cuantos", "número", "cantidad", "how many"},
	}
}

// Classifier maps a question to an Intent. It holds no per-query state and
// is safe for concurrent use.
type Classifier struct {
	rules Rules
	days  *DayTable
}

// NewClassifier builds a classifier. A nil day table uses DefaultDayTable.
func NewClassifier(rules Rules, days *DayTable) *Classifier {
	if days == nil {
		days = DefaultDayTable()
	}
	return &Classifier{rules: rules, days: days}
}

// Days returns the day table used for day detection.
func (c *Classifier) Days() *DayTable { return c.days }

// Classify runs the rule chain:
//  1. a day reference plus a listing word is EventListing
//  2. Location, then Time, then Agent keywords
//  3. a What word is EventListing, DanceListing or GenericWhat depending
//     on the topic words present
//  4. Count keywords
//  5. otherwise Other
func (c *Classifier) Classify(question string) Intent {
	q := strings.ToLower(question)

	if c.days.Mentions(q) && containsAny(q, c.rules.DayListing) {
		return EventListing
	}

	switch {
	case containsAny(q, c.rules.Location):
		return Location
	case containsAny(q, c.rules.Time):
		return Time
	case containsAny(q, c.rules.Agent):
		return Agent
	case containsAny(q, c.rules.What):
		switch {
		case containsAny(q, c.rules.Event):
			return EventListing
		case containsAny(q, c.rules.Dance):
			return DanceListing
		default:
			return GenericWhat
		}
	case containsAny(q, c.rules.Count):
		return Count
	default:
		return Other
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
