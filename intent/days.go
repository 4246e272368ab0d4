package intent

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Day maps one festival day to the entity that represents it and to the
// phrasings a question may use for it.
type Day struct {
	Number   int      `json:"number" yaml:"number" mapstructure:"number"`
	EntityID string   `json:"entity_id" yaml:"entity_id" mapstructure:"entity_id"`
	Variants []string `json:"variants,omitempty" yaml:"variants,omitempty" mapstructure:"variants"`
}

// DayTable resolves free-text day references. Entries are checked in
// order and the first match wins.
type DayTable struct {
	days []Day
}

// DefaultVariants returns the spellings recognized for day n when a table
// entry does not list its own: "diaN", "día N", "dia N", "day N".
func DefaultVariants(n int) []string {
	return []string{
		fmt.Sprintf("dia%d", n),
		fmt.Sprintf("día %d", n),
		fmt.Sprintf("dia %d", n),
		fmt.Sprintf("day %d", n),
	}
}

// NewDayTable copies days, lowercasing variants and filling in the
// defaults for entries without any.
func NewDayTable(days []Day) *DayTable {
	t := &DayTable{days: make([]Day, 0, len(days))}
	for _, d := range days {
		vs := d.Variants
		if len(vs) == 0 {
			vs = DefaultVariants(d.Number)
		}
		lower := make([]string, 0, len(vs))
		for _, v := range vs {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				lower = append(lower, v)
			}
		}
		t.days = append(t.days, Day{Number: d.Number, EntityID: d.EntityID, Variants: lower})
	}
	return t
}

// DefaultDays is the five-day Qoyllur Rit'i calendar.
func DefaultDays() []Day {
	return []Day{
		{Number: 1, EntityID: "Dia1_SabadoPreparacion"},
		{Number: 2, EntityID: "Dia2_DomingoPartida"},
		{Number: 3, EntityID: "Dia3_LunesAscenso"},
		{Number: 4, EntityID: "Dia4_MartesDescensoYLomada"},
		{Number: 5, EntityID: "Dia5_MiercolesAlba"},
	}
}

// DefaultDayTable returns NewDayTable(DefaultDays()).
func DefaultDayTable() *DayTable { return NewDayTable(DefaultDays()) }

// Days returns the table entries.
func (t *DayTable) Days() []Day { return t.days }

// Mentions reports whether the question names any day in the table.
func (t *DayTable) Mentions(question string) bool {
	_, ok := t.ResolveQuestion(question)
	return ok
}

// ResolveQuestion finds the first day whose variant appears in the
// question. A variant followed by another digit does not match, so
// "día 1" is not found in "día 12".
func (t *DayTable) ResolveQuestion(question string) (Day, bool) {
	q := strings.ToLower(question)
	for _, d := range t.days {
		for _, v := range d.Variants {
			if containsVariant(q, v) {
				return d, true
			}
		}
	}
	return Day{}, false
}

// ResolveEntity returns the day represented by an entity id, matching the
// table's entity id or one of its variants.
func (t *DayTable) ResolveEntity(id string) (Day, bool) {
	lower := strings.ToLower(id)
	for _, d := range t.days {
		if d.EntityID == id {
			return d, true
		}
		for _, v := range d.Variants {
			if v == lower {
				return d, true
			}
		}
	}
	return Day{}, false
}

func containsVariant(s, v string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], v)
		if i < 0 {
			return false
		}
		end := from + i + len(v)
		next, _ := utf8.DecodeRuneInString(s[end:])
		if end == len(s) || !unicode.IsDigit(next) {
			return true
		}
		from = end
	}
}
