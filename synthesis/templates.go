// Package synthesis turns a ranked candidate list into an answer: it
// reselects the entity that fits the question's intent, renders the
// intent's template from graph relations, and falls back to a generic
// description when the template does not apply.
package synthesis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/intent"
	"github.com/brunobiangulo/qoyllur/retrieval"
)

// Template renders an answer about one entity. ok is false when the entity
// lacks the relation or property the template needs.
type Template func(question, entityID string) (text string, ok bool)

const (
	maxInversePerformers  = 5
	maxInverseParticipant = 3
	// unorderedEvent sorts events without a usable order after all others.
	unorderedEvent = 999
)

// Location answers "where": all labelled occurs-at targets, else the
// first located-in target.
func (r *Responder) Location(_ string, id string) (string, bool) {
	e, ok := r.idx.Entity(id)
	if !ok {
		return "", false
	}
	name := e.Name()

	var places []string
	for _, pid := range e.Relations.Get(r.vocab.OccursAt) {
		if p, ok := r.idx.Entity(pid); ok && len(p.Labels) > 0 {
			places = append(places, p.Labels[0])
		}
	}
	switch len(places) {
	case 0:
	case 1:
		return fmt.Sprintf("📍 **%s** ocurre en **%s**.", name, places[0]), true
	default:
		return fmt.Sprintf("📍 **%s** ocurre en: %s.", name, strings.Join(places, ", ")), true
	}

	if in := e.Relations.Get(r.vocab.LocatedIn); len(in) > 0 {
		return fmt.Sprintf("📍 **%s** está en **%s**.", name, r.idx.Name(in[0])), true
	}
	return "", false
}

// Time answers "when" from the date, day order and event order properties.
func (r *Responder) Time(_ string, id string) (string, bool) {
	e, ok := r.idx.Entity(id)
	if !ok {
		return "", false
	}

	var parts []string
	if v, ok := e.Property(r.vocab.Date); ok && v != "" {
		parts = append(parts, fmt.Sprintf("📅 **%s** ocurre el %s.", e.Name(), v))
	}
	if v, ok := e.Property(r.vocab.DayOrder); ok && v != "" {
		parts = append(parts, fmt.Sprintf("📋 Es el día %s de la festividad.", v))
	}
	if v, ok := e.Property(r.vocab.EventOrder); ok && v != "" {
		parts = append(parts, fmt.Sprintf("🔢 Es el evento #%s en su día.", v))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// Agent answers "who": who performs this entity, else what this entity
// performs, else who participates in it.
func (r *Responder) Agent(_ string, id string) (string, bool) {
	e, ok := r.idx.Entity(id)
	if !ok {
		return "", false
	}
	name := e.Name()

	if by := e.Relations.Get(r.vocab.PerformedBy); len(by) > 0 {
		names := r.names(by)
		if len(names) == 1 {
			return fmt.Sprintf("👥 **%s** es realizado por **%s**.", name, names[0]), true
		}
		return fmt.Sprintf("👥 **%s** es realizado por: %s.", name, strings.Join(names, ", ")), true
	}

	if does := e.InverseRelations.Get(r.vocab.PerformedBy); len(does) > 0 {
		names := r.names(head(does, maxInversePerformers))
		if len(names) == 1 {
			return fmt.Sprintf("👥 **%s** realiza: **%s**.", name, names[0]), true
		}
		return fmt.Sprintf("👥 **%s** realiza: %s.", name, strings.Join(names, ", ")), true
	}

	if who := e.InverseRelations.Get(r.vocab.ParticipatesIn); len(who) > 0 {
		names := r.names(head(who, maxInverseParticipant))
		return fmt.Sprintf("👥 **%s** tiene la participación de: %s.", name, strings.Join(names, ", ")), true
	}
	return "", false
}

type listedEvent struct {
	name  string
	order int
	known bool
}

// EventListing lists the events of the day named in the question, or of
// the selected entity when it is itself a day, ordered by event order.
func (r *Responder) EventListing(question, id string) (string, bool) {
	dayEnt, number, ok := r.listingDay(question, id)
	if !ok {
		return "", false
	}

	var events []listedEvent
	for _, evID := range dayEnt.Relations.Get(r.vocab.DefinesTimeframeFor) {
		ev, ok := r.idx.Entity(evID)
		if !ok {
			continue
		}
		le := listedEvent{name: ev.Name(), order: unorderedEvent}
		if v, ok := ev.Property(r.vocab.EventOrder); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				le.order, le.known = n, true
			}
		}
		events = append(events, le)
	}
	if len(events) == 0 {
		return "", false
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].order < events[j].order })

	dayName := dayEnt.Name()
	if len(dayEnt.Labels) == 0 && number > 0 {
		dayName = fmt.Sprintf("Día %d", number)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 **%s** incluye estos eventos:\n", dayName)
	for _, ev := range events {
		if ev.known {
			fmt.Fprintf(&b, "\n   • **%s** (evento #%d)", ev.name, ev.order)
		} else {
			fmt.Fprintf(&b, "\n   • **%s**", ev.name)
		}
	}
	return b.String(), true
}

// listingDay resolves the day whose events are listed: the day named in
// the question, then the day table entry for the selected entity, then the
// selected entity itself when it frames events. number is 0 when the day
// is not in the table.
func (r *Responder) listingDay(question, id string) (*graph.Entity, int, bool) {
	if day, ok := r.days.ResolveQuestion(question); ok {
		if e, ok := r.dayEntity(day); ok {
			return e, day.Number, true
		}
	}
	if day, ok := r.days.ResolveEntity(id); ok {
		if e, ok := r.dayEntity(day); ok {
			return e, day.Number, true
		}
	}
	if e, ok := r.idx.Entity(id); ok && e.Relations.Has(r.vocab.DefinesTimeframeFor) {
		return e, 0, true
	}
	return nil, 0, false
}

// dayEntity finds the graph entity for a day table entry. Graphs that name
// their days differently are matched on the day order property.
func (r *Responder) dayEntity(day intent.Day) (*graph.Entity, bool) {
	if e, ok := r.idx.Entity(day.EntityID); ok {
		return e, true
	}
	for _, id := range r.idx.ByProperty(r.vocab.DayOrder, strconv.Itoa(day.Number)) {
		if e, ok := r.idx.Entity(id); ok {
			return e, true
		}
	}
	return nil, false
}

// Generic always produces an answer: the entity's name, its summary, its
// date and order properties, and up to two related runners-up from
// candidates when the entity itself scored well.
func (r *Responder) Generic(id string, score float64, candidates []retrieval.Result) string {
	e, ok := r.idx.Entity(id)
	if !ok {
		return fmt.Sprintf("**%s**", id)
	}

	paras := []string{fmt.Sprintf("**%s**", e.Name())}
	if s := e.Summary(); s != "" {
		paras = append(paras, s)
	}

	var props []string
	if v, ok := e.Property(r.vocab.Date); ok {
		props = append(props, "📅 Fecha: "+v)
	}
	if v, ok := e.Property(r.vocab.DayOrder); ok {
		props = append(props, "📋 Orden día: "+v)
	}
	if v, ok := e.Property(r.vocab.EventOrder); ok {
		props = append(props, "🔢 Orden evento: "+v)
	}
	if len(props) > 0 {
		paras = append(paras, strings.Join(props, " | "))
	}

	if len(candidates) > 1 && score > r.opts.PrimaryMinScore {
		var related []string
		for _, c := range head(candidates[1:], relatedMax) {
			if c.Score > r.opts.RelatedMinScore && c.ID != id {
				related = append(related, fmt.Sprintf("**%s**", r.idx.Name(c.ID)))
			}
		}
		if len(related) > 0 {
			paras = append(paras, "💡 También relacionado: "+strings.Join(related, ", "))
		}
	}
	return strings.Join(paras, "\n\n")
}

// Template returns the template for an intent, or nil when the intent is
// answered by the generic fallback.
func (r *Responder) Template(in intent.Intent) Template {
	switch in {
	case intent.Location:
		return r.Location
	case intent.Time:
		return r.Time
	case intent.Agent:
		return r.Agent
	case intent.EventListing:
		return r.EventListing
	default:
		return nil
	}
}

func (r *Responder) names(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.idx.Name(id)
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// isDay reports whether an entity stands for a festival day: it is in the
// day table, defines a timeframe, or its id or a label says so.
func (r *Responder) isDay(e *graph.Entity) bool {
	if _, ok := r.days.ResolveEntity(e.ID); ok {
		return true
	}
	if e.Relations.Has(r.vocab.DefinesTimeframeFor) {
		return true
	}
	if dayID(e.ID) {
		return true
	}
	for _, l := range e.Labels {
		for _, w := range strings.FieldsFunc(graph.Fold(l), notAlnum) {
			if strings.TrimRightFunc(w, unicode.IsDigit) == "dia" {
				return true
			}
		}
	}
	return false
}

// dayID reports whether an id names a day as a word of its own: "Dia2_X",
// "dia_3" or "PrimerDia", but not "Mediodia" or "MisaMedia".
func dayID(id string) bool {
	for start := 0; start+3 <= len(id); start++ {
		if !strings.EqualFold(id[start:start+3], "dia") {
			continue
		}
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(id[:start])
			if unicode.IsLetter(prev) && id[start] != 'D' {
				continue
			}
		}
		end := start + 3
		if end == len(id) {
			return true
		}
		next, _ := utf8.DecodeRuneInString(id[end:])
		if !unicode.IsLetter(next) || unicode.IsUpper(next) {
			return true
		}
	}
	return false
}

func notAlnum(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }
