package synthesis

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/intent"
	"github.com/brunobiangulo/qoyllur/retrieval"
)

// NoMatchText is returned when search finds nothing.
const NoMatchText = "Lo siento, no encontré información relacionada con tu pregunta."

// Provenance tells how an answer was produced.
type Provenance string

const (
	ProvenanceTemplate Provenance = "template"
	ProvenanceFallback Provenance = "fallback"
	ProvenanceNoMatch  Provenance = "no_match"
)

const relatedMax = 2

// Options tunes reselection and the generic fallback.
type Options struct {
	// RerankWindow is how many top candidates reselection considers.
	RerankWindow int `json:"rerank_window" yaml:"rerank_window" mapstructure:"rerank_window"`
	// RelatedMinScore is the score a runner-up needs to be mentioned.
	RelatedMinScore float64 `json:"related_min_score" yaml:"related_min_score" mapstructure:"related_min_score"`
	// PrimaryMinScore is the score the answered entity needs before
	// runners-up are mentioned at all.
	PrimaryMinScore float64 `json:"primary_min_score" yaml:"primary_min_score" mapstructure:"primary_min_score"`
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{RerankWindow: 5, RelatedMinScore: 0.2, PrimaryMinScore: 0.3}
}

// Responder renders answers from an index. It is stateless per call and
// safe for concurrent use.
type Responder struct {
	idx   *graph.Index
	vocab graph.Vocabulary
	days  *intent.DayTable
	opts  Options
}

// NewResponder creates a responder. A nil day table uses the default one.
func NewResponder(idx *graph.Index, days *intent.DayTable, opts Options) *Responder {
	if days == nil {
		days = intent.DefaultDayTable()
	}
	if opts.RerankWindow <= 0 {
		opts.RerankWindow = DefaultOptions().RerankWindow
	}
	return &Responder{idx: idx, vocab: idx.Vocabulary(), days: days, opts: opts}
}

// Response is a rendered answer and the entity it is about.
type Response struct {
	Text       string
	Provenance Provenance
	EntityID   string
	Score      float64
}

// Compose answers a classified question from ranked candidates: reselect
// by intent, try the intent's template, else describe the top candidate.
func (r *Responder) Compose(question string, in intent.Intent, candidates []retrieval.Result) Response {
	if len(candidates) == 0 {
		return Response{Text: NoMatchText, Provenance: ProvenanceNoMatch}
	}

	selected := r.Select(question, in, candidates)
	slog.Debug("synthesis: entity selected",
		"intent", in, "entity", selected.ID, "score", selected.Score)

	if tmpl := r.Template(in); tmpl != nil {
		if text, ok := tmpl(question, selected.ID); ok {
			return Response{
				Text:       text,
				Provenance: ProvenanceTemplate,
				EntityID:   selected.ID,
				Score:      selected.Score,
			}
		}
		slog.Debug("synthesis: template not applicable, using fallback", "intent", in, "entity", selected.ID)
	}

	top := candidates[0]
	return Response{
		Text:       r.Generic(top.ID, top.Score, candidates),
		Provenance: ProvenanceFallback,
		EntityID:   top.ID,
		Score:      top.Score,
	}
}

// Select picks the candidate the intent's template should describe. Only
// the first RerankWindow candidates are considered; without a better fit
// the first candidate wins.
func (r *Responder) Select(question string, in intent.Intent, candidates []retrieval.Result) retrieval.Result {
	if len(candidates) == 0 {
		return retrieval.Result{}
	}
	window := head(candidates, r.opts.RerankWindow)

	switch in {
	case intent.EventListing:
		for _, c := range window {
			if e, ok := r.idx.Entity(c.ID); ok && r.isDay(e) {
				return c
			}
		}
	case intent.Agent:
		if c, ok := r.selectAgent(question, window); ok {
			return c
		}
	}
	return candidates[0]
}

const (
	agentTermInID        = 10
	agentLabelStartsWith = 8
	agentTermInLabel     = 5
	agentHasPerformer    = 3
	agentDayPenalty      = -5
)

// agentStopwords are dropped before agent reselection scoring, in
// normalized form.
var agentStopwords = normalizedSet(
	"quien", "quién", "que", "qué", "donde", "dónde", "cuando", "cuándo",
	"realiza", "hace", "ejecuta", "participa", "hay", "esta", "está",
	"son", "como", "cómo", "cual", "cuál", "eventos", "día", "dia",
)

func normalizedSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		for _, t := range graph.Tokens(w) {
			set[t] = true
		}
	}
	return set
}

// selectAgent scores candidates for "who performs X" questions. An entity
// named after X beats one that merely mentions it, performers of
// something get a bonus and day entities a penalty.
func (r *Responder) selectAgent(question string, window []retrieval.Result) (retrieval.Result, bool) {
	var terms []string
	for _, t := range graph.Tokens(question) {
		if !agentStopwords[t] && utf8.RuneCountInString(t) > 3 {
			terms = append(terms, t)
		}
	}

	best, bestScore := retrieval.Result{}, 0
	for _, c := range window {
		e, ok := r.idx.Entity(c.ID)
		if !ok {
			continue
		}
		score := 0
		lowerID := strings.ToLower(e.ID)
		for _, t := range terms {
			if strings.Contains(lowerID, t) {
				score += agentTermInID
			}
		}
		if len(e.Labels) > 0 {
			first := strings.ToLower(e.Labels[0])
			norm := graph.Normalize(first)
			for _, t := range terms {
				if !strings.Contains(norm, t) {
					continue
				}
				if strings.HasPrefix(first, t) {
					score += agentLabelStartsWith
				} else {
					score += agentTermInLabel
				}
			}
		}
		if e.Relations.Has(r.vocab.PerformedBy) {
			score += agentHasPerformer
		}
		if strings.HasPrefix(lowerID, "dia") {
			score += agentDayPenalty
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore > 0
}
