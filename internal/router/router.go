// Package router decides which vector store namespaces are relevant to a
// question. Routing is an explicit rule table over small keyword sets, not
// anything learned; each rule pairs a trigger with a selection policy so the
// logic stays unit-testable and swappable.
package router

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

// Decision is the routing outcome. An empty Namespaces slice means no
// configured data can answer the question; Username is set when the question
// was narrowed to one individual and retrieval should filter on it.
type Decision struct {
	Namespaces []string
	Username   string
}

type rule struct {
	name     string
	keywords map[string]struct{}
	selector func(tokens []string, sources map[string]model.SourceConfig) Decision
}

type Router struct {
	rules     []rule
	stopWords map[string]struct{}
}

func New() *Router {
	r := &Router{
		stopWords: toSet(
			"a", "an", "the", "is", "are", "was", "were", "do", "does", "did",
			"what", "which", "who", "whose", "when", "where", "how", "why",
			"show", "list", "tell", "give", "me", "my", "all", "any", "for",
			"of", "in", "on", "at", "to", "about", "from", "and", "or", "have",
			"has", "had", "user", "users", "transaction", "transactions",
			"payment", "payments", "spent", "money",
		),
	}
	r.rules = []rule{
		{
			name:     "users",
			keywords: toSet("user", "users", "who"),
			selector: selectUserSources,
		},
		{
			name:     "transactions",
			keywords: toSet("transaction", "transactions", "payment", "payments"),
			selector: r.selectTransactionSources,
		},
		{
			name:     "individual",
			keywords: nil, // matches when a token names a configured individual
			selector: r.selectByIndividual,
		},
	}
	return r
}

// Select runs the rule table in order and returns the first rule's decision.
// No rule firing yields an empty decision, which callers surface as "no
// relevant data" instead of scanning everything.
func (r *Router) Select(question string, sources map[string]model.SourceConfig) Decision {
	tokens := tokenize(question)
	for _, rule := range r.rules {
		if rule.keywords != nil && !anyToken(tokens, rule.keywords) {
			continue
		}
		decision := rule.selector(tokens, sources)
		if len(decision.Namespaces) > 0 {
			return decision
		}
		if rule.keywords != nil {
			// The rule fired but nothing is configured for it; do not let a
			// later rule answer a question about data we do not have.
			return Decision{}
		}
	}
	return Decision{}
}

func selectUserSources(_ []string, sources map[string]model.SourceConfig) Decision {
	set := map[string]struct{}{}
	for _, src := range sources {
		if src.IsUserTyped() {
			set[src.Namespace] = struct{}{}
		}
	}
	return Decision{Namespaces: sortedKeys(set)}
}

func (r *Router) selectTransactionSources(tokens []string, sources map[string]model.SourceConfig) Decision {
	if decision := r.selectByIndividual(tokens, sources); len(decision.Namespaces) > 0 {
		return decision
	}
	set := map[string]struct{}{}
	for _, src := range sources {
		if src.IsTransactionTyped() {
			set[src.Namespace] = struct{}{}
		}
	}
	return Decision{Namespaces: sortedKeys(set)}
}

// selectByIndividual narrows to sources tied to a username mentioned in the
// question.
func (r *Router) selectByIndividual(tokens []string, sources map[string]model.SourceConfig) Decision {
	set := map[string]struct{}{}
	var matched string
	for _, token := range tokens {
		if _, stop := r.stopWords[token]; stop {
			continue
		}
		for _, src := range sources {
			if src.Username != "" && strings.EqualFold(src.Username, token) {
				set[src.Namespace] = struct{}{}
				matched = strings.ToLower(src.Username)
			}
		}
	}
	return Decision{Namespaces: sortedKeys(set), Username: matched}
}

func tokenize(question string) []string {
	return strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func anyToken(tokens []string, keywords map[string]struct{}) bool {
	for _, token := range tokens {
		if _, ok := keywords[token]; ok {
			return true
		}
	}
	return false
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
