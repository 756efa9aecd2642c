package router

import (
	"strings"
	"sync"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// Router is a single-owner, mutable text analyzer.
type Router struct {
	mu sync.Mutex

	personAC *ahocorasick.Automaton
	orgAC    *ahocorasick.Automaton
	locAC    *ahocorasick.Automaton
	posAC    *ahocorasick.Automaton
	negAC    *ahocorasick.Automaton
	stop     *stopwords.Stopwords
}

// New builds a Router over DefaultLexicon.
func New() (*Router, error) {
	return NewWithLexicon(DefaultLexicon)
}

// NewWithLexicon builds a Router over a caller-supplied Lexicon.
func NewWithLexicon(lex Lexicon) (*Router, error) {
	personAC, err := buildAutomaton(lex.PersonNames)
	if err != nil {
		return nil, err
	}
	orgAC, err := buildAutomaton(lex.OrgSuffixes)
	if err != nil {
		return nil, err
	}
	locAC, err := buildAutomaton(lex.Locations)
	if err != nil {
		return nil, err
	}
	posAC, err := buildAutomaton(lex.Positive)
	if err != nil {
		return nil, err
	}
	negAC, err := buildAutomaton(lex.Negative)
	if err != nil {
		return nil, err
	}
	return &Router{
		personAC: personAC,
		orgAC:    orgAC,
		locAC:    locAC,
		posAC:    posAC,
		negAC:    negAC,
		stop:     stopwords.MustGet("en"),
	}, nil
}

func buildAutomaton(words []string) (*ahocorasick.Automaton, error) {
	if len(words) == 0 {
		words = []string{"\x00unused\x00"}
	}
	return ahocorasick.NewBuilder().
		AddStrings(words).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
}

// token is a word with its byte span in the original text.
type token struct {
	text  string
	start int
	end   int
}

// tokenize splits text on runs of non-letter/non-digit characters,
// preserving byte offsets and original casing.
func tokenize(text string) []token {
	var out []token
	runes := []rune(text)
	i := 0
	byteOf := make([]int, len(runes)+1)
	pos := 0
	for idx, r := range runes {
		byteOf[idx] = pos
		pos += len(string(r))
	}
	byteOf[len(runes)] = pos

	for i < len(runes) {
		for i < len(runes) && !isWordRune(runes[i]) {
			i++
		}
		start := i
		for i < len(runes) && isWordRune(runes[i]) {
			i++
		}
		if i > start {
			out = append(out, token{
				text:  string(runes[start:i]),
				start: byteOf[start],
				end:   byteOf[i],
			})
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

func isCapitalized(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r)
}

// Valence exposes the emotional-valence lexicon scan for
// callers outside Route, such as Retrieval's emotional-boost term.
func (r *Router) Valence(text string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emotionalValence(text)
}

// Route extracts entities, topics, sentiment, and search-type hints from
// text.
func (r *Router) Route(text string) mnemo.RouterOutput {
	r.mu.Lock()
	defer r.mu.Unlock()

	toks := tokenize(text)
	entities := r.extractEntities(toks)

	topics := r.extractTopics(toks, entities)
	valence := r.emotionalValence(text)
	queryKeys := buildQueryKeys(entities, topics)
	searchTypes := r.searchTypes(text, entities)

	return mnemo.RouterOutput{
		Entities:         entities,
		Topics:           topics,
		EmotionalValence: valence,
		QueryKeys:        queryKeys,
		SearchTypes:      searchTypes,
	}
}

// extractEntities merges adjacent capitalized tokens into spans and
// classifies each run against the lexicons. With no subword tokenizer
// emitting BIO tags, span merging collapses to
// contiguous-capitalization runs.
func (r *Router) extractEntities(toks []token) []mnemo.Entity {
	var entities []mnemo.Entity
	i := 0
	for i < len(toks) {
		if !isCapitalized(toks[i].text) || i == 0 {
			// Sentence-initial capitalization alone is not entity
			// evidence unless the token also hits a lexicon.
			if i == 0 && isCapitalized(toks[i].text) {
				if ent, ok := r.classifySingle(toks[i].text); ok {
					entities = append(entities, ent)
				}
			}
			i++
			continue
		}
		j := i
		for j < len(toks) && isCapitalized(toks[j].text) {
			j++
		}
		run := toks[i:j]
		entities = append(entities, r.classifyRun(run))
		i = j
	}
	return dedupeEntities(entities)
}

func (r *Router) classifySingle(word string) (mnemo.Entity, bool) {
	lower := strings.ToLower(word)
	if hasMatch(r.personAC, lower) {
		return mnemo.Entity{Text: word, Label: mnemo.EntityPerson, Confidence: 0.9}, true
	}
	if hasMatch(r.locAC, lower) {
		return mnemo.Entity{Text: word, Label: mnemo.EntityLoc, Confidence: 0.9}, true
	}
	if hasMatch(r.orgAC, lower) {
		return mnemo.Entity{Text: word, Label: mnemo.EntityOrg, Confidence: 0.9}, true
	}
	return mnemo.Entity{}, false
}

func (r *Router) classifyRun(run []token) mnemo.Entity {
	var b strings.Builder
	for i, t := range run {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	text := b.String()
	lower := strings.ToLower(text)
	last := strings.ToLower(run[len(run)-1].text)
	first := strings.ToLower(run[0].text)

	confidence := 0.6
	label := mnemo.EntityMisc
	switch {
	case hasMatch(r.orgAC, last) || hasMatch(r.orgAC, lower):
		label = mnemo.EntityOrg
		confidence = 0.9
	case hasMatch(r.locAC, lower) || hasMatch(r.locAC, last):
		label = mnemo.EntityLoc
		confidence = 0.9
	case hasMatch(r.personAC, first) || hasMatch(r.personAC, last):
		label = mnemo.EntityPerson
		confidence = 0.9
	default:
		// No lexicon evidence: a bare capitalized run defaults to
		// Person, the most common proper-noun class in conversational
		// text.
		label = mnemo.EntityPerson
	}
	return mnemo.Entity{Text: text, Label: label, Confidence: confidence}
}

func hasMatch(ac *ahocorasick.Automaton, word string) bool {
	if ac == nil || word == "" {
		return false
	}
	matches := ac.FindAllOverlapping([]byte(word))
	for _, m := range matches {
		if m.Start == 0 && m.End == len(word) {
			return true
		}
	}
	return false
}

func dedupeEntities(entities []mnemo.Entity) []mnemo.Entity {
	seen := make(map[string]bool, len(entities))
	out := make([]mnemo.Entity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// extractTopics unions lowercased entity texts with capitalized
// mid-sentence tokens and significant (>=5 chars, non-stopword) tokens.
func (r *Router) extractTopics(toks []token, entities []mnemo.Entity) []string {
	seen := make(map[string]bool)
	var topics []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		topics = append(topics, s)
	}

	for _, e := range entities {
		add(e.Text)
	}
	for i, t := range toks {
		if i > 0 && isCapitalized(t.text) {
			add(t.text)
		}
		if len([]rune(t.text)) >= 5 && !r.stop.Contains(strings.ToLower(t.text)) {
			add(t.text)
		}
	}
	return topics
}

// emotionalValence computes (pos-neg)/total over lexicon hits, 0 if no
// hits.
func (r *Router) emotionalValence(text string) float64 {
	lower := strings.ToLower(text)
	pos := len(r.posAC.FindAllOverlapping([]byte(lower)))
	neg := len(r.negAC.FindAllOverlapping([]byte(lower)))
	total := pos + neg
	if total == 0 {
		return 0
	}
	v := float64(pos-neg) / float64(total)
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v
}

// buildQueryKeys unions lowercased entity texts and topics, deduplicated,
// length >= 2.
func buildQueryKeys(entities []mnemo.Entity, topics []string) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len([]rune(s)) < 2 || seen[s] {
			return
		}
		seen[s] = true
		keys = append(keys, s)
	}
	for _, e := range entities {
		add(e.Text)
	}
	for _, t := range topics {
		add(t)
	}
	return keys
}

// searchTypes applies the hint-phrase cascade, defaulting to
// [Episodic, Semantic] when nothing matches.
func (r *Router) searchTypes(text string, entities []mnemo.Entity) []mnemo.MemoryType {
	lower := strings.ToLower(text)
	var types []mnemo.MemoryType
	seen := make(map[mnemo.MemoryType]bool)
	add := func(t mnemo.MemoryType) {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	if containsAny(lower, proceduralHints) {
		add(mnemo.Procedural)
	}
	if containsAny(lower, semanticHints) {
		add(mnemo.Semantic)
	}
	hasPerson := false
	for _, e := range entities {
		if e.Label == mnemo.EntityPerson {
			hasPerson = true
			break
		}
	}
	if containsAny(lower, episodicHints) || hasPerson {
		add(mnemo.Episodic)
	}

	if len(types) == 0 {
		return []mnemo.MemoryType{mnemo.Episodic, mnemo.Semantic}
	}
	return types
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
