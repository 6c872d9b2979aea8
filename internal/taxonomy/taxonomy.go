// Package taxonomy classifies text and file paths against a hierarchical
// topic tree using keyword dictionaries. Matching is deliberately a
// dictionary lookup, not a model: results are explainable and stable across
// runs, and domain teams extend the tables through configuration.
package taxonomy

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDomain is assigned when no domain keyword matches a file name.
const DefaultDomain = "general"

// Topic is one node in the hierarchy. IDs are slash-separated paths; the
// number of separators is the node's depth, and deeper topics outrank
// shallower ones during classification.
type Topic struct {
	ID       string
	Name     string
	Parent   string
	Keywords []string
}

// Depth returns how far below the root this topic sits.
func (t Topic) Depth() int {
	return strings.Count(t.ID, "/")
}

type topicNode struct {
	Topic
	// match holds the keywords lowercased once at insertion.
	match    []string
	children []string
}

type domainEntry struct {
	name     string
	keywords []string
}

// Taxonomy holds the topic tree and the domain keyword table. Build and
// extend it during startup; afterwards it is read-only and safe for
// concurrent classification.
type Taxonomy struct {
	topics map[string]*topicNode
	// order preserves definition order so classification ties are stable.
	order   []string
	domains []domainEntry
}

// New returns an empty taxonomy. Most callers want Default.
func New() *Taxonomy {
	return &Taxonomy{topics: map[string]*topicNode{}}
}

// Add inserts a topic. A missing Parent is derived from the ID path, and an
// unknown parent is tolerated without linking, so tables can be declared in
// any order.
func (t *Taxonomy) Add(topic Topic) error {
	if topic.ID == "" {
		return fmt.Errorf("topic id must not be empty")
	}
	if _, ok := t.topics[topic.ID]; ok {
		return fmt.Errorf("topic %q already exists", topic.ID)
	}
	if topic.Parent == "" {
		if i := strings.LastIndex(topic.ID, "/"); i >= 0 {
			topic.Parent = topic.ID[:i]
		}
	}
	if topic.Name == "" {
		topic.Name = topic.ID[strings.LastIndex(topic.ID, "/")+1:]
	}

	node := &topicNode{Topic: topic, match: lowercaseAll(topic.Keywords)}
	t.topics[topic.ID] = node
	t.order = append(t.order, topic.ID)

	if topic.Parent != "" {
		if parent, ok := t.topics[topic.Parent]; ok {
			parent.children = append(parent.children, topic.ID)
		}
	}
	// Link children declared before their parent.
	for _, id := range t.order {
		if id != topic.ID && t.topics[id].Parent == topic.ID && !contains(node.children, id) {
			node.children = append(node.children, id)
		}
	}
	return nil
}

// Get returns a topic by ID.
func (t *Taxonomy) Get(id string) (Topic, bool) {
	node, ok := t.topics[id]
	if !ok {
		return Topic{}, false
	}
	return node.Topic, true
}

// Len returns the number of topics.
func (t *Taxonomy) Len() int {
	return len(t.topics)
}

// Roots returns the topics without parents, in definition order.
func (t *Taxonomy) Roots() []Topic {
	var roots []Topic
	for _, id := range t.order {
		node := t.topics[id]
		if node.Parent == "" {
			roots = append(roots, node.Topic)
		}
	}
	return roots
}

// Children returns the direct children of a topic, in definition order.
func (t *Taxonomy) Children(id string) []Topic {
	node, ok := t.topics[id]
	if !ok {
		return nil
	}
	children := make([]Topic, 0, len(node.children))
	for _, cid := range node.children {
		if child, ok := t.topics[cid]; ok {
			children = append(children, child.Topic)
		}
	}
	return children
}

// Descendants returns every topic below id, depth-first.
func (t *Taxonomy) Descendants(id string) []Topic {
	var out []Topic
	for _, child := range t.Children(id) {
		out = append(out, child)
		out = append(out, t.Descendants(child.ID)...)
	}
	return out
}

// ClassifyText returns the IDs of every topic whose keywords appear in the
// text, most specific first: deeper topics before shallower ones, more
// keyword hits before fewer, definition order on ties. Matching is a
// case-insensitive substring check so multi-word keywords work across
// scripts without tokenization.
func (t *Taxonomy) ClassifyText(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	type match struct {
		id    string
		score int
		depth int
	}
	var matches []match
	for _, id := range t.order {
		node := t.topics[id]
		score := 0
		for _, kw := range node.match {
			if kw != "" && strings.Contains(lower, kw) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, match{id: id, score: score, depth: node.Depth()})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].depth != matches[j].depth {
			return matches[i].depth > matches[j].depth
		}
		return matches[i].score > matches[j].score
	})

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids
}

// DomainFromPath infers a document's domain from its file name alone. The
// first domain whose keyword appears in the lowercased base name wins;
// unmatched files land in DefaultDomain.
func (t *Taxonomy) DomainFromPath(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, d := range t.domains {
		for _, kw := range d.keywords {
			if kw != "" && strings.Contains(name, kw) {
				return d.name
			}
		}
	}
	return DefaultDomain
}

// Domains returns the known domain names in lookup order, ending with
// DefaultDomain.
func (t *Taxonomy) Domains() []string {
	names := make([]string, 0, len(t.domains)+1)
	for _, d := range t.domains {
		names = append(names, d.name)
	}
	return append(names, DefaultDomain)
}

// ExtendDomain appends keywords to a domain, creating it after the built-in
// entries if unknown. Lookup order favors earlier entries, so built-in
// domains keep precedence over configured ones.
func (t *Taxonomy) ExtendDomain(name string, keywords ...string) {
	low := lowercaseAll(keywords)
	for i := range t.domains {
		if t.domains[i].name == name {
			t.domains[i].keywords = append(t.domains[i].keywords, low...)
			return
		}
	}
	t.domains = append(t.domains, domainEntry{name: name, keywords: low})
}

// Extend merges configured keyword tables into the taxonomy. Unknown topic
// IDs become new topics with their parent derived from the ID path. Keys are
// applied in sorted order so the resulting classification order does not
// depend on map iteration.
func (t *Taxonomy) Extend(topics map[string][]string, domains map[string][]string) {
	for _, id := range sortedKeys(topics) {
		keywords := topics[id]
		if node, ok := t.topics[id]; ok {
			node.Keywords = append(node.Keywords, keywords...)
			node.match = append(node.match, lowercaseAll(keywords)...)
			continue
		}
		// Add only fails on empty or duplicate IDs, both excluded here.
		_ = t.Add(Topic{ID: id, Keywords: keywords})
	}
	for _, name := range sortedKeys(domains) {
		t.ExtendDomain(name, domains[name]...)
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lowercaseAll(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
