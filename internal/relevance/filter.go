// Package relevance decides whether an entry belongs on the channel.
// The filter is a deterministic cascade over configured keyword lists;
// no scoring participates in the accept/reject decision.
package relevance

import (
	"net/url"
	"strings"
)

// Filter holds the immutable keyword configuration.
type Filter struct {
	allow []string
	block []string
}

// NewFilter lowercases both lists once at construction.
func NewFilter(allow, block []string) *Filter {
	return &Filter{
		allow: lowerAll(allow),
		block: lowerAll(block),
	}
}

// IsRelevant applies the cascade in strict order:
//
//  1. any block term present -> reject (hard veto, beats everything)
//  2. any allow term present -> accept
//  3. any token (len >= 4) of the feed's display label present -> accept;
//     a brand's own feed rarely repeats generic category words
//  4. first label of the feed's domain present -> accept
//  5. reject
func (f *Filter) IsRelevant(title, description, feedURL, feedLabel string) bool {
	combined := strings.ToLower(title + " " + description)

	for _, kw := range f.block {
		if strings.Contains(combined, kw) {
			return false
		}
	}

	for _, kw := range f.allow {
		if strings.Contains(combined, kw) {
			return true
		}
	}

	for _, token := range strings.Fields(strings.ToLower(feedLabel)) {
		if len([]rune(token)) >= 4 && strings.Contains(combined, token) {
			return true
		}
	}

	if label := firstDomainLabel(feedURL); label != "" && strings.Contains(combined, label) {
		return true
	}

	return false
}

// TrendScore is a coarse 0-100 heat estimate written with each record for
// analytics. It never influences the accept/reject decision.
func (f *Filter) TrendScore(title, description string, categories []string) int {
	combined := strings.ToLower(title + " " + description)

	score := 0
	for _, kw := range f.allow {
		if strings.Contains(combined, kw) {
			score += 10
		}
	}
	for _, cat := range categories {
		lc := strings.ToLower(cat)
		for _, kw := range f.allow {
			if strings.Contains(lc, kw) {
				score += 5
				break
			}
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

func firstDomainLabel(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if host == "" {
		return ""
	}
	label, _, _ := strings.Cut(host, ".")
	if len([]rune(label)) < 3 {
		return ""
	}
	return label
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
