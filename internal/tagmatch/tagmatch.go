// Package tagmatch implements the interest taxonomy matching engine.
package tagmatch

import (
	"strings"

	"content_bot/internal/model"
)

// Match returns the tags from the taxonomy that the content matches, in
// taxonomy order with each tag appearing at most once. Empty content or an
// empty taxonomy yields no matches; that is a deliberate no-match, not an
// error.
//
// A tag matches when any enabled rule succeeds, checked in order:
// exact (the tag equals a whitespace-delimited token), partial (the tag is a
// substring), synonym (any synonym of the tag is a substring). Checks
// short-circuit per tag once one succeeds.
func Match(content string, tax model.Taxonomy) []string {
	if content == "" || len(tax.Tags) == 0 {
		return nil
	}

	foldedContent := fold(content, tax.CaseSensitive)
	tokens := strings.Fields(foldedContent)

	var matched []string
	for _, tag := range tax.Tags {
		if matchesTag(tag, foldedContent, tokens, tax) {
			matched = appendUnique(matched, tag)
		}
	}
	return matched
}

func matchesTag(tag, content string, tokens []string, tax model.Taxonomy) bool {
	folded := fold(tag, tax.CaseSensitive)

	if tax.ExactMatch {
		for _, tok := range tokens {
			if tok == folded {
				return true
			}
		}
	}

	if tax.PartialMatch && strings.Contains(content, folded) {
		return true
	}

	if tax.IncludeSynonyms {
		for _, syn := range tax.Synonyms[tag] {
			if strings.Contains(content, fold(syn, tax.CaseSensitive)) {
				return true
			}
		}
	}
	return false
}

func fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
