package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	tagRegex    = regexp.MustCompile(`<[^>]*>`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {},
	"and": {}, "or": {}, "of": {}, "on": {}, "at": {}, "by": {},
	"with": {}, "from": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"that": {}, "this": {}, "it": {}, "as": {}, "be": {}, "has": {},
	"have": {}, "will": {}, "its": {}, "after": {}, "over": {}, "says": {},
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips markup, HTML entities, URLs and punctuation and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = tagRegex.ReplaceAllString(decoded, " ")
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// NormalizeKeywords trims search terms, drops empty ones and removes
// case-insensitive repeats while keeping the first spelling and order.
func NormalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// OrQuery joins keywords into a news API query matching any of them.
func OrQuery(keywords []string) string {
	return strings.Join(keywords, " OR ")
}

// URLKey hashes an article url into a stable document id.
func URLKey(url string) string {
	return hashKey(strings.TrimSpace(url))
}

// EmailKey hashes a case-folded email into a stable document id.
func EmailKey(email string) string {
	return hashKey(strings.ToLower(strings.TrimSpace(email)))
}

func hashKey(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TitleFromText creates a title from the first sentence or first N words of text.
// Returns empty string if text is empty.
func TitleFromText(text string, maxWords int) string {
	text = CleanSentences(text)
	if text == "" {
		return ""
	}

	sentenceEnd := strings.IndexAny(text, ".!?")
	firstSentence := text
	if sentenceEnd > 0 {
		firstSentence = strings.TrimSpace(text[:sentenceEnd])
	}

	words := strings.Fields(firstSentence)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}

	return strings.Join(words, " ")
}

// CleanSentences removes markup and URLs but keeps sentence punctuation.
func CleanSentences(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = tagRegex.ReplaceAllString(text, " ")
	text = RemoveURLs(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
