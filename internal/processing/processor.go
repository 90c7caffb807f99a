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

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	tagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "de": {}, "del": {},
	"en": {}, "y": {}, "que": {}, "por": {}, "para": {}, "con": {}, "sus": {}, "como": {},
	"más": {}, "pero": {}, "sobre": {}, "entre": {}, "desde": {}, "este": {}, "esta": {},
	"the": {}, "and": {}, "for": {}, "with": {},
}

// CleanText strips HTML tags, decodes entities and squeezes whitespace.
// The result is safe to show as a title or summary.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	out := tagRegex.ReplaceAllString(input, " ")
	out = html.UnescapeString(out)
	out = strings.ReplaceAll(out, " ", " ")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

// RuneLen is the length of s in characters rather than bytes.
func RuneLen(s string) int {
	return len([]rune(s))
}

// TitleKey is the dedupe key used across sources: the first 50 characters
// of the cleaned title, lowercased.
func TitleKey(title string) string {
	return strings.ToLower(Truncate(CleanText(title), 50))
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(keywordText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if RuneLen(token) < minLen {
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

// BuildDocumentID hashes the most stable fields of an item so that the same
// story scraped in two batches maps to one archive document.
func BuildDocumentID(title, url, date string) string {
	s := sha1.Sum([]byte(strings.ToLower(CleanText(title)) + "|" + strings.TrimSpace(url) + "|" + date))
	return hex.EncodeToString(s[:])
}

func keywordText(input string) string {
	out := CleanText(input)
	out = RemoveURLs(out)
	out = punctuation.ReplaceAllString(out, " ")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
