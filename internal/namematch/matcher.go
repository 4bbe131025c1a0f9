// Package namematch normalizes and compares person names. Every phase that
// associates scraped data with a faculty record goes through it.
package namematch

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorifics lists titles and suffixes stripped during normalization.
var honorifics = []string{
	"dr", "prof", "professor", "mr", "mrs", "ms",
	"phd", "md", "jr", "sr", "iii", "ii", "iv",
}

var (
	honorificRes []*regexp.Regexp
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	deaccent     = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

func init() {
	for _, h := range honorifics {
		honorificRes = append(honorificRes, regexp.MustCompile(`\b`+h+`\.?\b`))
	}
}

// Normalize lowercases a name, strips honorifics, diacritics, and all
// punctuation except hyphens, and collapses whitespace.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(deaccent, name); err == nil {
		name = folded
	}
	for _, re := range honorificRes {
		name = re.ReplaceAllString(name, "")
	}
	name = punctRe.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

// Parts splits a normalized name into first, middle, and last. A single
// token serves as both first and last name.
func Parts(name string) (first, middle, last string) {
	fields := strings.Fields(Normalize(name))
	switch len(fields) {
	case 0:
		return "", "", ""
	case 1:
		return fields[0], "", fields[0]
	case 2:
		return fields[0], "", fields[1]
	default:
		return fields[0], strings.Join(fields[1:len(fields)-1], " "), fields[len(fields)-1]
	}
}

// Variations returns a deterministic, deduplicated set of name forms used
// as exact-match keys into directory caches.
func Variations(name string) []string {
	full := Normalize(name)
	first, middle, last := Parts(name)

	candidates := []string{
		full,
		first + " " + last,
		last + " " + first,
		last,
		first,
	}
	if first != "" {
		initial := first[:1]
		candidates = append(candidates, initial+" "+last, initial+last)
	}
	if middle != "" {
		midInit := middle[:1]
		candidates = append(candidates,
			first+" "+middle+" "+last,
			first+" "+midInit+" "+last,
		)
		if first != "" {
			candidates = append(candidates, first[:1]+" "+midInit+" "+last)
		}
	}
	if idx := strings.Index(last, "-"); idx > 0 {
		candidates = append(candidates, last[:idx], last[strings.LastIndex(last, "-")+1:])
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Similarity scores two names in [0,1]: 1.0 for equal normalized forms,
// 0.9 when one contains the other, otherwise a sequence-similarity ratio.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1.0
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.9
	}
	return ratio(na, nb)
}

// ratio is the classic sequence-matcher similarity: twice the total length
// of matching blocks over the combined length.
func ratio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2.0 * float64(matchingChars(a, b)) / float64(len(a)+len(b))
}

// matchingChars sums the longest common block and recurses on both sides,
// mirroring difflib's get_matching_blocks behavior.
func matchingChars(a, b string) int {
	ai, bi, size := longestBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestBlock(a, b string) (ai, bi, size int) {
	// j2len[j] holds the length of the common block ending at a[i], b[j].
	j2len := make(map[int]int)
	for i := 0; i < len(a); i++ {
		next := make(map[int]int)
		for j := 0; j < len(b); j++ {
			if a[i] == b[j] {
				k := j2len[j-1] + 1
				next[j] = k
				if k > size {
					ai, bi, size = i-k+1, j-k+1, k
				}
			}
		}
		j2len = next
	}
	return ai, bi, size
}

// localPatterns builds the fixed first/last concatenation patterns checked
// against an email local part. Order matters: only the first hit scores.
func localPatterns(first, last string) []string {
	var p []string
	if first != "" {
		fi := first[:1]
		p = append(p, fi+last, fi+"_"+last, fi+"."+last, last+fi)
	}
	return append(p,
		first+"."+last,
		first+"_"+last,
		first+last,
		last+"."+first,
		last+"_"+first,
	)
}

// EmailNameScore scores how well an email's local part matches a person's
// name, capped at 1.0.
func EmailNameScore(email, name string) float64 {
	if email == "" || name == "" {
		return 0
	}
	local := strings.ToLower(email)
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	first, _, last := Parts(name)

	score := 0.0
	if len(last) > 2 && strings.Contains(local, last) {
		score += 0.5
	}
	if len(first) > 2 && strings.Contains(local, first) {
		score += 0.3
	}
	for _, pattern := range localPatterns(first, last) {
		if pattern != "" && strings.Contains(local, pattern) {
			score += 0.2
			break
		}
	}
	if Similarity(local, first+last) > 0.7 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
