// Package fingerprint computes the durable identity hashes used for
// duplicate suppression. Titles are normalized so that re-ordered,
// re-cased or typographically-variant rewrites of the same headline
// collide to the same hash.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// Arabic letter variants folded to their canonical Persian form. Feeds mix
// Arabic and Persian keyboards freely; both yeh and kaf shapes must hash
// identically or the same headline dedups as two stories.
var letterFolds = map[rune]rune{
	'ي': 'ی', // arabic yeh -> farsi yeh
	'ى': 'ی', // alef maksura -> farsi yeh
	'ك': 'ک', // arabic kaf -> keheh
	'أ': 'ا', // alef with hamza above -> alef
	'إ': 'ا', // alef with hamza below -> alef
	'آ': 'ا', // alef with madda -> alef
	'ؤ': 'و', // waw with hamza -> waw
	'ئ': 'ی', // yeh with hamza -> farsi yeh
	'ة': 'ه', // teh marbuta -> heh
}

// lightFolds is the subset applied for the content hash: only the two
// letter shapes that vary between keyboards, nothing else.
var lightFolds = map[rune]rune{
	'ي': 'ی',
	'ك': 'ک',
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff', // zero-width
		'\u200e', '\u200f', // directional marks
		'\u202a', '\u202b', '\u202c', '\u202d', '\u202e',
		'\u2066', '\u2067', '\u2068', '\u2069':
		return true
	}
	return false
}

func isDiacritic(r rune) bool {
	return (r >= 'ً' && r <= 'ٟ') || r == 'ٰ'
}

// Normalize lowercases, strips invisible and diacritic marks, folds letter
// variants, drops punctuation, then sorts the remaining tokens. The result
// is deterministic and order-independent: Normalize("A B") == Normalize("B A").
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if isInvisible(r) || isDiacritic(r) {
			continue
		}
		if folded, ok := letterFolds[r]; ok {
			r = folded
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TitleHash is the sole authoritative dedup key. It hashes the normalized
// title only: descriptions vary across fetches of the same article (CMS
// re-renders, editor edits), so they never participate.
func TitleHash(title string) string {
	return digest(Normalize(title))
}

// ContentHash hashes a lighter, order-preserving normalization. Written for
// analytics and secondary matching; never gates the dedup decision.
func ContentHash(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if isInvisible(r) {
			continue
		}
		if folded, ok := lightFolds[r]; ok {
			r = folded
		}
		b.WriteRune(r)
	}
	return digest(strings.Join(strings.Fields(b.String()), " "))
}

// DomainHash hashes the lowercased network host of a URL, for grouping
// records by source. Unparseable input hashes as-is.
func DomainHash(rawURL string) string {
	host := strings.ToLower(strings.TrimSpace(rawURL))
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return digest(host)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
