// Package caption renders the magazine-style HTML caption posted under
// each album. The rendered string never exceeds the channel's hard
// per-message ceiling: the description absorbs overflow first, the title
// only as a last resort, and the trailing hashtag block is never touched.
package caption

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const divider = "─────────────"

// Options configures the rendered caption.
type Options struct {
	Channel  string // e.g. "@irfashionnews"
	Hashtags string // fixed trailing block, always the last line
	MaxLen   int    // hard ceiling in runes, margin already reserved
}

// Build renders the caption. Title and description must already be
// plain text (see StripHTML); both are escaped for Telegram HTML mode.
func Build(title, description, link string, opts Options) string {
	safeTitle := escape(strings.TrimSpace(title))
	safeDesc := escape(strings.TrimSpace(description))

	render := func(t, d string) string {
		parts := []string{
			fmt.Sprintf("💠 <b>%s</b>", t),
			divider,
		}
		if d != "" {
			parts = append(parts, d)
		}
		parts = append(parts,
			fmt.Sprintf(`🔗 <a href="%s">ادامه مطلب</a> | 🆔 %s`, link, opts.Channel),
			opts.Hashtags,
		)
		return strings.Join(parts, "\n\n")
	}

	caption := render(safeTitle, safeDesc)
	if runeLen(caption) <= opts.MaxLen {
		return caption
	}

	// Shrink the description to whatever the fixed parts leave over.
	overhead := runeLen(render(safeTitle, ""))
	budget := opts.MaxLen - overhead - 2 // the joiner around the description
	if budget > 1 {
		if trimmed := Truncate(safeDesc, budget); trimmed != "" {
			caption = render(safeTitle, trimmed)
			if runeLen(caption) <= opts.MaxLen {
				return caption
			}
		}
	}

	// Description gone and still over: the title itself must shrink.
	caption = render(safeTitle, "")
	if over := runeLen(caption) - opts.MaxLen; over > 0 {
		safeTitle = Truncate(safeTitle, runeLen(safeTitle)-over)
		caption = render(safeTitle, "")
	}
	return caption
}

// StripHTML flattens markup to plain text, dropping script, style and
// iframe subtrees, and collapses all whitespace runs to single spaces.
// Malformed input degrades to best-effort text, never an error.
func StripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc.Find("script, style, iframe").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate cuts text to at most limit runes, preferring the last word
// boundary when it is not too far back, and appends an ellipsis.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 1 {
		return ""
	}
	cut := runes[:limit-1]
	boundary := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			boundary = i
			break
		}
	}
	if boundary > (limit-1)*4/5 {
		cut = cut[:boundary]
	}
	return string(cut) + "…"
}

// escape covers the three characters that break Telegram HTML parse mode.
// html.EscapeString is deliberately not used: Telegram rejects entities
// like &#39; that it produces for quotes.
func escape(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func runeLen(s string) int {
	return len([]rune(s))
}
