package fingerprint

import (
	"strings"
	"testing"
)

func TestNormalizeOrderIndependent(t *testing.T) {
	t.Parallel()

	a := Normalize("Summer Collection Launch")
	b := Normalize("launch collection summer")
	if a != b {
		t.Fatalf("expected equal normalizations, got %q vs %q", a, b)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Summer Collection Launch!",
		"کلکسیون تابستانی برند",
		"  mixed، Persian و English 2024  ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalizeFoldsLetterVariants(t *testing.T) {
	t.Parallel()

	// Arabic yeh/kaf vs Persian yeh/keheh spellings of the same word.
	arabic := "كلكسيون"
	persian := "کلکسیون"
	if Normalize(arabic) != Normalize(persian) {
		t.Fatalf("letter variants not folded: %q vs %q", Normalize(arabic), Normalize(persian))
	}
}

func TestNormalizeStripsInvisibles(t *testing.T) {
	t.Parallel()

	if Normalize("mode‌rn") != Normalize("modern") {
		t.Fatalf("zero-width joiner not stripped")
	}
	if Normalize("‏trend‎") != Normalize("trend") {
		t.Fatalf("directional marks not stripped")
	}
}

func TestTitleHashCollidesOnShuffledTokens(t *testing.T) {
	t.Parallel()

	h1 := TitleHash("Summer Collection Launch")
	h2 := TitleHash("launch collection summer")
	if h1 != h2 {
		t.Fatalf("shuffled titles must collide: %s vs %s", h1, h2)
	}
	if len(h1) != 64 || strings.ToLower(h1) != h1 {
		t.Fatalf("expected 64-char lowercase hex digest, got %q", h1)
	}
}

func TestTitleHashEmptyInput(t *testing.T) {
	t.Parallel()

	if TitleHash("") != TitleHash("   ") {
		t.Fatalf("empty and whitespace-only titles should hash identically")
	}
}

func TestContentHashPreservesOrder(t *testing.T) {
	t.Parallel()

	if ContentHash("alpha beta") == ContentHash("beta alpha") {
		t.Fatalf("content hash must preserve token order")
	}
	if ContentHash("Alpha  Beta") != ContentHash("alpha beta") {
		t.Fatalf("content hash should case-fold and collapse whitespace")
	}
}

func TestDomainHash(t *testing.T) {
	t.Parallel()

	a := DomainHash("https://WWW.Medopia.ir/feed/")
	b := DomainHash("https://www.medopia.ir/some/article?id=2")
	if a != b {
		t.Fatalf("same host must produce same domain hash")
	}
	if DomainHash("not a url") == "" {
		t.Fatalf("unparseable input must still hash")
	}
}
