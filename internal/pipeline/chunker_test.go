package pipeline

import "testing"

func TestChunkerFlushesOnWordCount(t *testing.T) {
	c := newChunker(3, 96)
	var flushes []string
	c.Feed("one two three four five ", func(text string) { flushes = append(flushes, text) })

	if len(flushes) == 0 {
		t.Fatal("expected at least one flush at K=3 words")
	}
	if flushes[0] != "one two three " {
		t.Fatalf("first flush: got %q", flushes[0])
	}
}

func TestChunkerFlushesOnSentenceTerminator(t *testing.T) {
	c := newChunker(10, 96)
	var flushes []string
	c.Feed("Hi. ", func(text string) { flushes = append(flushes, text) })

	if len(flushes) != 1 || flushes[0] != "Hi." {
		t.Fatalf("expected single flush on terminator, got %v", flushes)
	}
}

func TestChunkerFlushesOnSizeCeiling(t *testing.T) {
	c := newChunker(1000, 10) // effectively unreachable word count, tiny ceiling
	var flushes []string
	c.Feed("abcdefghijklmnop", func(text string) { flushes = append(flushes, text) })

	if len(flushes) == 0 {
		t.Fatal("expected a ceiling-triggered flush")
	}
	if len(flushes[0]) != 10 {
		t.Fatalf("ceiling flush length: got %d want 10", len(flushes[0]))
	}
}

func TestChunkerCeilingFlushPreservesInsideWordState(t *testing.T) {
	// A ceiling flush lands mid-word ("abcde" hits the 5-byte ceiling
	// before any boundary is seen). Because "inside a word" carries over
	// across a ceiling flush (only a terminator flush or an explicit
	// Reset clears it), the very next boundary byte (the space) is
	// recognized as completing that same word and increments the word
	// counter immediately — with k=1 that triggers a second flush right
	// away, on just the boundary byte itself.
	c := newChunker(1, 5)
	var flushes []string
	c.Feed("abcde f", func(text string) { flushes = append(flushes, text) })

	if len(flushes) != 2 || flushes[0] != "abcde" || flushes[1] != " " {
		t.Fatalf("got flushes %v", flushes)
	}
}

func TestChunkerSentenceTerminatorResetsWordCount(t *testing.T) {
	c := newChunker(3, 96)
	var flushes []string
	c.Feed("Hi. one two ", func(text string) { flushes = append(flushes, text) })

	// "Hi." flushes on the terminator (word count reset to 0). "one two "
	// only reaches 2 words, below K=3, so it must not have flushed yet.
	if len(flushes) != 1 {
		t.Fatalf("expected exactly one flush so far, got %v", flushes)
	}
}

func TestChunkerResetDiscardsBuffer(t *testing.T) {
	c := newChunker(3, 96)
	c.Feed("partial wo", func(string) {})
	c.Reset()

	var flushes []string
	c.Feed("rd two three ", func(text string) { flushes = append(flushes, text) })
	if len(flushes) != 1 || flushes[0] != "rd two three " {
		t.Fatalf("expected reset to discard prior buffer, got %v", flushes)
	}
}

func TestIsWordByte(t *testing.T) {
	cases := map[byte]bool{
		'a': true, 'Z': true, '5': true, '\'': true,
		' ': false, ',': false, '.': false, 0x80: true,
	}
	for b, want := range cases {
		if got := isWordByte(b); got != want {
			t.Fatalf("isWordByte(%q): got %v want %v", b, got, want)
		}
	}
}

func TestIsSentenceTerminator(t *testing.T) {
	for _, b := range []byte{'.', '!', '?'} {
		if !isSentenceTerminator(b) {
			t.Fatalf("%q should be a sentence terminator", b)
		}
	}
	if isSentenceTerminator(',') {
		t.Fatal("',' must not be a sentence terminator")
	}
}
