package pipeline

// chunker implements the Generation stage's de-risking chunking rule: LLM
// fragments are buffered and flushed to resp_q when (a) >=K complete
// whitespace-separated words have been seen, (b) the buffer contains a
// sentence terminator, or (c) the buffer reaches a safety ceiling.
//
// A word boundary is any transition from a word character (alphanumeric,
// apostrophe, or any non-ASCII byte) to whitespace or ,;:.!? . Flushing on
// a sentence terminator resets the word counter and the inside-a-word
// state; flushing on the size ceiling mid-word preserves inside-a-word so
// the next chunk continues counting the same word.
type chunker struct {
	k       int
	ceiling int

	buf        []byte
	wordCount  int
	insideWord bool
}

func newChunker(k, ceiling int) *chunker {
	return &chunker{k: k, ceiling: ceiling}
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '\'':
		return true
	case b >= 0x80:
		return true
	default:
		return false
	}
}

func isBoundaryByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', ',', ';', ':', '.', '!', '?':
		return true
	default:
		return false
	}
}

func isSentenceTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// Feed processes one LLM fragment, invoking flush for each chunk that
// crosses a flush boundary. flush is called with the accumulated text
// since the previous flush (or since Feed was first called).
func (c *chunker) Feed(fragment string, flush func(text string)) {
	for i := 0; i < len(fragment); i++ {
		b := fragment[i]

		if c.insideWord && isBoundaryByte(b) {
			c.wordCount++
			c.insideWord = false
		} else if isWordByte(b) {
			c.insideWord = true
		}

		c.buf = append(c.buf, b)

		switch {
		case isSentenceTerminator(b):
			flush(string(c.buf))
			c.buf = c.buf[:0]
			c.wordCount = 0
		case c.wordCount >= c.k:
			flush(string(c.buf))
			c.buf = c.buf[:0]
			c.wordCount = 0
		case len(c.buf) >= c.ceiling:
			flush(string(c.buf))
			c.buf = c.buf[:0]
			c.wordCount = 0
		}
	}
}

// Reset discards any buffered, not-yet-flushed fragment — used when an
// INTERRUPT abandons the current prompt's generation.
func (c *chunker) Reset() {
	c.buf = c.buf[:0]
	c.wordCount = 0
	c.insideWord = false
}
