package transcriptreader

import "sync"

var (
	tokenizerOnce sync.Once
	tokenizer     bpeEncoder // nil if cl100k_base couldn't be loaded
)

// bpeEncoder is the subset of tiktoken.Encoding this package needs, so
// tests can substitute a fake without pulling in the real tokenizer.
type bpeEncoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// EstimateOutputTokens approximates token count for text the raw
// record's own output_tokens field under-reports. It tries a real
// cl100k_base BPE encode first; if that tokenizer couldn't be loaded
// (no network access to fetch its rank file, e.g. in a sandboxed CI
// run), it falls back to ceil(chars/4).
func EstimateOutputTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadTokenizer(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := len([]rune(text))
	return (n + 3) / 4
}

func loadTokenizer() bpeEncoder {
	tokenizerOnce.Do(func() {
		tokenizer = newCl100kEncoder()
	})
	return tokenizer
}
