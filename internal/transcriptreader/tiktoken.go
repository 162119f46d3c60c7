package transcriptreader

import "github.com/pkoukk/tiktoken-go"

// newCl100kEncoder loads the cl100k_base encoding (GPT-4/Claude-era
// tokenizer family) tiktoken-go ships ranks for. GetEncoding fetches
// its rank file over the network on first use and caches it in-
// process; returning nil here (rather than panicking) is what lets
// EstimateOutputTokens fall back to the chars/4 heuristic when that
// fetch fails.
func newCl100kEncoder() bpeEncoder {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}
