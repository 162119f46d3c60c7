package searchindex

// stopWords is the frozen stop-word set. Per the decision recorded in
// SPEC_FULL.md, the smaller, more permissive variant is authoritative: it
// preserves technically meaningful short tokens a larger list would
// discard.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"and": true, "or": true, "but": true, "nor": true, "so": true,
	"for": true, "yet": true,
	"i": true, "me": true, "my": true, "we": true, "our": true,
	"you": true, "your": true, "he": true, "him": true, "his": true,
	"she": true, "her": true, "it": true, "its": true,
	"they": true, "them": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,
	"am": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "having": true,
	"do": true, "does": true, "did": true, "doing": true,
	"will": true, "would": true, "shall": true, "should": true,
	"can": true, "could": true, "may": true, "might": true, "must": true,
	"in": true, "on": true, "at": true, "by": true, "to": true,
	"of": true, "with": true, "from": true, "up": true, "down": true,
	"about": true, "into": true, "over": true, "after": true,
	"not": true, "no": true, "yes": true,
	"as": true, "if": true, "then": true, "than": true, "when": true,
	"just": true, "also": true, "very": true, "really": true,
	"get": true, "got": true, "make": true, "made": true,
}

func isStopWord(tok string) bool { return stopWords[tok] }
