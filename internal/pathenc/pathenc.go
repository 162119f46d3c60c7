// Package pathenc encodes and decodes project paths the way Claude
// Code lays out its transcript tree: an absolute path becomes a
// directory name by replacing "/" with "-", keeping a leading dash.
package pathenc

import (
	"os"
	"strings"
)

// Encode converts an absolute project path to its directory-name form
// under <transcript-root>/projects/. The leading separator becomes a
// leading dash: "/Users/alice/code/app" -> "-Users-alice-code-app".
func Encode(absPath string) string {
	if absPath == "" {
		return ""
	}
	return strings.ReplaceAll(absPath, "/", "-")
}

// AmbiguousDecode reports whether encoded has at least one dash
// beyond its leading one, meaning the naive decode ("-Users-alice-my-app"
// -> /Users/alice/my/app) is only one of several directories that
// could have produced it — a segment like "my-app" dash-joins the
// same way a two-level "my/app" path does. The encoding is lossy by
// construction, so this can't be resolved from the string alone;
// callers must check Candidates against what's actually on disk or
// against the sessions index.
func AmbiguousDecode(encoded string) bool {
	trimmed := strings.TrimPrefix(encoded, "-")
	return strings.Count(trimmed, "-") > 0
}

// decodeNaive performs the simple reverse of Encode with no ambiguity
// resolution: every dash becomes a separator.
func decodeNaive(encoded string) string {
	if encoded == "" {
		return ""
	}
	return strings.ReplaceAll(encoded, "-", "/")
}

// Decode is the naive reverse of Encode, exported for callers that
// accept an unresolved-but-usable project path (e.g. as a display
// label or a starting point before checking AmbiguousDecode).
func Decode(encoded string) string {
	return decodeNaive(encoded)
}

// Resolve picks the real project path for an encoded directory name:
// the naive decode if unambiguous, or the first Candidates entry that
// exists on disk otherwise. Falls back to the naive decode if no
// candidate exists (the project directory may have been removed).
func Resolve(encoded string) string {
	naive := decodeNaive(encoded)
	if !AmbiguousDecode(encoded) {
		return naive
	}
	for _, cand := range Candidates(encoded) {
		if info, err := os.Stat(cand); err == nil && info.IsDir() {
			return cand
		}
	}
	return naive
}

// Candidates returns every absolute path that dash-joining encoded
// could plausibly have come from, by treating each dash as either a
// separator or a literal character. Used only when AmbiguousDecode
// reports true and a sessions-index lookup is needed to pick the real
// one; the caller is expected to stat or index-match each candidate.
func Candidates(encoded string) []string {
	if encoded == "" {
		return nil
	}
	trimmed := strings.TrimPrefix(encoded, "-")
	segments := strings.Split(trimmed, "-")
	if len(segments) == 0 {
		return []string{decodeNaive(encoded)}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	// Every way of joining adjacent segments back together with a
	// literal dash instead of a separator, from zero joins (the
	// naive decode) up to joining everything into one segment.
	var walk func(start int, acc string)
	walk = func(start int, acc string) {
		if start == len(segments) {
			add(acc)
			return
		}
		for end := start; end < len(segments); end++ {
			piece := strings.Join(segments[start:end+1], "-")
			next := acc + "/" + piece
			walk(end+1, next)
		}
	}
	walk(0, "")
	return out
}
