package catalog

import "strings"

// techKeywords is a fixed rule set of language/framework/cloud/db/
// build-tool/test-framework names, matched case-insensitively against
// entry text and file paths.
var techKeywords = []string{
	"typescript", "javascript", "python", "golang", "go", "rust", "java",
	"kotlin", "swift", "ruby", "php", "c++", "c#",
	"react", "vue", "angular", "svelte", "next.js", "nextjs", "django",
	"flask", "fastapi", "rails", "spring", "express",
	"aws", "gcp", "azure", "cloudflare", "vercel",
	"postgres", "postgresql", "mysql", "sqlite", "mongodb", "redis",
	"dynamodb", "elasticsearch",
	"docker", "kubernetes", "terraform", "webpack", "vite", "bazel",
	"jest", "pytest", "vitest", "testify", "junit", "rspec",
}

// DeriveTechnologies matches the fixed keyword set against entry
// text and file paths, collapsing duplicates.
func DeriveTechnologies(texts []string, filePaths []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(kw string) {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}

	haystacks := make([]string, 0, len(texts)+len(filePaths))
	for _, t := range texts {
		haystacks = append(haystacks, strings.ToLower(t))
	}
	for _, p := range filePaths {
		haystacks = append(haystacks, strings.ToLower(p))
	}

	for _, kw := range techKeywords {
		for _, h := range haystacks {
			if strings.Contains(h, kw) {
				add(kw)
				break
			}
		}
	}
	return out
}
