package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacques/jacques/internal/planid"
)

// planBody caches a Plan's length bucket and significant words, purely
// in memory: filled when the Plan is created, or from its plan file the
// first time tier 3 compares against it, so cross-session similarity
// matching does not re-read every plan file from disk on each call.
type planBody struct {
	bucket int
	words  map[string]bool
}

// PlanCatalog owns a project's deduplicated Plan set and the bodies
// needed to re-run the similarity tiers cross-
// session deduplication.
type PlanCatalog struct {
	PlansDir string
	plans    []*planid.Plan
	bodies   map[string]planBody // Plan.ID -> cached body info
}

// NewPlanCatalog loads (or initializes) a project's plan catalog.
func NewPlanCatalog(plansDir string, existing []*planid.Plan) *PlanCatalog {
	return &PlanCatalog{PlansDir: plansDir, plans: existing, bodies: make(map[string]planBody)}
}

func (pc *PlanCatalog) Plans() []*planid.Plan { return pc.plans }

// CatalogPlan implements cross-session catalog
// operation for one detected plan reference, writing a new plan file
// on a genuine miss and merging into an existing Plan otherwise.
// Returns the catalog id to record onto the session's planRefs.
func (pc *PlanCatalog) CatalogPlan(title, content, sessionID string, now time.Time) (string, error) {
	contentHash := planid.ContentHash(content)
	bodyHash := planid.BodyHash(content)
	bucket := planid.LengthBucket(content)

	for _, p := range pc.plans {
		if p.ContentHash == contentHash {
			pc.mergeSession(p, sessionID, now)
			return p.ID, nil
		}
	}
	for _, p := range pc.plans {
		if p.BodyHash == bodyHash {
			pc.mergeSession(p, sessionID, now)
			return p.ID, nil
		}
	}
	bodyWords := significantWords(content)
	for _, p := range pc.plans {
		cached, ok := pc.bodies[p.ID]
		if !ok {
			data, err := os.ReadFile(filepath.Join(pc.PlansDir, p.Filename))
			if err != nil {
				continue
			}
			cached = planBody{bucket: planid.LengthBucket(string(data)), words: significantWords(string(data))}
			pc.bodies[p.ID] = cached
		}
		if cached.bucket != bucket {
			continue
		}
		if jaccard(bodyWords, cached.words) >= planid.SimilarityThreshold {
			pc.mergeSession(p, sessionID, now)
			return p.ID, nil
		}
	}

	// Miss: create a new plan file.
	id := uuid.NewString()
	slug := slugify(title)
	filename := fmt.Sprintf("%s_%s.md", now.Format("2006-01-02"), slug)
	filename = pc.collisionSafeName(filename)
	path := filepath.Join(pc.PlansDir, filename)

	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("writing plan file: %w", err)
	}

	p := &planid.Plan{
		ID:          id,
		Title:       title,
		Filename:    filename,
		Path:        path,
		ContentHash: contentHash,
		BodyHash:    bodyHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		Sessions:    map[string]struct{}{sessionID: {}},
	}
	pc.plans = append(pc.plans, p)
	pc.bodies[id] = planBody{bucket: bucket, words: bodyWords}
	return id, nil
}

func (pc *PlanCatalog) mergeSession(p *planid.Plan, sessionID string, now time.Time) {
	if p.Sessions == nil {
		p.Sessions = make(map[string]struct{})
	}
	p.Sessions[sessionID] = struct{}{}
	p.UpdatedAt = now
}

// collisionSafeName appends -v2, -v3, ... on a name collision.
func (pc *PlanCatalog) collisionSafeName(name string) string {
	used := make(map[string]bool)
	for _, p := range pc.plans {
		used[p.Filename] = true
	}
	if !used[name] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for v := 2; ; v++ {
		candidate := fmt.Sprintf("%s-v%d%s", base, v, ext)
		if !used[candidate] {
			return candidate
		}
	}
}

func slugify(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 3 {
			out[w] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
