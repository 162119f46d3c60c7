package analytics

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jacques/jacques/internal/catalog"
	"github.com/jacques/jacques/internal/timeutil"
)

// RecordManifest upserts one session manifest's derived rows into the
// cache. Safe to call repeatedly; re-extraction of an unchanged
// manifest produces identical rows.
func (db *DB) RecordManifest(m *catalog.SessionManifest, manifestID string) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO manifests (
				id, session_id, project_path, title, started_at, ended_at,
				message_count, tool_call_count, has_subagents, had_auto_compact,
				input_tokens, output_tokens, cache_read_tokens, mode, plan_count
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, started_at=excluded.started_at,
				ended_at=excluded.ended_at, message_count=excluded.message_count,
				tool_call_count=excluded.tool_call_count, has_subagents=excluded.has_subagents,
				had_auto_compact=excluded.had_auto_compact, input_tokens=excluded.input_tokens,
				output_tokens=excluded.output_tokens, cache_read_tokens=excluded.cache_read_tokens,
				mode=excluded.mode, plan_count=excluded.plan_count
		`,
			manifestID, m.SessionID, m.ProjectPath, m.Title,
			timeutil.Format(m.StartedAt), timeutil.Format(m.EndedAt),
			m.MessageCount, m.ToolCallCount, boolToInt(m.HasSubagents), boolToInt(m.HadAutoCompact),
			m.Tokens.Input, m.Tokens.Output, m.Tokens.CacheRead, string(m.Mode), m.PlanCount,
		)
		if err != nil {
			return fmt.Errorf("upserting manifest row: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM technologies WHERE manifest_id = ?`, manifestID); err != nil {
			return err
		}
		for _, tech := range m.Technologies {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO technologies (manifest_id, name) VALUES (?,?)`, manifestID, tech); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`DELETE FROM tools_used WHERE manifest_id = ?`, manifestID); err != nil {
			return err
		}
		for _, tool := range m.ToolsUsed {
			if _, err := tx.Exec(`
				INSERT INTO tools_used (manifest_id, name, count) VALUES (?,?,1)
				ON CONFLICT(manifest_id, name) DO UPDATE SET count = count + 1
			`, manifestID, tool); err != nil {
				return err
			}
		}

		content := strings.Join(m.ContextSnippets, "\n")
		if _, err := tx.Exec(`
			INSERT INTO conversation_text (manifest_id, content) VALUES (?,?)
			ON CONFLICT(manifest_id) DO UPDATE SET content=excluded.content
		`, manifestID, content); err != nil {
			return err
		}
		return nil
	})
}

// Remove deletes a manifest's rows (and, via FK cascade, its derived
// rows) from the cache.
func (db *DB) Remove(manifestID string) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM manifests WHERE id = ?`, manifestID)
		return err
	})
}

// Rebuild truncates the cache and re-records every manifest supplied
// by the caller (typically every SessionManifest on disk across all
// projects) —, the cache is a pure function of the
// manifests and can always be reconstructed from them.
func (db *DB) Rebuild(manifests map[string]*catalog.SessionManifest) error {
	if err := db.Update(func(tx *sql.Tx) error {
		for _, table := range []string{"conversation_text", "tools_used", "technologies", "manifests"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("truncating %s: %w", table, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	for id, m := range manifests {
		if err := db.RecordManifest(m, id); err != nil {
			return fmt.Errorf("rebuilding manifest %s: %w", id, err)
		}
	}
	return nil
}

// Summary is an aggregate count/token view over all cached manifests.
type Summary struct {
	SessionCount int
	TotalInput   int
	TotalOutput  int
	TotalTools   int
}

// Summary computes totals across every cached manifest.
func (db *DB) Summary() (Summary, error) {
	var s Summary
	row := db.getReader().QueryRow(`
		SELECT count(*), coalesce(sum(input_tokens),0), coalesce(sum(output_tokens),0), coalesce(sum(tool_call_count),0)
		FROM manifests
	`)
	if err := row.Scan(&s.SessionCount, &s.TotalInput, &s.TotalOutput, &s.TotalTools); err != nil {
		return Summary{}, fmt.Errorf("querying summary: %w", err)
	}
	return s, nil
}

// ActivityPoint is one day's session count, for an activity histogram.
type ActivityPoint struct {
	Date  string
	Count int
}

// Activity buckets sessions by calendar day of their startedAt.
func (db *DB) Activity(since time.Time) ([]ActivityPoint, error) {
	rows, err := db.getReader().Query(`
		SELECT substr(started_at, 1, 10) AS day, count(*)
		FROM manifests
		WHERE started_at >= ?
		GROUP BY day
		ORDER BY day
	`, timeutil.Format(since))
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityPoint
	for rows.Next() {
		var p ActivityPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ToolUsageCount is one tool name's aggregate usage count.
type ToolUsageCount struct {
	Name  string
	Count int
}

// ToolUsage returns the most-used tools across all cached manifests.
func (db *DB) ToolUsage(limit int) ([]ToolUsageCount, error) {
	rows, err := db.getReader().Query(`
		SELECT name, sum(count) AS total
		FROM tools_used
		GROUP BY name
		ORDER BY total DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tool usage: %w", err)
	}
	defer rows.Close()

	var out []ToolUsageCount
	for rows.Next() {
		var t ToolUsageCount
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopSession is one manifest's ranking row.
type TopSession struct {
	ManifestID string
	SessionID  string
	Title      string
	Tokens     int
}

// TopSessions returns the manifests with the highest total token
// usage (input+output), for a "heaviest sessions" view.
func (db *DB) TopSessions(limit int) ([]TopSession, error) {
	rows, err := db.getReader().Query(`
		SELECT id, session_id, title, (input_tokens + output_tokens) AS total
		FROM manifests
		ORDER BY total DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top sessions: %w", err)
	}
	defer rows.Close()

	var out []TopSession
	for rows.Next() {
		var t TopSession
		if err := rows.Scan(&t.ManifestID, &t.SessionID, &t.Title, &t.Tokens); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SearchConversations runs a full-text search over cached conversation
// snippets, falling back to a LIKE scan if FTS5 isn't available.
func (db *DB) SearchConversations(query string, limit int) ([]string, error) {
	rows, err := db.getReader().Query(`
		SELECT m.id FROM conversation_fts f
		JOIN conversation_text ct ON ct.rowid = f.rowid
		JOIN manifests m ON m.id = ct.manifest_id
		WHERE conversation_fts MATCH ?
		LIMIT ?
	`, query, limit)
	if err != nil {
		return db.searchConversationsFallback(query, limit)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) searchConversationsFallback(query string, limit int) ([]string, error) {
	rows, err := db.getReader().Query(`
		SELECT manifest_id FROM conversation_text
		WHERE content LIKE '%' || ? || '%'
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
