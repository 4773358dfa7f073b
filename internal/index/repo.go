package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/folio/internal/taxonomy"
)

// PostRow represents a row in the posts table.
type PostRow struct {
	Path        string
	URL         string
	Title       string
	Description string
	Checksum    string
	DateMs      int64
	Tags        []string
	Categories  []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// TermCount is the number of indexed posts carrying one taxonomy label.
type TermCount struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// UpsertPost inserts or replaces a post, its FTS entry, and its taxonomy terms
// within a transaction.
func (db *DB) UpsertPost(p PostRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(p.Tags))
	catsJSON, _ := json.Marshal(nonNil(p.Categories))

	_, err = tx.Exec(`
		INSERT INTO posts (path, url, title, description, checksum, date_ms, tags, categories, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			url         = excluded.url,
			title       = excluded.title,
			description = excluded.description,
			checksum    = excluded.checksum,
			date_ms     = excluded.date_ms,
			tags        = excluded.tags,
			categories  = excluded.categories,
			body        = excluded.body
	`, p.Path, p.URL, p.Title, p.Description, p.Checksum, p.DateMs, string(tagsJSON), string(catsJSON), body)
	if err != nil {
		return fmt.Errorf("index: upsert post: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	ftsTerms := make([]string, 0, len(p.Tags)+len(p.Categories))
	ftsTerms = append(append(ftsTerms, p.Tags...), p.Categories...)
	if err := ftsUpsert(tx, p.Path, p.Title, body, ftsTerms); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM post_terms WHERE path = ?`, p.Path); err != nil {
		return fmt.Errorf("index: clear terms: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO post_terms (path, field, label, slug) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare term insert: %w", err)
	}
	defer stmt.Close()
	terms := map[taxonomy.Field][]string{
		taxonomy.Tags:       p.Tags,
		taxonomy.Categories: p.Categories,
	}
	for field, labels := range terms {
		for _, label := range labels {
			if _, err := stmt.Exec(p.Path, string(field), label, taxonomy.Slug(label)); err != nil {
				return fmt.Errorf("index: insert term: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePost removes a post, its FTS entry, and its terms.
func (db *DB) DeletePost(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM post_terms WHERE path = ?`,
		`DELETE FROM posts WHERE path = ?`,
	} {
		if _, err := tx.Exec(stmt, path); err != nil {
			return fmt.Errorf("index: delete %s: %w", path, err)
		}
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a post, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM posts WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed post keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// TermCounts returns how many indexed posts carry each label of field, most
// used first.
func (db *DB) TermCounts(field string) ([]TermCount, error) {
	rows, err := db.conn.Query(`
		SELECT label, slug, COUNT(*) AS n
		FROM post_terms
		WHERE field = ?
		GROUP BY label, slug
		ORDER BY n DESC, label COLLATE NOCASE
	`, field)
	if err != nil {
		return nil, fmt.Errorf("index: term counts: %w", err)
	}
	defer rows.Close()

	out := []TermCount{}
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Label, &tc.Slug, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
