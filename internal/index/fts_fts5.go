//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			terms,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsUpsert mirrors one post into posts_fts. Tags and categories go into the
// terms column so they are searchable alongside the body.
func ftsUpsert(tx *sql.Tx, path, title, body string, terms []string) error {
	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO posts_fts (path, title, body, terms) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(terms, " ")); err != nil {
		return fmt.Errorf("index: fts insert: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM posts_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: fts delete: %w", err)
	}
	return nil
}

// searchRows ranks by bm25 and highlights the body column.
func searchRows(conn *sql.DB, query string, limit int) (*sql.Rows, error) {
	return conn.Query(`
		SELECT f.path, p.url, p.title,
		       snippet(posts_fts, 2, '<b>', '</b>', '...', 64)
		FROM posts_fts f
		JOIN posts p ON p.path = f.path
		WHERE posts_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, matchExpr(query), limit)
}
