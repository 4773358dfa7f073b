//go:build !sqlite_fts5

package index

import "database/sql"

// Without FTS5 the posts table itself is scanned with LIKE.

func initFTS(*sql.DB) error { return nil }

func ftsUpsert(*sql.Tx, string, string, string, []string) error { return nil }

func ftsDelete(*sql.Tx, string) error { return nil }

// searchRows matches the whole query as a substring, newest first.
func searchRows(conn *sql.DB, query string, limit int) (*sql.Rows, error) {
	like := likePattern(query)
	return conn.Query(`
		SELECT path, url, title, substr(body, 1, 200)
		FROM posts
		WHERE title LIKE ?1 ESCAPE '\'
		   OR body LIKE ?1 ESCAPE '\'
		   OR tags LIKE ?1 ESCAPE '\'
		   OR categories LIKE ?1 ESCAPE '\'
		ORDER BY date_ms DESC
		LIMIT ?2`, like, limit)
}
