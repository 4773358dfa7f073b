package index

import (
	"fmt"
	"strings"
)

const defaultSearchLimit = 20

// Search returns up to limit posts matching query. A blank query matches
// nothing. The ranking depends on the search backend compiled in.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := searchRows(db.conn, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.URL, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: search: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// matchExpr turns free text into an FTS5 expression: every whitespace
// separated word becomes a quoted prefix term, so punctuation in user input
// cannot be read as query syntax.
func matchExpr(query string) string {
	words := strings.Fields(query)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

// likePattern escapes LIKE wildcards in query using backslash.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
