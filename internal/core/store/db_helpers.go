package store

import "github.com/jmoiron/sqlx"

// sqlxIn expands a query's single "IN (?)" placeholder against args and
// rebinds it to SQLite's "?" bindvar style.
func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.QUESTION, expanded), expandedArgs, nil
}
