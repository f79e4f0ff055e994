// Package repository provides data persistence implementations for pipeline
// entries, transition rules, history and approval requests.
package repository

import (
	"database/sql"
	"time"

	apperrors "github.com/roofline/crmcore/internal/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error), what string) ([]T, error) {
	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to scan %s", what)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(err, "failed to iterate %s", what)
	}
	return items, nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func stringOrNil[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
