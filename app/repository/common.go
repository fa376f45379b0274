package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"

	"github.com/assanpay/gateway/app/entity"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTimeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtrFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func serializeProviderDetails(details entity.ProviderDetails) (string, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseProviderDetails(raw string) (entity.ProviderDetails, error) {
	var details entity.ProviderDetails
	if raw == "" {
		return details, nil
	}
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return entity.ProviderDetails{}, err
	}
	return details, nil
}

func serializeRouting(routing map[string]string) (string, error) {
	if routing == nil {
		routing = map[string]string{}
	}
	payload, err := json.Marshal(routing)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseRouting(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var routing map[string]string
	if err := json.Unmarshal([]byte(raw), &routing); err != nil {
		return nil, err
	}
	if routing == nil {
		routing = map[string]string{}
	}
	return routing, nil
}
