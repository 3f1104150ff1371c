// Package params разбирает параметры пути и строки запроса.
package params

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
)

// Параметры пагинации по умолчанию.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ID читает положительный идентификатор из параметра пути name.
func ID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// Page читает limit и offset. Отсутствующие значения заменяются значениями по умолчанию,
// limit больше MaxLimit обрезается.
func Page(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()

	limit = DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, MaxLimit)
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// Time читает необязательную метку времени в формате RFC3339.
func Time(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return &t, nil
}
