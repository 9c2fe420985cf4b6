package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound товара с таким id нет; не ретраится
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable сетевая ошибка или не-успешный ответ каталога
	ErrUnavailable = errors.New("catalog unavailable")
)

// APIError не-2xx ответ каталога
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
