package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// httpStatusError ответ сервиса с кодом не 200.
type httpStatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Code, e.Body)
}

// retryable повторяем сетевые сбои, таймаут попытки, 429 и 5xx; ошибки клиента и отмену не повторяем.
// Коды Gemini приходят как *googleapi.Error и разбираются так же, как ответы chat/completions.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return retryableStatus(ge.Code)
	}
	var pe *permanentError
	return !errors.As(err, &pe)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// permanentError ошибка, которую повторять бессмысленно (битый ответ, пустой текст).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// withRetry выполняет fn до 1+Retries раз с линейной паузой Backoff*attempt.
// Timeout ограничивает каждую попытку отдельно. Истёкшая попытка повторяется,
// завершение ctx вызывающего останавливает цикл.
func withRetry(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(time.Duration(attempt) * opts.Backoff):
			}
		}
		actx, cancel := context.WithTimeout(ctx, opts.Timeout)
		lastErr = fn(actx)
		cancel()
		if lastErr == nil || ctx.Err() != nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
