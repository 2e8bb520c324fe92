package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

var (
	errNoHTTPClient = errors.New("http client not configured")
)

// doRequest executes a single HTTP attempt through the circuit breaker and
// maps transport failures and non-2xx statuses onto the provider error
// taxonomy. There is deliberately no retry loop here: a failed fetch is
// retried by the next scheduler tick, never within the same one.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, ctx.Err())
	}

	req, err := buildRequest()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open: %v", weather.ErrProviderUnavailable, err)
		}
		var se *statusError
		if errors.As(err, &se) {
			// Keep the status error in the chain so callers can distinguish
			// a 404 from real unavailability.
			return nil, fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, se)
		}
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrProviderUnavailable)
	}
	return resp, nil
}

// statusError carries a non-2xx response code through the circuit breaker.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.code)
}

// isNotFound reports whether the wrapped provider error was an HTTP 404, which
// the alerts endpoint uses to mean "no active warnings".
func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}
