// Package health provides bounded polling of external readiness signals.
package health

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/stackops/upctl/internal/pkg/encoding/json"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// Probe describes a single readiness check.
// A false result without an error means "not yet", polling continues.
type Probe interface {
	Name() string
	Check(ctx context.Context) (bool, error)
}

// ProbeFunc adapts a function to the Probe interface.
func ProbeFunc(name string, fn func(ctx context.Context) (bool, error)) Probe {
	return &probeFunc{name: name, fn: fn}
}

type probeFunc struct {
	name string
	fn   func(ctx context.Context) (bool, error)
}

func (p *probeFunc) Name() string {
	return p.name
}

func (p *probeFunc) Check(ctx context.Context) (bool, error) {
	return p.fn(ctx)
}

// HTTPProbe checks a readiness signal exposed over HTTP.
// An unreachable service is reported as "not yet", not as an error.
type HTTPProbe struct {
	name   string
	client *resty.Client
	url    string
	check  func(statusCode int, body []byte) (bool, error)
}

func NewHTTPProbe(name string, client *resty.Client, url string, check func(statusCode int, body []byte) (bool, error)) *HTTPProbe {
	return &HTTPProbe{name: name, client: client, url: url, check: check}
}

func (p *HTTPProbe) Name() string {
	return p.name
}

func (p *HTTPProbe) Check(ctx context.Context) (bool, error) {
	response, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		// Unreachable service: not yet ready
		return false, nil
	}
	return p.check(response.StatusCode(), response.Body())
}

// ExpectJSONField builds a check comparing a top-level JSON string field against the expected value.
// A reachable service returning a not-yet-matching value is "not yet", not a failure.
func ExpectJSONField(field, expected string) func(statusCode int, body []byte) (bool, error) {
	return func(statusCode int, body []byte) (bool, error) {
		if statusCode != 200 {
			return false, nil
		}
		parsed := make(map[string]any)
		if err := json.Decode(body, &parsed); err != nil {
			return false, nil
		}
		value, ok := parsed[field].(string)
		if !ok {
			return false, nil
		}
		return value == expected, nil
	}
}

// ExpectStatusOK builds a check that only requires a 200 response.
func ExpectStatusOK() func(statusCode int, body []byte) (bool, error) {
	return func(statusCode int, body []byte) (bool, error) {
		return statusCode == 200, nil
	}
}

// MinCount builds a check for a JSON numeric field reaching a threshold,
// used for index document counts and background progress indicators.
func MinCount(field string, threshold int) func(statusCode int, body []byte) (bool, error) {
	if threshold < 0 {
		panic(errors.New("threshold cannot be negative"))
	}
	return func(statusCode int, body []byte) (bool, error) {
		if statusCode != 200 {
			return false, nil
		}
		parsed := make(map[string]any)
		if err := json.Decode(body, &parsed); err != nil {
			return false, nil
		}
		value, ok := parsed[field].(float64)
		if !ok {
			return false, nil
		}
		return int(value) >= threshold, nil
	}
}
