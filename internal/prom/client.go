// Package prom wraps the Prometheus HTTP query API and converts its results
// into the shapes gridwatch serves.
package prom

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

const queryPath = "/api/v1/query"

type Client struct {
	BaseURL string
	api     v1.API
}

// NewClient accepts either the server root (http://host:9090) or the full
// instant query endpoint (http://host:9090/api/v1/query). An empty username
// disables basic auth.
func NewClient(baseURL, username, password string) (*Client, error) {
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, queryPath)

	var rt http.RoundTripper = api.DefaultRoundTripper
	if username != "" {
		rt = &basicAuth{username: username, password: password, next: rt}
	}
	c, err := api.NewClient(api.Config{Address: base, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &Client{BaseURL: base, api: v1.NewAPI(c)}, nil
}

type basicAuth struct {
	username string
	password string
	next     http.RoundTripper
}

func (b *basicAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(b.username, b.password)
	return b.next.RoundTrip(req)
}

// Query runs an instant query that must evaluate to a vector (or scalar,
// returned as a single unlabelled sample).
func (c *Client) Query(ctx context.Context, query string) (Vector, error) {
	// zero time lets the server evaluate at its own now
	val, warnings, err := c.api.Query(ctx, query, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	logWarnings(query, warnings)

	switch v := val.(type) {
	case model.Vector:
		return fromVector(v), nil
	case *model.Scalar:
		return Vector{{Metric: Labels{}, Value: Point{T: seconds(v.Timestamp), V: float64(v.Value)}}}, nil
	default:
		return nil, fmt.Errorf("query %q: unexpected result type %q", query, val.Type())
	}
}

// QueryMatrix runs an instant query that evaluates to a range vector, such
// as a subquery.
func (c *Client) QueryMatrix(ctx context.Context, query string) (Matrix, error) {
	val, warnings, err := c.api.Query(ctx, query, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	logWarnings(query, warnings)
	return toMatrix(query, val)
}

type Range struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

func (c *Client) QueryRange(ctx context.Context, query string, r Range) (Matrix, error) {
	val, warnings, err := c.api.QueryRange(ctx, query, v1.Range{Start: r.Start, End: r.End, Step: r.Step})
	if err != nil {
		return nil, fmt.Errorf("query range %q: %w", query, err)
	}
	logWarnings(query, warnings)
	return toMatrix(query, val)
}

func toMatrix(query string, val model.Value) (Matrix, error) {
	m, ok := val.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("query %q: unexpected result type %q", query, val.Type())
	}
	out := make(Matrix, 0, len(m))
	for _, ss := range m {
		series := Series{Metric: fromMetric(ss.Metric), Values: make([]Point, len(ss.Values))}
		for i, p := range ss.Values {
			series.Values[i] = Point{T: seconds(p.Timestamp), V: float64(p.Value)}
		}
		out = append(out, series)
	}
	return out, nil
}

func fromVector(v model.Vector) Vector {
	out := make(Vector, 0, len(v))
	for _, s := range v {
		out = append(out, Sample{
			Metric: fromMetric(s.Metric),
			Value:  Point{T: seconds(s.Timestamp), V: float64(s.Value)},
		})
	}
	return out
}

func fromMetric(m model.Metric) Labels {
	out := make(Labels, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return out
}

// seconds converts a millisecond model.Time into unix seconds.
func seconds(t model.Time) float64 {
	return float64(t) / 1000
}

func logWarnings(query string, warnings v1.Warnings) {
	for _, w := range warnings {
		log.Printf("Prometheus warning for %q: %s", query, w)
	}
}
