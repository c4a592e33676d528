package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nchanged/gridwatch/internal/prom"
	"github.com/nchanged/gridwatch/internal/solar"
)

// Client talks to a running gridwatch server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{},
	}
}

// Today fetches today's combined generation. An empty day is a series
// without values.
func (c *Client) Today(ctx context.Context) (prom.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/site/all", nil)
	if err != nil {
		return prom.Series{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return prom.Series{}, fmt.Errorf("fetch today: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return prom.Series{}, fmt.Errorf("fetch today: unexpected status %s", resp.Status)
	}
	var series prom.Series
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return prom.Series{}, fmt.Errorf("decode today: %w", err)
	}
	return series, nil
}

// Stream delivers every summary from /sse to fn until ctx is done or the
// server closes the stream.
func (c *Client) Stream(ctx context.Context, fn func(solar.Summary)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/sse", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %s", resp.Status)
	}

	return readEvents(resp.Body, func(data []byte) error {
		var sum solar.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		fn(sum)
		return nil
	})
}

// readEvents splits an event stream and hands the joined data lines of each
// event to fn. Comments and other fields are ignored.
func readEvents(r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer
	dispatch := func() error {
		if data.Len() == 0 {
			return nil
		}
		payload := bytes.TrimSuffix(data.Bytes(), []byte("\n"))
		defer data.Reset()
		return fn(payload)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		data.WriteString(strings.TrimPrefix(value, " "))
		data.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return dispatch()
}
