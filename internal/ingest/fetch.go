// Package ingest fetches the raw historical dataset from an HTTP feed and
// hands it to the events loader. Fetching is optional; training can also read
// a local file directly.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"quakewatch/internal/events"
)

// Client downloads dataset exports.
type Client struct {
	rest *resty.Client
}

// NewClient builds a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetRetryCount(2)
	r.SetRetryWaitTime(2 * time.Second)
	return &Client{rest: r}
}

// FetchDataset downloads a CSV export from url and parses it into records.
func (c *Client) FetchDataset(ctx context.Context, url string) ([]events.Record, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch dataset: unexpected status %d from %s", resp.StatusCode(), url)
	}

	log.Info().Str("url", url).Int("bytes", len(resp.Body())).Msg("dataset downloaded")
	return events.ParseCSV(bytes.NewReader(resp.Body()))
}
