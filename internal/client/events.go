package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/family-trips/internal/model"
)

// StreamEvents follows a trip's change feed, calling fn for each change
// until ctx is done or the server closes the stream. tables narrows the
// feed; empty means every table.
func (c *Client) StreamEvents(ctx context.Context, tripID string, tables []string, fn func(model.ChangeEvent)) error {
	path := "/api/trips/" + url.PathEscape(tripID) + "/events"
	if len(tables) > 0 {
		path += "?table=" + url.QueryEscape(strings.Join(tables, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: building events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client has an overall timeout; a stream must not.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("client: opening event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxResponseBody)

	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "change" && data.Len() > 0 {
				var ev model.ChangeEvent
				if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
					c.logger.Warn("skipping malformed change event", slog.String("error", err.Error()))
				} else {
					fn(ev)
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("client: reading event stream: %w", err)
	}
	return nil
}
