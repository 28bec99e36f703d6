package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/estate-crm/internal/reminder"
)

// LogClient posts fired reminders to the backend log endpoint.
type LogClient struct {
	hc    *http.Client
	url   string
	token string
}

func NewLogClient(url, token string) *LogClient {
	return &LogClient{
		hc:    &http.Client{Timeout: 5 * time.Second},
		url:   url,
		token: token,
	}
}

// LogReminder implements reminder.LogSink. The response body is ignored.
func (c *LogClient) LogReminder(ctx context.Context, rec reminder.LogRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal reminder log: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("reminder log: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("reminder log failed (status=%d)", resp.StatusCode)
	}
	return nil
}

var _ reminder.LogSink = (*LogClient)(nil)
