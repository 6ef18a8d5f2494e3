package client

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

type dateRange struct {
	From *string `json:"date_from"`
	To   *string `json:"date_to"`
}

func newDateRange(from, to *time.Time) dateRange {
	format := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.Format(time.RFC3339)
		return &s
	}
	return dateRange{From: format(from), To: format(to)}
}

// FetchHomework returns the homework due between from and to. A nil bound
// lets the backend choose its default. "No data" answers yield an empty
// slice; only transport failures are errors.
func (c *Client) FetchHomework(ctx context.Context, from, to *time.Time) ([]Homework, error) {
	raw, err := c.transport.Do(ctx, pathHomework, RequestOptions{Body: newDateRange(from, to)})
	if err != nil {
		return nil, err
	}
	return decodeList[Homework](c, raw, "homework"), nil
}

// FetchTimetable returns the lessons between from and to.
func (c *Client) FetchTimetable(ctx context.Context, from, to *time.Time) ([]Lesson, error) {
	raw, err := c.transport.Do(ctx, pathTimetable, RequestOptions{Body: newDateRange(from, to)})
	if err != nil {
		return nil, err
	}
	return decodeList[Lesson](c, raw, "timetable"), nil
}

// FetchGrades returns the grades of period, or of every period when
// period is empty.
func (c *Client) FetchGrades(ctx context.Context, period string) ([]Grade, error) {
	opts := RequestOptions{Method: "POST"}
	if period != "" {
		opts.Query = url.Values{"period_name": {period}}
	}
	raw, err := c.transport.Do(ctx, pathGrades, opts)
	if err != nil {
		return nil, err
	}
	return decodeList[Grade](c, raw, "grades"), nil
}

// Snapshot groups the three data views.
type Snapshot struct {
	Homework []Homework
	Lessons  []Lesson
	Grades   []Grade
}

// FetchAll launches the three fetches together and waits for all of them.
// The first transport failure cancels the others and is returned.
func (c *Client) FetchAll(ctx context.Context, from, to *time.Time, period string) (*Snapshot, error) {
	var snapshot Snapshot
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		snapshot.Homework, err = c.FetchHomework(ctx, from, to)
		return err
	})
	group.Go(func() (err error) {
		snapshot.Lessons, err = c.FetchTimetable(ctx, from, to)
		return err
	})
	group.Go(func() (err error) {
		snapshot.Grades, err = c.FetchGrades(ctx, period)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Providers returns the identity providers usable with LoginFederated.
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	raw, err := c.transport.Do(ctx, pathProviders, RequestOptions{})
	if err != nil {
		return nil, err
	}
	return decodeList[Provider](c, raw, "ents"), nil
}

// Health queries the backend status indicator.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	raw, err := c.transport.Do(ctx, pathHealth, RequestOptions{})
	if err != nil {
		return nil, err
	}
	var health Health
	if err := json.Unmarshal(raw, &health); err != nil || health.Status == "" {
		c.logger.Warn("malformed health response", "error", err)
		return &Health{Status: "unknown"}, nil
	}
	return &health, nil
}

// decodeList extracts the array stored under field in a success envelope.
// success=false, a missing or mistyped field and undecodable bodies all
// degrade to an empty slice; the contract violations are logged.
func decodeList[T any](c *Client, raw json.RawMessage, field string) []T {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		c.logger.Warn("response is not a JSON object", "field", field, "error", err)
		return []T{}
	}

	// The provider list carries no success flag.
	if flag, ok := envelope["success"]; ok {
		var success bool
		if err := json.Unmarshal(flag, &success); err != nil || !success {
			return []T{}
		}
	}

	payload, ok := envelope[field]
	if !ok {
		c.logger.Warn("success response without payload", "field", field)
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		c.logger.Warn("malformed payload", "field", field, "error", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}
