/*
Package holiday fetches German public holidays over HTTP.

CONTRACT:
  GET <base>?jahr=<year>&nur_land=<state>
  200 -> {"Neujahrstag": {"datum": "2025-01-01", "hinweis": ""}, ...}

  FetchHolidays returns map["YYYY-MM-DD"]name. Transport, status and
  decode failures are returned; timesheet.HolidayCache turns them into
  an empty result.

SEE ALSO:
  - timesheet/holiday.go: Cache and lookup contract
*/
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public feiertage API.
const DefaultBaseURL = "https://feiertage-api.de/api/"

type holidayInfo struct {
	Datum   string `json:"datum"`
	Hinweis string `json:"hinweis"`
}

// Client talks to the holiday API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// FetchHolidays returns the holidays of year in stateCode.
func (c *Client) FetchHolidays(ctx context.Context, year int, stateCode string) (map[string]string, error) {
	if !ValidStateCode(stateCode) {
		return nil, fmt.Errorf("unknown state code %q", stateCode)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("jahr", strconv.Itoa(year))
	q.Set("nur_land", stateCode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch holidays %d/%s: %w", year, stateCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch holidays %d/%s: status %d: %s", year, stateCode, resp.StatusCode, string(body))
	}

	var payload map[string]holidayInfo
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode holidays: %w", err)
	}

	out := make(map[string]string, len(payload))
	for name, info := range payload {
		if _, err := time.Parse("2006-01-02", info.Datum); err != nil {
			return nil, fmt.Errorf("holiday %q has invalid date %q", name, info.Datum)
		}
		out[info.Datum] = name
	}
	return out, nil
}
