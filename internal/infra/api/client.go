// Package api is a small client for the ABSENTA REST backend.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/resilience"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 16 << 20

// Config configures the REST client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Client talks to the ABSENTA backend.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL: u,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Filter narrows an attendance listing. Empty fields are not sent.
type Filter struct {
	ClassName string
	From      string // YYYY-MM-DD
	To        string // YYYY-MM-DD
}

func (f Filter) apply(q url.Values) {
	if f.ClassName != "" {
		q.Set("class", f.ClassName)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
}

// ListAttendance fetches one page of attendance records. The backend
// answers with either a bare array or an object carrying a "data" array.
func (c *Client) ListAttendance(ctx context.Context, f Filter, offset, limit int) ([]domain.AttendanceRecord, error) {
	q := url.Values{}
	f.apply(q)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/attendance", q)
	if err != nil {
		return nil, err
	}
	return parseAttendance(body)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Body:       msg,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	return body, nil
}

func parseAttendance(body []byte) ([]domain.AttendanceRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("parse response: invalid json")
	}

	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		list = root.Get("data")
		if !list.IsArray() {
			return nil, errors.New("parse response: no attendance array")
		}
	}

	items := list.Array()
	out := make([]domain.AttendanceRecord, 0, len(items))
	for _, item := range items {
		out = append(out, domain.AttendanceRecord{
			ID:          item.Get("id").String(),
			StudentID:   item.Get("student_id").String(),
			StudentName: item.Get("student_name").String(),
			ClassName:   firstOf(item, "class_name", "class"),
			Subject:     item.Get("subject").String(),
			Date:        item.Get("date").String(),
			Status:      domain.AttendanceStatus(strings.ToLower(item.Get("status").String())),
			Note:        item.Get("note").String(),
		})
	}
	return out, nil
}

func firstOf(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// RetryableError reports whether err is worth another attempt: timeouts,
// transport failures, 408, 429 and 5xx responses, and transient gRPC
// codes. Context cancellation and other 4xx responses are final.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if resilience.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusRequestTimeout, se.Code == http.StatusTooManyRequests:
			return true
		case se.Code >= 500:
			return true
		default:
			return false
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
