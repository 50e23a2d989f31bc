// Package remote reads form structures from the Apps Script web app that fronts
// the spreadsheet and its linked forms.
//
// The client keeps no state between calls and never retries: every method
// issues exactly one HTTP request.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/tidwall/gjson"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/schema"
)

const (
	actionForms         = "forms"
	actionFormStructure = "formStructure"

	defaultTimeout = 30 * time.Second
)

var formURLID = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)

// Client talks to the Apps Script endpoint. The credential is passed as the
// key query parameter.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	log        logger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

// WithTimeout bounds each request. Zero disables the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) { client.timeout = d }
}

func WithLogger(l logger.Logger) Option {
	return func(client *Client) { client.log = l }
}

// New creates a Client for the given endpoint and API key.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		log:        logger.NOP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListLinkedForms returns the forms linked to the spreadsheet. Listing is
// advisory: a response without a linkedForms array yields an empty list, and
// entries with missing fields are returned with those fields empty. Both cases
// are logged as warnings.
func (c *Client) ListLinkedForms(ctx context.Context) (forms []schema.FormRef, err error) {
	body, err := c.get(ctx, actionForms, nil)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	if err := errorPayload(res); err != nil {
		return nil, err
	}

	forms = []schema.FormRef{}
	linked := res.Get("linkedForms")
	if !linked.IsArray() {
		c.log.Warnn("forms listing has no linkedForms array", logger.NewStringField("action", actionForms))
		return forms, nil
	}
	for i, entry := range linked.Array() {
		if !entry.IsObject() {
			c.log.Warnn("skipping linked form entry that is not an object",
				logger.NewIntField("entry", int64(i)),
				logger.NewStringField("raw", entry.Raw),
			)
			continue
		}
		ref := schema.FormRef{
			SheetName: c.field(entry, i, "sheetName"),
			FormID:    c.field(entry, i, "formId"),
			FormURL:   c.field(entry, i, "formUrl"),
		}
		if ref.FormID == "" {
			if m := formURLID.FindStringSubmatch(ref.FormURL); m != nil {
				ref.FormID = m[1]
			}
		}
		forms = append(forms, ref)
	}
	return forms, nil
}

func (c *Client) field(entry gjson.Result, index int, name string) string {
	v := entry.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		c.log.Warnn("linked form entry is missing a field",
			logger.NewIntField("entry", int64(index)),
			logger.NewStringField("field", name),
		)
		return ""
	}
	return v.String()
}

// FetchSchema returns the current structure of the form. An explicit error
// payload from the provider is returned as *errors.RemoteSchemaError; transport
// failures and malformed responses match errors.ErrRemoteUnavailable.
func (c *Client) FetchSchema(ctx context.Context, formID string) (s schema.Schema, err error) {
	body, err := c.get(ctx, actionFormStructure, url.Values{"formId": {formID}})
	if err != nil {
		return schema.Schema{}, err
	}
	res := gjson.ParseBytes(body)
	if err := errorPayload(res); err != nil {
		return schema.Schema{}, err
	}
	if !res.IsObject() {
		return schema.Schema{}, errors.NewRemoteUnavailable("malformed form structure payload", nil)
	}

	var raw map[string]any
	if err := schema.JSON.Unmarshal(body, &raw); err != nil {
		return schema.Schema{}, errors.NewRemoteUnavailable("failed to decode form structure payload", err)
	}
	s = schema.DecodeValue(raw)
	c.log.Infon("fetched form structure",
		logger.NewStringField("formId", formID),
		logger.NewStringField("title", s.Title),
		logger.NewIntField("itemCount", int64(s.ItemCount)),
	)
	return s, nil
}

func errorPayload(res gjson.Result) error {
	if !res.IsObject() {
		return nil
	}
	msg := res.Get("error")
	if !msg.Exists() || msg.Type == gjson.Null {
		return nil
	}
	return &errors.RemoteSchemaError{Message: msg.String()}
}

// get performs one GET request. Non-2xx responses are accepted when their body
// is a JSON object carrying an error field, since the provider reports
// authorization and lookup failures that way.
func (c *Client) get(ctx context.Context, action string, params url.Values) (body []byte, err error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", c.endpoint, errors.ErrInvalidPath)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("key", c.apiKey)
	q.Set("action", action)
	u.RawQuery = q.Encode()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.NewRemoteUnavailable("failed to build request", err)
	}

	c.log.Debugn("requesting form provider", logger.NewStringField("action", action))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewRemoteUnavailable(fmt.Sprintf("request %s failed", action), err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			closeErr = errors.NewIOError("failed to close response body", closeErr)
		}
		err = errors.Join(err, closeErr)
	}()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewRemoteUnavailable("failed to read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if errorPayload(gjson.ParseBytes(body)) != nil {
			return body, nil
		}
		return nil, errors.NewRemoteUnavailable(fmt.Sprintf("request %s: unexpected status %s", action, resp.Status), nil)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.NewRemoteUnavailable(fmt.Sprintf("request %s: response is not json", action), nil)
	}
	return body, nil
}
