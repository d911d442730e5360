package transports

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// HTTPTransport implements ChannelsTransport over the quiu HTTP API.
type HTTPTransport struct {
	base   func() string
	client *http.Client
}

// NewHTTPTransport constructs a transport. base is resolved on every call so
// flags parsed after construction are honored.
func NewHTTPTransport(base func() string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: base, client: client}
}

func (t *HTTPTransport) url(path string) string {
	return strings.TrimRight(t.base(), "/") + path
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body io.Reader, hdr http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.url(path), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.client.Do(req)
}

// decode reads a JSON body into out, turning error envelopes into *APIError.
func decode(resp *http.Response, out any, ok ...int) error {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			if out == nil {
				return nil
			}
			return json.Unmarshal(b, out)
		}
	}
	return apiError(resp.StatusCode, b)
}

func apiError(status int, body []byte) error {
	var env struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &env)
	return &APIError{Status: status, Message: env.Message}
}

// Create registers a channel; empty guid lets the server generate one.
func (t *HTTPTransport) Create(ctx context.Context, guid, name string) (string, error) {
	form := url.Values{}
	if guid != "" {
		form.Set("guid", guid)
	}
	if name != "" {
		form.Set("name", name)
	}
	hdr := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	resp, err := t.do(ctx, http.MethodPost, "/admin/channel/new", strings.NewReader(form.Encode()), hdr)
	if err != nil {
		return "", err
	}
	var out struct {
		GUID string `json:"guid"`
	}
	if err := decode(resp, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.GUID, nil
}

// Drop unregisters a channel, optionally erasing its data.
func (t *HTTPTransport) Drop(ctx context.Context, guid string, prune bool) error {
	path := "/admin/channel/" + url.PathEscape(guid) + "?prune=" + strconv.FormatBool(prune)
	resp, err := t.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil, http.StatusOK)
}

func (t *HTTPTransport) List(ctx context.Context) ([]ChannelInfo, error) {
	resp, err := t.do(ctx, http.MethodGet, "/admin/channels", nil, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Channels []ChannelInfo `json:"channels"`
	}
	if err := decode(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// Append posts body. A 202 sets Pending: some records were accepted but not
// yet confirmed durable.
func (t *HTTPTransport) Append(ctx context.Context, guid string, body io.Reader, noWait bool) (AppendResult, error) {
	var hdr http.Header
	if noWait {
		hdr = http.Header{"X-Quiu-NoWait": {"1"}}
	}
	resp, err := t.do(ctx, http.MethodPost, "/channel/"+url.PathEscape(guid), body, hdr)
	if err != nil {
		return AppendResult{}, err
	}
	var out AppendResult
	status := resp.StatusCode
	if err := decode(resp, &out, http.StatusCreated, http.StatusAccepted); err != nil {
		return out, err
	}
	out.Pending = status == http.StatusAccepted
	return out, nil
}

func (t *HTTPTransport) Fetch(ctx context.Context, guid string, offset int64) (Record, error) {
	resp, err := t.do(ctx, http.MethodGet, fmt.Sprintf("/channel/%s/%d", url.PathEscape(guid), offset), nil, nil)
	if err != nil {
		return Record{}, err
	}
	var out Record
	if err := decode(resp, &out, http.StatusOK); err != nil {
		return Record{}, err
	}
	return out, nil
}

// FetchRange streams newline-delimited records to onRecord.
func (t *HTTPTransport) FetchRange(ctx context.Context, req RangeRequest, onRecord func(Record) error) error {
	path := fmt.Sprintf("/channel/%s/%d/%d", url.PathEscape(req.GUID), req.Offset, req.Count)
	if req.Filter != "" {
		path += "?filter=" + url.QueryEscape(req.Filter)
	}
	resp, err := t.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, b)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 32<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := onRecord(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}
