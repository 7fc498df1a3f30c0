package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

const (
	maxBodySize = 1 << 20 // 1 MB
	userAgent   = "fuelcheck/1.0"
)

type client struct {
	http *http.Client
}

func newClient(hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &client{http: hc}
}

type request struct {
	id      provider.ID
	method  string
	url     string
	headers map[string]string
	body    any
	// form is sent url-encoded instead of body when set.
	form url.Values
}

type response struct {
	body   []byte
	header http.Header
}

// do sends req and returns the body of a 2xx response. Non-2xx statuses and
// transport failures come back as *model.FetchError.
func (c *client) do(ctx context.Context, req request) (response, error) {
	var body io.Reader
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return response{}, fmt.Errorf("%s: encoding request: %w", req.id, err)
		}
		body = bytes.NewReader(data)
	}
	method := req.method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.url, body)
	if err != nil {
		return response{}, fmt.Errorf("%s: creating request: %w", req.id, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	switch {
	case req.form != nil:
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case req.body != nil:
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	//nolint:gosec // URLs come from fixed endpoints or the local config
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return response{}, transportError(ctx, req.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return response{}, transportError(ctx, req.id, err)
	}
	if fe := normalize.StatusError(req.id, resp.StatusCode, data); fe != nil {
		return response{}, fe
	}
	return response{body: data, header: resp.Header}, nil
}

// getJSON performs req and decodes the body into out.
func (c *client) getJSON(ctx context.Context, req request, out any) (http.Header, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return nil, &model.NormalizationError{
			Kind:   model.UnrecognizedResponseShape,
			Detail: fmt.Sprintf("%s: decoding response: %v", req.id, err),
		}
	}
	return resp.header, nil
}

func transportError(ctx context.Context, id provider.ID, err error) error {
	kind := model.KindTransportFailure
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = model.KindTimeout
	}
	return &model.FetchError{Kind: kind, Provider: string(id), Message: err.Error(), Err: err}
}
