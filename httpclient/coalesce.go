package httpclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// GenerateCoalesceKey creates a key identifying identical requests.
// Key = SHA256(method + URL + sorted query params + body hash)
func GenerateCoalesceKey(method, rawURL string, body []byte) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return hashString(method + rawURL + string(body))
	}

	queryParams := parsedURL.Query()
	var sortedParams []string
	for key, values := range queryParams {
		sort.Strings(values)
		for _, v := range values {
			sortedParams = append(sortedParams, key+"="+v)
		}
	}
	sort.Strings(sortedParams)

	keyParts := []string{
		method,
		fmt.Sprintf("%s://%s%s", parsedURL.Scheme, parsedURL.Host, parsedURL.Path),
		strings.Join(sortedParams, "&"),
	}
	if len(body) > 0 {
		bodyHash := sha256.Sum256(body)
		keyParts = append(keyParts, hex.EncodeToString(bodyHash[:]))
	}
	return hashString(strings.Join(keyParts, "|"))
}

func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// CoalescingCapability merges identical GET and HEAD executions that are
// in flight at the same time into one. Requests are identical when their
// method, URL, query and headers match.
//
// The shared response is buffered, and every caller receives its own copy.
// A caller whose context ends stops waiting without affecting the others.
//
// Example:
//
//	builder.AddCapability(httpclient.NewCoalescingCapability())
type CoalescingCapability struct {
	NopCapability

	group singleflight.Group
}

// NewCoalescingCapability creates a CoalescingCapability.
func NewCoalescingCapability() *CoalescingCapability {
	return &CoalescingCapability{}
}

type sharedResponse struct {
	status   int
	reason   string
	headers  http.Header
	body     []byte
	protocol ProtocolVersion
}

func (s *sharedResponse) copyFor(req *Request) *Response {
	resp := NewResponse(s.status, bytes.Clone(s.body), req)
	resp.Reason = s.reason
	resp.Headers = copyHeaders(s.headers)
	resp.Protocol = s.protocol
	return resp
}

// EnrichClient implements Capability.
func (c *CoalescingCapability) EnrichClient(next Client) Client {
	return ClientFunc(func(ctx context.Context, req *Request, opts Options) (*Response, error) {
		if req.Method() != MethodGet && req.Method() != MethodHead {
			return next.Execute(ctx, req, opts)
		}

		ch := c.group.DoChan(coalesceKey(req, opts), func() (interface{}, error) {
			// Shared by every waiting caller, so not cancelled with the first.
			resp, err := next.Execute(context.WithoutCancel(ctx), req, opts)
			if err != nil {
				return nil, err
			}
			defer resp.Close()

			body, err := resp.Bytes()
			if err != nil {
				return nil, &ReadError{Request: req, Response: resp, Err: err}
			}
			return &sharedResponse{
				status:   resp.Status,
				reason:   resp.Reason,
				headers:  resp.Headers,
				body:     body,
				protocol: resp.Protocol,
			}, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*sharedResponse).copyFor(req), nil
		}
	})
}

// coalesceKey extends GenerateCoalesceKey with the headers and Options,
// which change what the server answers and how it is fetched.
func coalesceKey(req *Request, opts Options) string {
	headers := req.Headers()
	var sb strings.Builder
	for _, name := range sortedHeaderNames(headers) {
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(headers[name], ","))
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%v", opts)
	return GenerateCoalesceKey(req.Method().String(), req.URL(), nil) + "|" + hashString(sb.String())
}
