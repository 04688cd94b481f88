package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"sync"
)

// MockClient is a configurable Client for testing services without a
// server. Stubs are matched in registration order; the first match wins.
//
// Example:
//
//	mock := httpclient.NewMockClient().
//	    StubPath("/users/42", http.StatusOK, `{"id":42}`).
//	    StubStatus(http.StatusNotFound, "")
//
//	svc, _ := httpclient.NewBuilder().Client(mock).Build(target, specs...)
type MockClient struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp *stubResponse
	defaultErr  error
	requests    []*Request
	requestHook func(*Request)
}

type stub struct {
	matcher  func(*Request) bool
	response *stubResponse
	err      error
}

type stubResponse struct {
	status  int
	headers http.Header
	body    string
}

// NewMockClient creates a MockClient without stubs.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// StubStatus answers every unmatched request with the given response.
func (m *MockClient) StubStatus(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &stubResponse{status: status, body: body}
	return m
}

// StubError fails every unmatched request with err.
func (m *MockClient) StubError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath answers requests for path.
func (m *MockClient) StubPath(path string, status int, body string) *MockClient {
	return m.StubFunc(func(req *Request) bool {
		return pathOf(req) == path
	}, status, body)
}

// StubPathRegex answers requests whose path matches pattern.
func (m *MockClient) StubPathRegex(pattern string, status int, body string) *MockClient {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *Request) bool {
		return re.MatchString(pathOf(req))
	}, status, body)
}

// StubMethod answers requests using method.
func (m *MockClient) StubMethod(method HTTPMethod, status int, body string) *MockClient {
	return m.StubFunc(func(req *Request) bool {
		return req.Method() == method
	}, status, body)
}

// StubFunc answers requests accepted by matcher.
func (m *MockClient) StubFunc(matcher func(*Request) bool, status int, body string) *MockClient {
	return m.StubFuncWithHeaders(matcher, status, nil, body)
}

// StubFuncWithHeaders answers requests accepted by matcher with headers.
func (m *MockClient) StubFuncWithHeaders(
	matcher func(*Request) bool,
	status int,
	headers http.Header,
	body string,
) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  matcher,
		response: &stubResponse{status: status, headers: headers, body: body},
	})
	return m
}

// StubFuncError fails requests accepted by matcher with err.
func (m *MockClient) StubFuncError(matcher func(*Request) bool, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, err: err})
	return m
}

// OnRequest sets a hook called with every executed request.
func (m *MockClient) OnRequest(fn func(*Request)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// Execute implements Client.
func (m *MockClient) Execute(ctx context.Context, req *Request, _ Options) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return s.response.build(req), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return m.defaultResp.build(req), nil
	}
	return nil, errors.New("no stub found for request: " + req.Method().String() + " " + req.URL())
}

// Requests returns every executed request.
func (m *MockClient) Requests() []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Request{}, m.requests...)
}

// RequestCount returns the number of executed requests.
func (m *MockClient) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockClient) LastRequest() *Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded requests and stubs.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

// build creates a fresh Response so that every call can read its body.
func (s *stubResponse) build(req *Request) *Response {
	resp := NewResponse(s.status, []byte(s.body), req)
	if s.headers != nil {
		resp.Headers = copyHeaders(s.headers)
	}
	return resp
}

func pathOf(req *Request) string {
	u, err := url.Parse(req.URL())
	if err != nil {
		return ""
	}
	return u.Path
}
