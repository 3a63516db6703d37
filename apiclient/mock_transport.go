package apiclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// MockTransport is a configurable http.RoundTripper for tests. Stub a
// default reply, enqueue a sequence of per-attempt replies, or match
// specific requests; every request that passes through is recorded.
//
//	mock := apiclient.NewMockTransport().
//	    EnqueueError(errors.New("connection reset")).
//	    Enqueue(200, `{"ok":true}`)
//
//	client, _ := apiclient.New(apiclient.WithTransport(mock))
type MockTransport struct {
	mu          sync.Mutex
	queue       []mockReply
	matchers    []mockMatcher
	defaultResp *mockReply
	requests    []*http.Request
	hook        func(*http.Request)
}

type mockReply struct {
	status int
	body   string
	header http.Header
	err    error
}

type mockMatcher struct {
	match func(*http.Request) bool
	reply mockReply
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// RespondWith sets the default reply for requests no other rule matches.
func (m *MockTransport) RespondWith(status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &mockReply{status: status, body: body}
	return m
}

// RespondWithHeader sets the default reply including a header.
func (m *MockTransport) RespondWithHeader(status int, body string, header http.Header) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &mockReply{status: status, body: body, header: header}
	return m
}

// FailWith makes every unmatched request fail with err.
func (m *MockTransport) FailWith(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &mockReply{err: err}
	return m
}

// Enqueue appends a one-shot reply consumed in FIFO order before any
// other rule. Useful for fail-then-succeed retry sequences.
func (m *MockTransport) Enqueue(status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{status: status, body: body})
	return m
}

// EnqueueError appends a one-shot transport error to the reply queue.
func (m *MockTransport) EnqueueError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
	return m
}

// RespondTo replies to requests matching the predicate. Matchers are
// checked in registration order after the queue is drained.
func (m *MockTransport) RespondTo(match func(*http.Request) bool, status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchers = append(m.matchers, mockMatcher{
		match: match,
		reply: mockReply{status: status, body: body},
	})
	return m
}

// OnRequest installs a hook invoked for each request, for assertions or
// capturing details.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.hook

	var reply *mockReply
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		reply = &r
	} else {
		for _, sm := range m.matchers {
			if sm.match(req) {
				r := sm.reply
				reply = &r
				break
			}
		}
		if reply == nil {
			reply = m.defaultResp
		}
	}
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	if reply == nil {
		return nil, errors.New("apiclient: no mock reply for " + req.Method + " " + req.URL.String())
	}
	if reply.err != nil {
		return nil, reply.err
	}

	header := make(http.Header)
	for k, vs := range reply.header {
		header[k] = vs
	}
	return &http.Response{
		StatusCode:    reply.status,
		Status:        strconv.Itoa(reply.status) + " " + http.StatusText(reply.status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewBufferString(reply.body)),
		ContentLength: int64(len(reply.body)),
		Request:       req,
	}, nil
}

// Requests returns a copy of all recorded requests.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all rules and recorded requests.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.matchers = nil
	m.defaultResp = nil
	m.requests = nil
	m.hook = nil
}
