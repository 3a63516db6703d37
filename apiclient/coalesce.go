package apiclient

import (
	"context"
	"net/http"
)

// coalescable reports whether a send may share an in-flight result:
// idempotent, bodyless reads only.
func coalescable(req *Request) bool {
	return (req.Method == http.MethodGet || req.Method == http.MethodHead) && len(req.Body) == 0
}

// coalescedSend deduplicates concurrent identical sends through the
// client's singleflight group, keyed on the final assembled URL so auth
// query material is part of the identity. All waiters share one Response;
// the flight runs under the initiating caller's context.
func (c *Client) coalescedSend(ctx context.Context, req *Request, targetURL string, send func() (*Response, error)) (*Response, error) {
	if !c.coalesce || !coalescable(req) {
		return send()
	}

	key := req.Method + " " + targetURL
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		return send()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}
