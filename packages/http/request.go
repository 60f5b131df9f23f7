package http

import (
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
)

// Outbound is the wire-level request handed to a Transport.
type Outbound struct {
	Method  string
	URL     string
	Headers []model.Header
	Body    []byte
}

// NewOutbound copies an executable so transports never alias the caller's slices.
func NewOutbound(exec *request.Executable) *Outbound {
	out := &Outbound{
		Method:  exec.Method,
		URL:     exec.URL,
		Headers: make([]model.Header, len(exec.Headers)),
	}
	copy(out.Headers, exec.Headers)
	if exec.Body != nil {
		out.Body = make([]byte, len(exec.Body))
		copy(out.Body, exec.Body)
	}
	return out
}

func (o *Outbound) Header(key string) string {
	value := ""
	for _, h := range o.Headers {
		if strings.EqualFold(h.Key, key) {
			value = h.Value
		}
	}
	return value
}

func (o *Outbound) hasHeader(key string) bool {
	for _, h := range o.Headers {
		if strings.EqualFold(h.Key, key) {
			return true
		}
	}
	return false
}
