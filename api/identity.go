package api

import (
	"errors"
	"net/http"
	"strings"
)

// DefaultIdentityHeader carries the authenticated banker id, set by the
// gateway in front of this service.
const DefaultIdentityHeader = "X-Banker-ID"

var errNoIdentity = errors.New("no banker identity on request")

// IdentityProvider resolves the banker making a request. Authentication
// happens upstream; this only reads its result.
type IdentityProvider interface {
	BankerID(r *http.Request) (string, error)
}

// HeaderIdentity reads the banker id from a request header.
type HeaderIdentity struct {
	Header string
}

func (h HeaderIdentity) BankerID(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = DefaultIdentityHeader
	}
	id := strings.TrimSpace(r.Header.Get(name))
	if id == "" {
		return "", errNoIdentity
	}
	return id, nil
}
