// Package header provides header handling for the bounder relay.
//
// The relay sits between one upstream stream source and many clients:
//
//	Upstream source --> Relay --> Client 1..N
//
// The upstream leg and each client leg frame their bodies independently, so
// transport-level headers from the upstream response are not copied to clients.
package header

import (
	"encoding/base64"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/bounder/pkg/utils"
)

// UserAgent identifies the relay to the upstream source.
var UserAgent = "bounder/" + utils.Version

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied down to clients.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The upstream stream is open-ended and each client joins mid-stream, so
	// any upstream length is wrong for the client.
	"Content-Length": {},
}

// Forwardable returns a copy of h without the headers that must not be
// forwarded to clients.
func Forwardable(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SetUpstreamRequestHeaders sets the headers the relay sends to the upstream
// source. user is an optional "user:password" credential sent as HTTP Basic
// auth.
func SetUpstreamRequestHeaders(req *http.Request, user string) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", UserAgent)
	if user != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user)))
	}
}

// SetClientResponseHeaders adds stream headers, already filtered by
// Forwardable, to the Fiber response for one client. Each value is added on
// its own so headers like Set-Cookie are not comma-folded.
func SetClientResponseHeaders(c *fiber.Ctx, h http.Header) {
	resp := &c.Context().Response.Header
	for k, v := range h {
		for _, value := range v {
			resp.Add(k, value)
		}
	}
}
