package caravel

import (
	"net/http"
	"path"
	"strings"
)

// lane is the request class a strategy is keyed on. Classification is static:
// data-endpoint prefixes are API, full-page loads are navigation, everything
// else same-origin is an asset. Cross-origin traffic is never intercepted.
type lane int

const (
	laneAsset lane = iota
	laneNavigation
	laneAPI
	lanePassthrough
)

// Transport is the request dispatcher: an http.RoundTripper that routes every
// outbound request to exactly one caching strategy. It owns no state of its
// own; the cache store and repository are reached through the worker.
type Transport struct {
	Wrapped http.RoundTripper // Base round tripper for network fetches; defaults to http.DefaultTransport

	worker *Worker
}

var _ http.RoundTripper = (*Transport)(nil)

func (transport *Transport) base() http.RoundTripper {
	if transport.Wrapped != nil {
		return transport.Wrapped
	}
	return http.DefaultTransport
}

// RoundTrip implements the http.RoundTripper interface and is the dispatcher's
// sole public operation. Cross-origin requests pass through untouched.
func (transport *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch transport.worker.classify(req) {
	case lanePassthrough:
		return transport.base().RoundTrip(req)
	case laneAPI:
		if isMutating(req.Method) {
			return transport.deferredWrite(req)
		}
		return transport.staleWhileRevalidate(req)
	case laneNavigation:
		return transport.networkFirst(req)
	default:
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			return transport.base().RoundTrip(req)
		}
		return transport.cacheFirst(req)
	}
}

// classify assigns the request to exactly one lane.
func (worker *Worker) classify(req *http.Request) lane {
	if !worker.sameOrigin(req) {
		return lanePassthrough
	}
	for _, prefix := range worker.Config.APIPrefixes {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return laneAPI
		}
	}
	if isNavigation(req) {
		return laneNavigation
	}
	return laneAsset
}

// sameOrigin reports whether the request targets the application origin.
// Scheme differences are ignored so proxied http requests for an https origin
// still classify; only the host decides.
func (worker *Worker) sameOrigin(req *http.Request) bool {
	origin := worker.Origin()
	if origin == nil {
		return false
	}
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	return strings.EqualFold(host, origin.Host)
}

// isNavigation reports whether the request is a full-page load. Browsers mark
// these with Sec-Fetch-Mode: navigate; an Accept header preferring HTML on a
// GET is the fallback signal for clients that do not send fetch metadata.
func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	if req.Method != http.MethodGet {
		return false
	}
	accept := req.Header.Get("Accept")
	return strings.HasPrefix(accept, "text/html") || strings.Contains(accept, "text/html,")
}

// isMutating reports whether the method implies a deferred-write candidate.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// imageExtensions are the asset suffixes that receive the offline placeholder
// instead of a hard failure.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".avif": true,
}

// isImageRequest reports whether a failed asset request should fall back to the
// placeholder image rather than propagate the failure.
func isImageRequest(req *http.Request) bool {
	if strings.HasPrefix(req.Header.Get("Accept"), "image/") {
		return true
	}
	return imageExtensions[strings.ToLower(path.Ext(req.URL.Path))]
}
