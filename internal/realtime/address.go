package realtime

import (
	"fmt"
	"net/url"
)

// AddressResolver derives the realtime endpoint for the current deployment.  A page
// served from the production hostname always talks to the fixed production backend;
// other deployments follow the configured API base url, and without one the socket
// goes back to the page's own origin.
type AddressResolver struct {
	ProductionHostname      string
	ProductionWebsocketHost string
	ApiBaseUrl              string
	OriginHost              string
	OriginScheme            string
}

// Resolve returns wss://<host>/ws/<resource>/<id>/ (ws:// for plain-http deployments).
func (r AddressResolver) Resolve(resource string, id string) string {
	scheme, host := r.endpoint()
	return fmt.Sprintf("%s://%s/ws/%s/%s/", scheme, host, url.PathEscape(resource), url.PathEscape(id))
}

func (r AddressResolver) endpoint() (string, string) {
	originHostname := r.OriginHost
	if u, err := url.Parse("//" + r.OriginHost); err == nil {
		originHostname = u.Hostname()
	}

	if r.ProductionHostname != "" && originHostname == r.ProductionHostname {
		return "wss", r.ProductionWebsocketHost
	}

	// A relative api base (a same-origin proxy) names no backend host
	if u, err := url.Parse(r.ApiBaseUrl); err == nil && u.Host != "" {
		scheme := "wss"
		if u.Scheme == "http" {
			scheme = "ws"
		}
		return scheme, u.Host
	}

	if r.OriginScheme == "https" {
		return "wss", r.OriginHost
	}
	return "ws", r.OriginHost
}
