package admin

import (
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// EnableHTTP2 configures HTTP/2 for the admin server. TLS servers get
// it automatically; a plaintext server is upgraded to h2c.
func EnableHTTP2(srv *http.Server, useTLS bool) error {
	if useTLS {
		return nil
	}
	srv.Handler = h2c.NewHandler(srv.Handler, &http2.Server{})
	return nil
}
