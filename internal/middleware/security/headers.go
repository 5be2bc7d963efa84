// Package security sets the response headers every endpoint carries.
package security

import (
	"fmt"
	"net/http"
)

type HeadersConfig struct {
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	HSTSMaxAge          int
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		HSTSMaxAge:          31536000,
	}
}

func Headers(config HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", config.XContentTypeOptions)
			h.Set("X-Frame-Options", config.XFrameOptions)
			h.Set("Referrer-Policy", config.ReferrerPolicy)
			if r.TLS != nil && config.HSTSMaxAge > 0 {
				h.Set("Strict-Transport-Security",
					fmt.Sprintf("max-age=%d; includeSubDomains", config.HSTSMaxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
