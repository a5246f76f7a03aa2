package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/mfontaine/aegis/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "203.0.113.7:52611"

	ip := pkghttp.ExtractClientIP(r, nil)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_IgnoresHeadersFromUntrustedSource(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "203.0.113.7:52611"
	r.Header.Set("X-Forwarded-For", "198.51.100.99")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	ip := pkghttp.ExtractClientIP(r, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_HonorsForwardedForFromTrustedProxy(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.1.2.3:44000"
	r.Header.Set("X-Forwarded-For", "198.51.100.99, 10.1.2.3")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	ip := pkghttp.ExtractClientIP(r, config)
	assert.Equal(t, "198.51.100.99", ip)
}

func TestExtractClientIP_RealIPHeader(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.1.2.3:44000"
	r.Header.Set("X-Real-IP", "192.0.2.44")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	ip := pkghttp.ExtractClientIP(r, config)
	assert.Equal(t, "192.0.2.44", ip)
}
