//go:build !debugproxy

package session

import (
	"net/http"
	"net/url"
)

func proxyFunc() func(*http.Request) (*url.URL, error) {
	return http.ProxyFromEnvironment
}
