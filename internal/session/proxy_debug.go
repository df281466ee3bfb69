//go:build debugproxy

package session

import (
	"net/http"
	"net/url"
)

// debugProxy is where Charles or Fiddler listen by default.
const debugProxy = "http://127.0.0.1:8888"

func proxyFunc() func(*http.Request) (*url.URL, error) {
	u, err := url.Parse(debugProxy)
	if err != nil {
		panic(err)
	}
	return http.ProxyURL(u)
}
