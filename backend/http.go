package backend

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient returns a client for backend APIs. It never retries and hands
// every response back to the caller, status codes included. jar may be nil.
func NewHTTPClient(timeout time.Duration, jar http.CookieJar) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.Logger = nil
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient.Timeout = timeout
	c.HTTPClient.Jar = jar
	return c
}
