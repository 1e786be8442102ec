package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/api"
)

// PerformRequest runs a request against the server's echo instance
// without binding a listener. body is JSON-marshalled when non-nil.
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body interface{}, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set(echoHeaderContentType, echoMIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}

const (
	echoHeaderContentType   = "Content-Type"
	echoMIMEApplicationJSON = "application/json"
)

// HeadersWithAuth returns headers carrying the given bearer token.
func HeadersWithAuth(t *testing.T, token string) http.Header {
	t.Helper()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	return headers
}

// ParseResponseBody unmarshals the recorded JSON body into v.
func ParseResponseBody(t *testing.T, res *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), v))
}
