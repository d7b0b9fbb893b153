package fn

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", func(body []byte, query url.Values, method string, _ *store.Store) (Response, error) {
		return Response{JSON: map[string]any{"body": string(body), "method": method, "q": query.Get("q")}}, nil
	})

	resp, err := d.Invoke("echo", []byte("hi"), url.Values{"q": {"x"}}, http.MethodPost, store.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, map[string]any{"body": "hi", "method": "POST", "q": "x"}, resp.JSON)
}

func TestInvokeDefaultsStatus(t *testing.T) {
	d := NewDispatcher()
	d.Register("f", func([]byte, url.Values, string, *store.Store) (Response, error) {
		return Response{Text: "ok"}, nil
	})

	resp, err := d.Invoke("f", nil, nil, http.MethodGet, store.New())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestInvokeUnregistered(t *testing.T) {
	d := NewDispatcher()

	_, err := d.Invoke("missing", nil, nil, http.MethodGet, store.New())
	var apiErr *httputil.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestInvokeWrapsHandlerError(t *testing.T) {
	d := NewDispatcher()
	d.Register("broken", func([]byte, url.Values, string, *store.Store) (Response, error) {
		return Response{}, errors.New("boom")
	})

	_, err := d.Invoke("broken", nil, nil, http.MethodGet, store.New())
	var apiErr *httputil.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, httputil.CodeHandlerFailure, apiErr.Code)
}

func TestInvokeRecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.Register("panicky", func([]byte, url.Values, string, *store.Store) (Response, error) {
		panic("oh no")
	})

	_, err := d.Invoke("panicky", nil, nil, http.MethodGet, store.New())
	var apiErr *httputil.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "oh no")
}

func TestResponseWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	Response{Status: http.StatusOK, JSON: map[string]any{"ok": true}}.Write(w)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())
}

func TestResponseWriteText(t *testing.T) {
	w := httptest.NewRecorder()
	Response{Status: http.StatusAccepted, Text: "done"}.Write(w)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "done", w.Body.String())
}

func TestResponseWriteBinary(t *testing.T) {
	w := httptest.NewRecorder()
	Response{Status: http.StatusOK, Binary: []byte{0x1, 0x2}}.Write(w)

	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x1, 0x2}, w.Body.Bytes())
}

func TestResponseWriteBinaryContentType(t *testing.T) {
	w := httptest.NewRecorder()
	Response{Status: http.StatusOK, Binary: []byte("%PDF"), ContentType: "application/pdf"}.Write(w)

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}
