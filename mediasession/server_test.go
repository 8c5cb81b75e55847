package mediasession

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ServesFullBodyWithoutRangeHeader(t *testing.T) {
	data := randomBytes(5000)
	upstream := httptest.NewServer(plainRangeHandler(data))
	defer upstream.Close()

	session := newSession(DefaultConfig(), newTestResolved(upstream.URL, int64(len(data))), &http.Client{})
	defer session.Close()

	handler := &Handler{Session: session}
	front := httptest.NewServer(handler)
	defer front.Close()

	resp, err := http.Get(front.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, body)
}

func TestHandler_ServesPartialContentForRangeRequest(t *testing.T) {
	data := randomBytes(5000)
	upstream := httptest.NewServer(plainRangeHandler(data))
	defer upstream.Close()

	session := newSession(DefaultConfig(), newTestResolved(upstream.URL, int64(len(data))), &http.Client{})
	defer session.Close()

	handler := &Handler{Session: session}
	front := httptest.NewServer(handler)
	defer front.Close()

	req, err := http.NewRequest(http.MethodGet, front.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=100-199")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data[100:200], body)
}

func TestHandler_RejectsUnsatisfiableRange(t *testing.T) {
	data := randomBytes(100)
	upstream := httptest.NewServer(plainRangeHandler(data))
	defer upstream.Close()

	session := newSession(DefaultConfig(), newTestResolved(upstream.URL, int64(len(data))), &http.Client{})
	defer session.Close()

	handler := &Handler{Session: session}
	front := httptest.NewServer(handler)
	defer front.Close()

	req, err := http.NewRequest(http.MethodGet, front.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=500-600")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
}
