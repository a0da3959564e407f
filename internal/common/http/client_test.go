package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	assert.Equal(t, 100*time.Second, config.Timeout)
	assert.Equal(t, 100, config.MaxIdleConns)
	assert.Equal(t, 10, config.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, config.IdleConnTimeout)
	assert.False(t, config.DisableKeepAlives)
	assert.False(t, config.DisableCompression)
	assert.Nil(t, config.Transport)
	assert.Nil(t, config.CheckRedirect)
}

func TestClientOptions(t *testing.T) {
	config := DefaultClientConfig()

	for _, opt := range []ClientOption{
		WithTimeout(5 * time.Second),
		WithMaxIdleConns(50),
		WithIdleConnTimeout(time.Minute),
		WithoutKeepAlives(),
		WithoutCompression(),
		WithInsecureSkipVerify(),
	} {
		opt(&config)
	}

	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 50, config.MaxIdleConns)
	assert.Equal(t, time.Minute, config.IdleConnTimeout)
	assert.True(t, config.DisableKeepAlives)
	assert.True(t, config.DisableCompression)
	assert.True(t, config.InsecureSkipVerify)
}

func TestNewHTTPClient_DefaultTransport(t *testing.T) {
	client := NewHTTPClient(WithTimeout(2*time.Second), WithoutCompression(), nil)

	assert.Equal(t, 2*time.Second, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.DisableCompression)
	assert.Nil(t, transport.TLSClientConfig)
}

func TestNewHTTPClient_CustomTransport(t *testing.T) {
	custom := roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	client := NewHTTPClient(WithTransport(custom))

	_, isDefault := client.Transport.(*http.Transport)
	assert.False(t, isDefault)
}

func TestNewHTTPClient_CheckRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithCheckRedirect(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	resp, err := client.Get(server.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
