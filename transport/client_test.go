package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyBaseURL(t *testing.T) {
	_, err := New("", "key", 0)
	require.Error(t, err)
}

func TestGet_SendsBearerAndQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/instances/42/logs/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "1700000000.000", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"raw":"a\nb"}`))
	}))
	defer ts.Close()

	c, err := New(ts.URL+"/", "secret", time.Second)
	require.NoError(t, err)

	body, err := c.Get(context.Background(), "api/v0/instances/42/logs/", url.Values{"since": {"1700000000.000"}})
	require.NoError(t, err)
	assert.Equal(t, `{"raw":"a\nb"}`, string(body))
}

func TestGet_NoKeyNoHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c, err := New(ts.URL, "", time.Second)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
}

func TestGet_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := New(ts.URL, "k", time.Second)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/missing", nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "instance not found")
}

func TestStatusError_TruncatesBody(t *testing.T) {
	err := &StatusError{Code: 500, Body: strings.Repeat("x", 500)}
	assert.Less(t, len(err.Error()), 250)

	empty := &StatusError{Code: 502}
	assert.Equal(t, "provider returned 502", empty.Error())
}

func TestStatusError_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes, so byte 200 falls in the middle of one.
	err := &StatusError{Code: 500, Body: "a" + strings.Repeat("é", 150)}
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg), msg)
	assert.True(t, strings.HasSuffix(msg, "é..."), msg)
}

func TestGet_RejectsOversizedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"raw":"`))
		_, _ = w.Write([]byte(strings.Repeat("a", maxBodySize)))
		_, _ = w.Write([]byte(`\nVASTAI_PIPELINE_COMPLETED_SUCCESSFULLY"}`))
	}))
	defer ts.Close()

	c, err := New(ts.URL, "k", 10*time.Second)
	require.NoError(t, err)

	body, err := c.Get(context.Background(), "/api/v0/instances/1/logs/", nil)
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Contains(t, err.Error(), "exceeds 16777216 bytes")
}

func TestGet_BodyAtLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxBodySize)))
	}))
	defer ts.Close()

	c, err := New(ts.URL, "k", 10*time.Second)
	require.NoError(t, err)

	body, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Len(t, body, maxBodySize)
}

func TestGet_PerCallTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c, err := New(ts.URL, "k", 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSetAPIKey(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c, err := New(ts.URL, "old", time.Second)
	require.NoError(t, err)

	_, _ = c.Get(context.Background(), "/a", nil)
	c.SetAPIKey("new")
	_, _ = c.Get(context.Background(), "/a", nil)

	assert.Equal(t, []string{"Bearer old", "Bearer new"}, got)
}
