package update

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withReleaseServer(t *testing.T, status int, body string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	prev := releaseURL
	releaseURL = srv.URL
	t.Cleanup(func() { releaseURL = prev })
}

func TestAvailableNewerRelease(t *testing.T) {
	withReleaseServer(t, http.StatusOK, `{"tag_name": "v0.2.0"}`)

	newer, latest := Available("0.1.0")
	assert.True(t, newer)
	assert.Equal(t, "0.2.0", latest)
}

func TestAvailableUpToDate(t *testing.T) {
	withReleaseServer(t, http.StatusOK, `{"tag_name": "v0.1.0"}`)

	newer, _ := Available("0.1.0")
	assert.False(t, newer)
}

func TestAvailableToleratesFailures(t *testing.T) {
	withReleaseServer(t, http.StatusInternalServerError, "")
	newer, _ := Available("0.1.0")
	assert.False(t, newer)

	withReleaseServer(t, http.StatusOK, "not json")
	newer, _ = Available("0.1.0")
	assert.False(t, newer)

	newer, _ = Available("not a version")
	assert.False(t, newer)
}
