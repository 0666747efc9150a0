// Package update checks released pgweave versions against the running
// binary.
package update

import (
	"encoding/json"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
)

// releaseURL serves the latest release metadata. Overridable in tests.
var releaseURL = "https://api.github.com/repos/pgweave/pgweave/releases/latest"

var httpClient = &http.Client{Timeout: 3 * time.Second}

// Available reports whether a release newer than current exists. Network
// failures and unparseable versions read as "no update": the check is
// advisory and must never fail a command.
func Available(current string) (bool, string) {
	cur, err := goversion.NewVersion(current)
	if err != nil {
		return false, ""
	}

	latest := fetchLatest()
	if latest == "" {
		return false, ""
	}
	lat, err := goversion.NewVersion(latest)
	if err != nil {
		return false, ""
	}
	if cur.LessThan(lat) {
		return true, lat.String()
	}
	return false, ""
}

func fetchLatest() string {
	resp, err := httpClient.Get(releaseURL)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return ""
	}
	return release.TagName
}
