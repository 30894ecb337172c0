package www

import (
	"net/url"

	"golang.org/x/net/idna"
)

// HTTPリクエストに用いるURLを返す
// ホスト部が国際化ドメイン名ならPunycodeに変換する。変換できなければそのまま返す
func RequestURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || len(u.Host) == 0 {
		return raw
	}

	host, err := idna.ToASCII(u.Hostname())
	if err != nil || host == u.Hostname() {
		return raw
	}

	if port := u.Port(); len(port) > 0 {
		host += ":" + port
	}

	u.Host = host
	return u.String()
}
