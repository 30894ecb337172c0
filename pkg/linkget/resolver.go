package linkget

import "strings"

const (
	schemePrefix  = "http"
	defaultScheme = "http://"
)

// hrefを絶対URLにする。解決できなければfalseを返す
// ルートからの相対パスは、現在のページではなく常にbaseURL(起点のURL)に単純に連結する
func Resolve(baseURL, href string) (string, bool) {
	if strings.HasPrefix(href, schemePrefix) {
		return href, true
	}

	if !strings.HasPrefix(href, "/") {
		return "", false
	}

	return baseURL + href, true
}

// 起点のURLにスキームがなければ"http://"を付ける
func NormalizeSeedURL(seed string) string {
	if strings.HasPrefix(seed, schemePrefix) {
		return seed
	}

	return defaultScheme + seed
}
