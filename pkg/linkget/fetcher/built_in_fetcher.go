package fetcher

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/net/html/charset"
	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
	"github.com/murakmii/linkget/pkg/linkget/www"
)

type builtInFetcher struct {
	userAgent  string
	httpClient *http.Client
	cache      *lru.Cache // nilならキャッシュしない
}

// PageFetcherを生成して返す
func BuiltInFetcherProvider(_ context.Context, conf *linkget.Configuration) (linkget.PageFetcher, error) {
	timeout := conf.FetchTimeout
	if timeout <= 0 {
		timeout = linkget.DefaultFetchTimeout
	}

	f := &builtInFetcher{
		userAgent: conf.UserAgent,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     10 * time.Second,
			},
			// リダイレクトはデフォルトのポリシー(10回まで)で辿る
			CheckRedirect: nil,
			Timeout:       timeout,
		},
	}

	if conf.PageCacheSize > 0 {
		cache, err := lru.New(conf.PageCacheSize)
		if err != nil {
			return nil, xerrors.Errorf("failed to build page cache: %w", err)
		}
		f.cache = cache
	}

	return f, nil
}

// URLが指すページを取得してHTMLを返す
// 接続エラー、タイムアウト、200以外のステータスの場合は空文字列を返す
func (f *builtInFetcher) Fetch(ctx context.Context, url string) string {
	if f.cache != nil {
		if cached, ok := f.cache.Get(url); ok {
			linkget.LoggerFromContext(ctx).Debugf("cache hit: %s", url)
			return cached.(string)
		}
	}

	body, err := f.fetch(ctx, url)
	if err != nil {
		linkget.LoggerFromContext(ctx).Debugf("failed to fetch: %v", err)
	}

	if f.cache != nil {
		f.cache.Add(url, body)
	}

	return body
}

func (f *builtInFetcher) Finish() error {
	f.httpClient.CloseIdleConnections()
	if f.cache != nil {
		f.cache.Purge()
	}
	return nil
}

func (f *builtInFetcher) fetch(ctx context.Context, url string) (string, error) {
	linkget.LoggerFromContext(ctx).Debugf("fetching: %s", url)

	req, err := http.NewRequest("GET", www.RequestURL(url), nil)
	if err != nil {
		return "", xerrors.Errorf("failed to build request for %s: %w", url, err)
	}

	req = req.WithContext(ctx)
	if len(f.userAgent) > 0 {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	body, err := f.do(req)
	elapsed := time.Since(start).Seconds()
	linkget.TracerFromContext(ctx).TraceFetched(ctx, elapsed, err == nil)

	return body, err
}

// ボディの読み込みもタイムアウトの対象になる
func (f *builtInFetcher) do(req *http.Request) (string, error) {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", xerrors.Errorf("failed to request: %w", err)
	}

	defer func() {
		_, _ = io.CopyN(ioutil.Discard, resp.Body, 1<<20)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", xerrors.Errorf("unexpected status %d: %s", resp.StatusCode, req.URL)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", xerrors.Errorf("failed to decode body: %w", err)
	}

	content, err := ioutil.ReadAll(reader)
	if err != nil {
		return "", xerrors.Errorf("failed to read body: %w", err)
	}

	return string(content), nil
}
