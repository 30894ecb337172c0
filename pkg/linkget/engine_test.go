package linkget

import (
	"context"
	"fmt"
	"io/ioutil"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/xerrors"

	"github.com/sirupsen/logrus"
)

type mockFetcher struct {
	pages   map[string]string
	fetched []string
}

func newMockFetcher(pages map[string]string) *mockFetcher {
	return &mockFetcher{pages: pages, fetched: make([]string, 0)}
}

func (f *mockFetcher) Fetch(_ context.Context, url string) string {
	f.fetched = append(f.fetched, url)
	return f.pages[url]
}

func (f *mockFetcher) Finish() error {
	return nil
}

type mockTracer struct {
	fetched  int
	accepted int
}

func (t *mockTracer) TraceFetched(_ context.Context, _ float64, _ bool) { t.fetched++ }
func (t *mockTracer) TraceAccepted(_ context.Context)                  { t.accepted++ }
func (t *mockTracer) Finish() error                                    { return nil }

func buildContext() context.Context {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)
	return ContextWithLogger(context.Background(), logrus.NewEntry(logger))
}

func buildEngineConf(seed string, limit uint) *Configuration {
	conf := NewConfiguration()
	conf.SeedURL = seed
	conf.Limit = limit
	conf.DedupeUnique = true
	return conf
}

func TestEngine_Run(t *testing.T) {
	t.Run("起点のページからリンクを辿り、受け入れた順に返す", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com": `<html><body>
				<a href="/a">A</a>
				<a href="http://other.com/b"></a>
				<a href="rel.html">R</a>
			</body></html>`,
		})

		engine := NewEngine(buildEngineConf("example.com", 100), fetcher)
		links, err := engine.Run(buildContext())
		if err != nil {
			t.Fatalf("Run() returns error: %v", err)
		}

		want := []Link{
			{URL: "http://example.com", Text: "Entry point"},
			{URL: "http://example.com/a", Text: "A"},
			{URL: "http://other.com/b", Text: ""},
		}
		if !reflect.DeepEqual(links, want) {
			t.Errorf("Run() = %v, want = %v", links, want)
		}

		wantFetched := []string{"http://example.com", "http://example.com/a", "http://other.com/b"}
		if !reflect.DeepEqual(fetcher.fetched, wantFetched) {
			t.Errorf("fetched = %v, want = %v", fetcher.fetched, wantFetched)
		}
	})

	t.Run("受け入れたリンクの数だけトレーサーに通知する", func(t *testing.T) {
		tests := []struct {
			name  string
			limit uint
			want  int
		}{
			{name: "上限に達しない場合", limit: 100, want: 3},
			{name: "ページの途中で上限に達した場合", limit: 2, want: 2},
			{name: "起点のURLのみの場合", limit: 1, want: 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fetcher := newMockFetcher(map[string]string{
					"http://example.com": `<a href="/a">A</a><a href="/a">A</a><a href="/b">B</a>`,
				})
				tracer := &mockTracer{}

				links, _ := NewEngine(buildEngineConf("example.com", tt.limit), fetcher).Run(ContextWithTracer(buildContext(), tracer))
				if tracer.accepted != tt.want || tracer.accepted != len(links) {
					t.Errorf("accepted = %d, want = %d (links = %d)", tracer.accepted, tt.want, len(links))
				}
			})
		}
	})

	t.Run("起点のURLが無い場合、何も取得せずにエラーを返す", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{})
		engine := NewEngine(buildEngineConf("", 100), fetcher)

		_, err := engine.Run(buildContext())
		if !xerrors.Is(err, ErrNoSeedURL) {
			t.Errorf("Run() error = %v, want = %v", err, ErrNoSeedURL)
		}

		if len(fetcher.fetched) != 0 {
			t.Errorf("fetched = %v, want = none", fetcher.fetched)
		}

		if engine.State() != Idle {
			t.Errorf("State() = %s, want = idle", engine.State())
		}
	})

	t.Run("上限が1の場合、起点のURLのみを返し何も取得しない", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com": `<a href="/a">A</a>`,
		})

		links, _ := NewEngine(buildEngineConf("example.com", 1), fetcher).Run(buildContext())
		if len(links) != 1 || links[0].Text != EntryPointText {
			t.Errorf("Run() = %v, want = only entry point", links)
		}

		if len(fetcher.fetched) != 0 {
			t.Errorf("fetched = %v, want = none", fetcher.fetched)
		}
	})

	t.Run("上限が0の場合も起点のURLは保持する", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{})

		links, _ := NewEngine(buildEngineConf("example.com", 0), fetcher).Run(buildContext())
		if len(links) != 1 {
			t.Errorf("Run() = %v, want = only entry point", links)
		}
	})

	t.Run("上限に達した時点で、ページの途中でも終了する", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com": `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`,
		})

		links, _ := NewEngine(buildEngineConf("example.com", 3), fetcher).Run(buildContext())
		if len(links) != 3 || links[2].URL != "http://example.com/2" {
			t.Errorf("Run() = %v, want = 3 links ending with /2", links)
		}

		if len(fetcher.fetched) != 1 {
			t.Errorf("fetched = %v, want = only seed", fetcher.fetched)
		}
	})

	t.Run("取得に失敗したページは無視してクロールを続ける", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com":    `<a href="/down">down</a><a href="/up">up</a>`,
			"http://example.com/up": `<a href="/leaf">leaf</a>`,
		})

		links, _ := NewEngine(buildEngineConf("example.com", 100), fetcher).Run(buildContext())
		if len(links) != 4 || links[3].URL != "http://example.com/leaf" {
			t.Errorf("Run() = %v, want = 4 links ending with /leaf", links)
		}
	})

	t.Run("幅優先で辿る", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com":   `<a href="/a">a</a><a href="/b">b</a>`,
			"http://example.com/a": `<a href="/a/1">a1</a>`,
			"http://example.com/b": `<a href="/b/1">b1</a>`,
		})

		links, _ := NewEngine(buildEngineConf("example.com", 100), fetcher).Run(buildContext())

		got := make([]string, 0, len(links))
		for _, l := range links {
			got = append(got, strings.TrimPrefix(l.URL, "http://example.com"))
		}

		want := []string{"", "/a", "/b", "/a/1", "/b/1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Run() order = %v, want = %v", got, want)
		}
	})

	t.Run("重複排除が無効でも上限で停止する", func(t *testing.T) {
		fetcher := newMockFetcher(map[string]string{
			"http://example.com": `<a href="http://example.com">self</a>`,
		})

		conf := buildEngineConf("example.com", 10)
		conf.DedupeUnique = false

		links, _ := NewEngine(conf, fetcher).Run(buildContext())
		if len(links) != 10 {
			t.Errorf("len(Run()) = %d, want = 10", len(links))
		}
	})
}

func TestEngine_Run_Limit(t *testing.T) {
	// 50ページがそれぞれ7ページへリンクしているグラフ
	pages := make(map[string]string)
	for i := 0; i < 50; i++ {
		var body strings.Builder
		for k := 1; k <= 7; k++ {
			fmt.Fprintf(&body, `<a href="/p%d">page %d</a>`, (i*7+k)%50, k)
		}

		pages[fmt.Sprintf("http://example.com/p%d", i)] = body.String()
		if i == 0 {
			pages["http://example.com"] = body.String()
		}
	}

	for _, dedupe := range []bool{true, false} {
		for limit := uint(1); limit <= 60; limit++ {
			t.Run(fmt.Sprintf("dedupe=%v,limit=%d", dedupe, limit), func(t *testing.T) {
				conf := buildEngineConf("example.com", limit)
				conf.DedupeUnique = dedupe

				links, _ := NewEngine(conf, newMockFetcher(pages)).Run(buildContext())
				if uint(len(links)) > limit {
					t.Errorf("len(Run()) = %d, exceeds limit %d", len(links), limit)
				}

				if !dedupe && uint(len(links)) != limit {
					t.Errorf("len(Run()) = %d, want = %d", len(links), limit)
				}
			})
		}
	}
}

func TestEngine_State(t *testing.T) {
	fetcher := newMockFetcher(map[string]string{
		"http://example.com": `<a href="/a">A</a>`,
	})

	engine := NewEngine(buildEngineConf("example.com", 100), fetcher)
	if engine.State() != Idle || engine.BaseURL() != "" {
		t.Errorf("State() = %s, BaseURL() = %s before run", engine.State(), engine.BaseURL())
	}

	first, _ := engine.Run(buildContext())
	if engine.State() != Finished {
		t.Errorf("State() = %s, want = finished", engine.State())
	}

	if engine.BaseURL() != "http://example.com" {
		t.Errorf("BaseURL() = %s, want = http://example.com", engine.BaseURL())
	}

	fetchedCount := len(fetcher.fetched)
	second, _ := engine.Run(buildContext())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second Run() = %v, want = %v", second, first)
	}

	if len(fetcher.fetched) != fetchedCount {
		t.Errorf("second Run() fetched pages again")
	}
}
