package linkget

import (
	"context"
	"strings"

	"github.com/murakmii/linkget/pkg/linkget/www"
)

const EntryPointText = "Entry point"

type EngineState int

const (
	Idle EngineState = iota
	Running
	Finished
)

func (s EngineState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// 起点のURLから幅優先でリンクを辿り、上限に達するまでLinkStoreに集める
type Engine struct {
	conf     *Configuration
	fetcher  PageFetcher
	store    *LinkStore
	frontier *Frontier
	baseURL  string
	state    EngineState
}

func NewEngine(conf *Configuration, fetcher PageFetcher) *Engine {
	return &Engine{
		conf:     conf,
		fetcher:  fetcher,
		store:    NewLinkStore(conf.DedupeUnique, conf.RequireText),
		frontier: NewFrontier(),
		state:    Idle,
	}
}

func (e *Engine) State() EngineState {
	return e.state
}

// 起点のURLの正規化後の値。Run前は空
func (e *Engine) BaseURL() string {
	return e.baseURL
}

// クロールを実行し、受け入れた順にリンクを返す
// 1つのEngineにつき1度だけ実行できる
func (e *Engine) Run(ctx context.Context) ([]Link, error) {
	if e.state != Idle {
		return e.store.Links(), nil
	}

	if len(e.conf.SeedURL) == 0 {
		return nil, ErrNoSeedURL
	}

	logger := LoggerFromContext(ctx)
	tracer := TracerFromContext(ctx)

	e.state = Running
	e.baseURL = NormalizeSeedURL(e.conf.SeedURL)

	entryPoint := Link{URL: e.baseURL, Text: EntryPointText}
	if e.store.Offer(entryPoint) {
		tracer.TraceAccepted(ctx)
	}
	e.frontier.Push(entryPoint)

	for !e.reachedLimit() && e.frontier.Len() > 0 {
		next, _ := e.frontier.Pop()
		if e.crawl(ctx, tracer, next) {
			break
		}
	}

	e.state = Finished
	logger.Debugf("finished: stored=%d, pending=%d", e.store.Count(), e.frontier.Len())
	return e.store.Links(), nil
}

// 1ページ分の処理。上限に達した場合trueを返す
func (e *Engine) crawl(ctx context.Context, tracer Tracer, link Link) bool {
	logger := LoggerFromContext(ctx)

	body := e.fetcher.Fetch(ctx, link.URL)
	if len(body) == 0 {
		logger.Debugf("no content: %s", link.URL)
		return false
	}

	for _, raw := range www.ExtractLinks(strings.NewReader(body)) {
		absURL, ok := Resolve(e.baseURL, raw.Href)
		if !ok {
			logger.Debugf("dropped unresolvable href: %s", raw.Href)
			continue
		}

		found := Link{URL: absURL, Text: raw.Text}
		if !e.store.Offer(found) {
			continue
		}

		tracer.TraceAccepted(ctx)
		e.frontier.Push(found)

		if e.reachedLimit() {
			return true
		}
	}

	return false
}

func (e *Engine) reachedLimit() bool {
	return uint(e.store.Count()) >= e.conf.Limit
}
