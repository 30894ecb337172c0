package linkget

import (
	"context"
	"time"

	"golang.org/x/xerrors"
)

var ErrNoSeedURL = xerrors.New("seed url is not defined")

// 何らかの終了処理表すFinishメソッドの実装を要求するinterface
type Finisher interface {
	Finish() error
}

// 1ページ分のHTMLを取得する実装を要求するinterface
// 取得に失敗した場合はエラーではなく空文字列を返すこと
type PageFetcher interface {
	Finisher

	Fetch(ctx context.Context, url string) string
}

// クロール結果の出力先の実装を要求するinterface
type Sink interface {
	Finisher

	Render(ctx context.Context, result *Result) error
}

// クロール中の動作状況をトレースするトレーサーの実装を要求するinterface
type Tracer interface {
	Finisher

	// 1 HTTP GET完了するごとに呼び出される
	TraceFetched(ctx context.Context, elapsed float64, ok bool)

	// LinkStoreにリンクが1つ受け入れられるごとに呼び出される
	TraceAccepted(ctx context.Context)
}

// 何もしないデフォルトのトレーサーを実装しておく
type NullTracer struct{}

func NewNullTracer() Tracer                                            { return NullTracer{} }
func (t NullTracer) TraceFetched(_ context.Context, _ float64, _ bool) {}
func (t NullTracer) TraceAccepted(_ context.Context)                   {}
func (t NullTracer) Finish() error                                     { return nil }

// 指定の設定に基づいてクロールを開始し、終了後に結果を出力する
func Start(conf *Configuration) error {
	if len(conf.SeedURL) == 0 {
		return ErrNoSeedURL
	}

	ctx, err := RootContext(conf)
	if err != nil {
		return err
	}

	return run(ctx, conf, time.Now)
}

func run(ctx context.Context, conf *Configuration, now func() time.Time) error {
	logger := LoggerFromContext(ctx)
	tracer := TracerFromContext(ctx)
	defer func() {
		if err := tracer.Finish(); err != nil {
			logger.Errorf("failed to finish tracer: %v", err)
		}
	}()

	if !conf.Recursive {
		logger.Warn("'-nr' is accepted but has no effect on crawling")
	}

	// 出力先の準備はクロール前に済ませる
	sinks, err := buildSinks(ctx, conf)
	defer func() {
		resOwners := make([]Finisher, 0, len(sinks))
		for _, s := range sinks {
			resOwners = append(resOwners, s)
		}
		finishAll(ctx, resOwners)
	}()
	if err != nil {
		return err
	}

	fetcher, err := conf.FetcherProvider(SubSystemContext(ctx, "fetcher"), conf)
	if err != nil {
		return xerrors.Errorf("failed to setup fetcher: %w", err)
	}
	defer finishAll(ctx, []Finisher{fetcher})

	logger.Infof("started at %s", now().Format(time.RFC3339))
	logger.Infof("finding %d links...", conf.Limit)

	links, err := NewEngine(conf, fetcher).Run(SubSystemContext(ctx, "engine"))
	if err != nil {
		return err
	}

	result := NewResult(links, now())
	var firstErr error
	for _, s := range sinks {
		if err := s.Render(ctx, result); err != nil {
			logger.Errorf("failed to render result: %v", err)
			if firstErr == nil {
				firstErr = xerrors.Errorf("failed to render result: %w", err)
			}
		}
	}

	logger.Infof("finished at %s", now().Format(time.RFC3339))
	logger.Infof("found links: %d", len(links))
	return firstErr
}

func buildSinks(ctx context.Context, conf *Configuration) ([]Sink, error) {
	sinks := make([]Sink, 0, len(conf.Outputs))

	for _, name := range conf.EnabledOutputs() {
		provider, ok := conf.SinkProviders[name]
		if !ok {
			return sinks, xerrors.Errorf("no sink is registered for output '%s'", name)
		}

		sink, err := provider(SubSystemContext(ctx, "sink-"+name), conf)
		if err != nil {
			return sinks, xerrors.Errorf("failed to setup sink '%s': %w", name, err)
		}

		sinks = append(sinks, sink)
	}

	return sinks, nil
}

func finishAll(ctx context.Context, resOwners []Finisher) {
	for _, resOwner := range resOwners {
		if resOwner == nil {
			continue
		}

		if err := resOwner.Finish(); err != nil {
			LoggerFromContext(ctx).Errorf("failed to finish component: %v", err)
		}
	}
}
