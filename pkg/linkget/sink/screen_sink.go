package sink

import (
	"bufio"
	"context"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
)

// 結果を標準出力に1行ずつ書き出す
type screenSink struct {
	out io.Writer
}

func ScreenSinkProvider(_ context.Context, _ *linkget.Configuration) (linkget.Sink, error) {
	return &screenSink{out: os.Stdout}, nil
}

func (s *screenSink) Render(_ context.Context, result *linkget.Result) error {
	w := bufio.NewWriter(s.out)
	for _, link := range result.Links {
		if _, err := w.WriteString(link.String() + "\n"); err != nil {
			return xerrors.Errorf("failed to write to screen: %w", err)
		}
	}

	return w.Flush()
}

func (s *screenSink) Finish() error { return nil }
