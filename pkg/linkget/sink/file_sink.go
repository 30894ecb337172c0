package sink

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
)

// 結果をカレントディレクトリ(または設定された出力先ディレクトリ)のファイルに書き出す
type fileSink struct {
	format format
	dir    string
}

func JSONSinkProvider(ctx context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	return newFileSink(conf, "json")
}

func TxtSinkProvider(ctx context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	return newFileSink(conf, "txt")
}

func CSVSinkProvider(ctx context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	return newFileSink(conf, "csv")
}

func newFileSink(conf *linkget.Configuration, name string) (linkget.Sink, error) {
	f, err := lookupFormat(name)
	if err != nil {
		return nil, err
	}

	dir := conf.OutputDir
	if len(dir) == 0 {
		dir = "."
	}

	return &fileSink{format: f, dir: dir}, nil
}

func (s *fileSink) Render(ctx context.Context, result *linkget.Result) error {
	content, err := s.format.render(result.Links)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, FileName(s.format.name, s.format.ext, result))
	if err := ioutil.WriteFile(path, content, 0644); err != nil {
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}

	linkget.LoggerFromContext(ctx).Infof("wrote %d links to %s", len(result.Links), path)
	return nil
}

func (s *fileSink) Finish() error { return nil }

// 出力ファイル名。同じ実行の中では全てのファイルで同じ日時を使う
func FileName(name, ext string, result *linkget.Result) string {
	return fmt.Sprintf("links_%s_%s.%s", name, result.Stamp(), ext)
}
