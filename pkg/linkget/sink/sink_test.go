package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/murakmii/linkget/pkg/linkget"
)

func buildContext() context.Context {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	return linkget.ContextWithLogger(context.Background(), logrus.NewEntry(logger))
}

func buildResult() *linkget.Result {
	return linkget.NewResult([]linkget.Link{
		{URL: "http://example.com", Text: "Entry point"},
		{URL: "http://example.com/a", Text: "日本語 <b>&"},
		{URL: "http://other.com/b", Text: ""},
		{URL: "http://example.com/c", Text: "semi;colon \"quoted\""},
	}, time.Date(2026, 10, 15, 9, 8, 7, 0, time.Local))
}

const (
	wantJSON = `[
    [
        "http://example.com",
        "Entry point"
    ],
    [
        "http://example.com/a",
        "日本語 <b>&"
    ],
    [
        "http://other.com/b",
        ""
    ],
    [
        "http://example.com/c",
        "semi;colon \"quoted\""
    ]
]`

	wantTxt = "http://example.com : Entry point\n" +
		"http://example.com/a : 日本語 <b>&\n" +
		"http://other.com/b : \n" +
		"http://example.com/c : semi;colon \"quoted\"\n"

	wantCSV = "\xef\xbb\xbf" +
		"http://example.com;Entry point\r\n" +
		"http://example.com/a;日本語 <b>&\r\n" +
		"http://other.com/b;\r\n" +
		"http://example.com/c;\"semi;colon \"\"quoted\"\"\"\r\n"
)

func TestRenderers(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "json", want: wantJSON},
		{format: "txt", want: wantTxt},
		{format: "csv", want: wantCSV},
	}

	for _, tt := range tests {
		f, err := lookupFormat(tt.format)
		if err != nil {
			t.Fatalf("lookupFormat(%s) = %v", tt.format, err)
		}

		got, err := f.render(buildResult().Links)
		if err != nil {
			t.Errorf("render(%s) = %v", tt.format, err)
			continue
		}

		if string(got) != tt.want {
			t.Errorf("render(%s) = %q, want = %q", tt.format, string(got), tt.want)
		}
	}

	t.Run("リンクがない場合", func(t *testing.T) {
		got, _ := renderJSON(linkget.NewResult(nil, time.Now()).Links)
		if string(got) != "[]" {
			t.Errorf("renderJSON(empty) = %s, want = []", string(got))
		}

		got, _ = renderTxt(nil)
		if len(got) != 0 {
			t.Errorf("renderTxt(empty) = %q, want = empty", string(got))
		}
	})

	t.Run("未知の形式の場合、エラーを返す", func(t *testing.T) {
		if _, err := lookupFormat("xml"); err == nil {
			t.Errorf("lookupFormat(xml) = nil, want = error")
		}
	})
}

func TestRenderCSV_Quoting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "先頭が空白でも囲まない", text: " Home", want: "http://example.com; Home\r\n"},
		{name: "タブやバックスラッシュは囲まない", text: "\tA\\.", want: "http://example.com;\tA\\.\r\n"},
		{name: "改行を含む場合は囲む", text: "a\nb", want: "http://example.com;\"a\nb\"\r\n"},
		{name: "CRを含む場合は囲む", text: "a\rb", want: "http://example.com;\"a\rb\"\r\n"},
		{name: "'\"'を含む場合は重ねて囲む", text: `say "hi"`, want: "http://example.com;\"say \"\"hi\"\"\"\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderCSV([]linkget.Link{{URL: "http://example.com", Text: tt.text}})
			if err != nil {
				t.Fatalf("renderCSV() = %v", err)
			}

			if string(got) != "\xef\xbb\xbf"+tt.want {
				t.Errorf("renderCSV() = %q, want = %q", string(got), "\xef\xbb\xbf"+tt.want)
			}
		})
	}
}

func TestRenderJSON_LineSeparators(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "U+2028とU+2029はそのまま出力する", text: "a\u2028b\u2029c", want: `["http://example.com","a` + "\u2028" + `b` + "\u2029" + `c"]`},
		{name: "文字列としての\\u2028はエスケープしたまま出力する", text: `a\u2028`, want: `["http://example.com","a\\u2028"]`},
		{name: "他のエスケープは変えない", text: "tab\t\"q\"", want: `["http://example.com","tab\t\"q\""]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalPair(linkget.Link{URL: "http://example.com", Text: tt.text})
			if err != nil {
				t.Fatalf("marshalPair() = %v", err)
			}

			if got != tt.want {
				t.Errorf("marshalPair() = %q, want = %q", got, tt.want)
			}

			rendered, _ := renderJSON([]linkget.Link{{URL: "http://example.com", Text: tt.text}})
			var decoded [][2]string
			if err := json.Unmarshal(rendered, &decoded); err != nil || decoded[0][1] != tt.text {
				t.Errorf("renderJSON() = %q, decoded = %v, err = %v", string(rendered), decoded, err)
			}
		})
	}
}

func TestFileSink_Render(t *testing.T) {
	dir, err := ioutil.TempDir("", "linkget-sink")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	conf := linkget.NewConfiguration()
	conf.OutputDir = dir

	tests := []struct {
		provider linkget.SinkProviderFunc
		file     string
		want     string
	}{
		{provider: JSONSinkProvider, file: "links_json_2026-10-15 09-08-07.json", want: wantJSON},
		{provider: TxtSinkProvider, file: "links_txt_2026-10-15 09-08-07.txt", want: wantTxt},
		{provider: CSVSinkProvider, file: "links_csv_2026-10-15 09-08-07.csv", want: wantCSV},
	}

	for _, tt := range tests {
		s, err := tt.provider(buildContext(), conf)
		if err != nil {
			t.Fatalf("provider() = %v", err)
		}

		if err = s.Render(buildContext(), buildResult()); err != nil {
			t.Errorf("Render() = %v", err)
			continue
		}

		got, err := ioutil.ReadFile(filepath.Join(dir, tt.file))
		if err != nil {
			t.Errorf("Render() does NOT write %s: %v", tt.file, err)
			continue
		}

		if string(got) != tt.want {
			t.Errorf("content of %s = %q, want = %q", tt.file, string(got), tt.want)
		}

		_ = s.Finish()
	}

	t.Run("出力先ディレクトリが存在しない場合、エラーを返す", func(t *testing.T) {
		conf := linkget.NewConfiguration()
		conf.OutputDir = filepath.Join(dir, "missing")

		s, _ := TxtSinkProvider(buildContext(), conf)
		if err := s.Render(buildContext(), buildResult()); err == nil {
			t.Errorf("Render() = nil, want = error")
		}
	})
}

func TestScreenSink_Render(t *testing.T) {
	out := bytes.NewBuffer(nil)
	s := &screenSink{out: out}

	if err := s.Render(buildContext(), buildResult()); err != nil {
		t.Errorf("Render() = %v", err)
	}

	if out.String() != wantTxt {
		t.Errorf("Render() wrote %q, want = %q", out.String(), wantTxt)
	}
}
