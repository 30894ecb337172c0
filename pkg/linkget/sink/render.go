package sink

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
)

// リンクの一覧をバイト列に変換する関数
type renderer func(links []linkget.Link) ([]byte, error)

type format struct {
	name   string
	ext    string
	render renderer
}

var formats = map[string]format{
	"json": {name: "json", ext: "json", render: renderJSON},
	"txt":  {name: "txt", ext: "txt", render: renderTxt},
	"csv":  {name: "csv", ext: "csv", render: renderCSV},
}

func lookupFormat(name string) (format, error) {
	f, ok := formats[name]
	if !ok {
		return format{}, xerrors.Errorf("unknown format: '%s'", name)
	}

	return f, nil
}

func pairs(links []linkget.Link) [][2]string {
	p := make([][2]string, len(links))
	for i, link := range links {
		p[i] = [2]string{link.URL, link.Text}
	}
	return p
}

// 要素数2の配列の配列として出力する。ASCII以外の文字はエスケープしない
func renderJSON(links []linkget.Link) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	if err := enc.Encode(pairs(links)); err != nil {
		return nil, xerrors.Errorf("failed to encode json: %w", err)
	}

	return unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// encoding/jsonが常にエスケープするU+2028、U+2029を元の文字に戻す
// "\\u2028"のようにバックスラッシュ自体がエスケープされている箇所はそのまま残す
func unescapeLineSeparators(encoded []byte) []byte {
	if !bytes.Contains(encoded, []byte(`\u202`)) {
		return encoded
	}

	out := make([]byte, 0, len(encoded))
	for i := 0; i < len(encoded); i++ {
		if encoded[i] != '\\' || i+1 >= len(encoded) {
			out = append(out, encoded[i])
			continue
		}

		seq := encoded[i:]
		if bytes.HasPrefix(seq, []byte(`\u2028`)) {
			out = append(out, "\u2028"...)
			i += 5
		} else if bytes.HasPrefix(seq, []byte(`\u2029`)) {
			out = append(out, "\u2029"...)
			i += 5
		} else {
			out = append(out, encoded[i], encoded[i+1])
			i++
		}
	}

	return out
}

func renderTxt(links []linkget.Link) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for _, link := range links {
		buf.WriteString(link.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ';'区切り、CRLF、ヘッダーなし、BOM付きUTF-8で出力する
// 区切り文字、'"'、改行を含むフィールドのみ'"'で囲む
func renderCSV(links []linkget.Link) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for _, link := range links {
		buf.WriteString(csvField(link.URL))
		buf.WriteByte(';')
		buf.WriteString(csvField(link.Text))
		buf.WriteString("\r\n")
	}

	encoded, err := unicode.UTF8BOM.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("failed to encode csv: %w", err)
	}

	return encoded, nil
}

func csvField(field string) string {
	if !strings.ContainsAny(field, ";\"\r\n") {
		return field
	}

	return `"` + strings.Replace(field, `"`, `""`, -1) + `"`
}

func marshalPair(link linkget.Link) (string, error) {
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode([2]string{link.URL, link.Text}); err != nil {
		return "", err
	}

	return string(unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n"))), nil
}
