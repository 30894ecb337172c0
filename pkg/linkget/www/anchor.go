package www

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// aタグから得られた未解決のリンク
type RawLink struct {
	Href string
	Text string
}

// HTMLからhref属性を持つaタグを文書順に全て取り出す
// パースに失敗してもエラーにはせず、それまでに得られたリンクを返す
func ExtractLinks(r io.Reader) []RawLink {
	links := make([]RawLink, 0, 100)
	tokenizer := html.NewTokenizer(r)

	var text *bytes.Buffer // href付きのaタグの中にいる間だけnilではない
	var href string
	inAnchor := false

	closeAnchor := func() {
		if text != nil {
			links = append(links, RawLink{Href: href, Text: text.String()})
		}
		text = nil
		inAnchor = false
	}

	for {
		tt := tokenizer.Next()

		switch tt {
		case html.ErrorToken:
			if inAnchor {
				closeAnchor()
			}
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "a" {
				continue
			}

			// aタグは入れ子にならないので、開いているものがあれば閉じる
			if inAnchor {
				closeAnchor()
			}

			value, ok := readHref(tokenizer, hasAttr)
			if ok {
				href = value
				text = bytes.NewBuffer(nil)
			}
			inAnchor = true

			if tt == html.SelfClosingTagToken {
				closeAnchor()
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "a" && inAnchor {
				closeAnchor()
			}

		case html.TextToken:
			if text != nil {
				text.Write(tokenizer.Text())
			}
		}
	}
}

func readHref(t *html.Tokenizer, hasAttr bool) (string, bool) {
	href, found := "", false

	for n := 0; hasAttr && n < 100; n++ {
		var k, v []byte
		k, v, hasAttr = t.TagAttr()
		if string(k) == "href" && !found {
			href, found = string(v), true
		}
	}

	return href, found
}
