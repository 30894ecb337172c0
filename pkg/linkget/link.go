package linkget

import (
	"strings"
	"time"
)

// 出力ファイル名などに埋め込む日時の書式
const StampLayout = "2006-01-02 15-04-05"

// 発見したリンクを表す型。URLとアンカーテキストの組
type Link struct {
	URL  string
	Text string
}

func (l Link) String() string {
	return l.URL + " : " + l.Text
}

// 重複判定に用いるキー。末尾の'/'を1つだけ取り除く
func (l Link) key() string {
	return strings.TrimSuffix(l.URL, "/")
}

// クロール結果。全ての出力先で同じ日時を共有する
type Result struct {
	Links     []Link
	CreatedAt time.Time
}

func NewResult(links []Link, createdAt time.Time) *Result {
	if links == nil {
		links = []Link{}
	}

	return &Result{Links: links, CreatedAt: createdAt}
}

func (r *Result) Stamp() string {
	return r.CreatedAt.Format(StampLayout)
}
