package linkget

// 訪問待ちのリンクのFIFOキュー
// 並行に使用することはできない
type Frontier struct {
	queue []Link
	head  int
}

func NewFrontier() *Frontier {
	return &Frontier{queue: make([]Link, 0, 100)}
}

func (f *Frontier) Push(link Link) {
	f.queue = append(f.queue, link)
}

// 先頭のリンクを取り出す。空ならfalseを返す
func (f *Frontier) Pop() (Link, bool) {
	if f.head >= len(f.queue) {
		return Link{}, false
	}

	link := f.queue[f.head]
	f.queue[f.head] = Link{}
	f.head++

	// 取り出し済みの領域が大きくなったら詰める
	if f.head >= 1024 && f.head*2 >= len(f.queue) {
		f.queue = append(f.queue[:0:0], f.queue[f.head:]...)
		f.head = 0
	}

	return link, true
}

func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}
