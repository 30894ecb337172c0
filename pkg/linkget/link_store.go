package linkget

// 受け入れたリンクを保持する型
// 並行に使用することはできない
type LinkStore struct {
	dedupeUnique bool
	requireText  bool

	links []Link
	seen  map[string]struct{}
	count int
}

func NewLinkStore(dedupeUnique, requireText bool) *LinkStore {
	return &LinkStore{
		dedupeUnique: dedupeUnique,
		requireText:  requireText,
		links:        make([]Link, 0, 100),
		seen:         make(map[string]struct{}),
	}
}

// リンクの受け入れを試み、受け入れた場合はtrueを返す
// テキストが空のリンクはrequireTextが有効なら捨てる
// dedupeUniqueが無効な場合、同じURLでも受け入れる
func (s *LinkStore) Offer(link Link) bool {
	if len(link.Text) == 0 && s.requireText {
		return false
	}

	key := link.key()
	if _, exists := s.seen[key]; exists && s.dedupeUnique {
		return false
	}

	s.links = append(s.links, link)
	s.seen[key] = struct{}{}
	s.count++
	return true
}

func (s *LinkStore) Count() int {
	return s.count
}

// 受け入れた順にリンクを返す
func (s *LinkStore) Links() []Link {
	links := make([]Link, len(s.links))
	copy(links, s.links)
	return links
}
