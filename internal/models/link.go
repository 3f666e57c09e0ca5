package models

import (
	"time"
)

// Link представляет минифицированную ссылку
type Link struct {
	ID          string     `json:"id"`
	ShortLink   string     `json:"short_link"`
	RedirectURL string     `json:"redirect_url"`
	Owner       string     `json:"owner"`
	Tags        []string   `json:"tags"`
	WebHook     string     `json:"web_hook,omitempty"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	ClickCount  int64      `json:"click_count"`
	LastClicked *time.Time `json:"last_clicked,omitempty"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
}

// CreateLinkInput входные данные для создания одной ссылки
type CreateLinkInput struct {
	RedirectURL string   `json:"redirect_url"`
	ShortLink   string   `json:"short_link,omitempty"`
	Expiration  string   `json:"expiration,omitempty"`
	WebHook     string   `json:"web_hook,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateLinkResult результат одной записи lenient batch-а:
// либо созданная ссылка, либо причина отказа. Ошибки не прерывают batch.
type CreateLinkResult struct {
	Link    *Link  `json:"link,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LinkPatch частичное обновление ссылки.
// nil означает "поле не трогать". Пустая строка в Expiration снимает срок действия.
type LinkPatch struct {
	RedirectURL *string  `json:"redirect_url,omitempty"`
	Expiration  *string  `json:"expiration,omitempty"`
	WebHook     *string  `json:"web_hook,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SearchCriteria критерии поиска ссылок
type SearchCriteria struct {
	URL      string   // подстрока redirect_url
	Tags     []string // alternation-фильтр по тегам, без учёта регистра
	Page     int      // нулевая страница
	PageSize int      // по умолчанию 20
}

// DefaultPageSize размер страницы по умолчанию
const DefaultPageSize = 20

// Normalize приводит пагинацию к допустимым значениям
func (c *SearchCriteria) Normalize() {
	if c.Page < 0 {
		c.Page = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
}

// Offset вычисляет смещение offset-пагинации
func (c *SearchCriteria) Offset() int {
	return c.Page * c.PageSize
}
