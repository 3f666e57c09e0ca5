package models

import (
	"time"
)

// Click неизменяемая запись одного перехода по ссылке
type Click struct {
	ID         string    `json:"id"`
	URLID      string    `json:"url_id"`
	Clicked    time.Time `json:"clicked"`
	RequestURL string    `json:"request_url"`
	Args       []string  `json:"args"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
}

// ClickMeta контекст запроса, снятый на границе HTTP
type ClickMeta struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// ClickCriteria критерии выборки переходов
type ClickCriteria struct {
	Args     []string // alternation-фильтр по позиционным аргументам, без учёта регистра
	Page     int
	PageSize int
}

// Normalize приводит пагинацию к допустимым значениям
func (c *ClickCriteria) Normalize() {
	if c.Page < 0 {
		c.Page = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
}

// Offset вычисляет смещение offset-пагинации
func (c *ClickCriteria) Offset() int {
	return c.Page * c.PageSize
}

// WebhookPayload снимок ссылки и перехода, отправляемый POST-ом на web_hook
type WebhookPayload struct {
	URLID       string   `json:"url_id"`
	ShortLink   string   `json:"short_link"`
	Clicked     string   `json:"clicked"` // ISO-8601
	RequestLink string   `json:"request_link"`
	Args        []string `json:"args"`
	Tags        []string `json:"tags"`
}
