package mocks

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/minify-io/url-minifier/internal/models"
	"github.com/minify-io/url-minifier/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link // id -> link
	codes map[string]string      // short_link -> id

	// InsertErr если задана, Insert всегда возвращает эту ошибку
	InsertErr error
	// ClickErr если задана, RegisterClick всегда возвращает эту ошибку
	ClickErr error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
		codes: make(map[string]string),
	}
}

func (m *MockLinkRepository) Insert(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}

	if _, exists := m.codes[link.ShortLink]; exists {
		return repository.ErrCodeExists
	}

	stored := *link
	m.links[link.ID] = &stored
	m.codes[link.ShortLink] = link.ID
	return nil
}

func (m *MockLinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[id]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) GetByShortLink(ctx context.Context, shortLink string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.codes[shortLink]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *m.links[id]
	return &copied, nil
}

func (m *MockLinkRepository) Update(ctx context.Context, id string, patch repository.LinkPatchDoc) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[id]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	if patch.RedirectURL != nil {
		link.RedirectURL = *patch.RedirectURL
	}
	if patch.WebHook != nil {
		link.WebHook = *patch.WebHook
	}
	if patch.Tags != nil {
		link.Tags = patch.Tags
	}
	if patch.ExpirationSet {
		link.Expiration = patch.Expiration
	}
	link.Updated = time.Now().UTC()

	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[id]
	if !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.codes, link.ShortLink)
	delete(m.links, id)
	return nil
}

func (m *MockLinkRepository) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	criteria.Normalize()
	tagPattern := compilePattern(repository.AlternationPattern(criteria.Tags))
	urlPattern := compilePattern(regexp.QuoteMeta(criteria.URL))

	var matched []models.Link
	for _, link := range m.links {
		if criteria.URL != "" && !urlPattern.MatchString(link.RedirectURL) {
			continue
		}
		if tagPattern != nil && !matchAny(tagPattern, link.Tags) {
			continue
		}
		matched = append(matched, *link)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Created.After(matched[j].Created)
	})

	return window(matched, criteria.Offset(), criteria.PageSize), nil
}

func (m *MockLinkRepository) RegisterClick(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ClickErr != nil {
		return m.ClickErr
	}

	link, exists := m.links[id]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++
	now := time.Now().UTC()
	link.LastClicked = &now
	return nil
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks []models.Click

	// InsertErr если задана, Insert всегда возвращает эту ошибку
	InsertErr error
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{}
}

func (m *MockClickRepository) Insert(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.clicks = append(m.clicks, *click)
	return nil
}

func (m *MockClickRepository) ListByLink(ctx context.Context, urlID string, criteria models.ClickCriteria) ([]models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	criteria.Normalize()
	argPattern := compilePattern(repository.AlternationPattern(criteria.Args))

	var matched []models.Click
	for _, click := range m.clicks {
		if click.URLID != urlID {
			continue
		}
		if argPattern != nil && !matchAny(argPattern, click.Args) {
			continue
		}
		matched = append(matched, click)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Clicked.After(matched[j].Clicked)
	})

	return window(matched, criteria.Offset(), criteria.PageSize), nil
}

// Count возвращает число записанных переходов ссылки
func (m *MockClickRepository) Count(urlID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, click := range m.clicks {
		if click.URLID == urlID {
			count++
		}
	}
	return count
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.cache[key] = &stored
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func compilePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	return regexp.MustCompile("(?i)" + pattern)
}

func matchAny(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
