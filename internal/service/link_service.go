package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minify-io/url-minifier/internal/models"
	"github.com/minify-io/url-minifier/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса ссылок
var (
	ErrCodeExhausted     = errors.New("failed to allocate a unique short link after several attempts")
	ErrInvalidExpiration = errors.New("invalid expiration timestamp")
)

// Константы сервиса
const (
	maxInsertAttempts = 5              // попытки вставки при генерируемом коде
	defaultCacheTTL   = 24 * time.Hour // TTL кэша редиректов без срока действия
)

// LinkService реестр коротких ссылок
type LinkService interface {
	CreateLinks(ctx context.Context, inputs []models.CreateLinkInput, owner string) []models.CreateLinkResult
	UpdateLink(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error)
	FindLink(ctx context.Context, identifier string) (*models.Link, error)
	GetByShortLink(ctx context.Context, shortLink string) (*models.Link, error)
	SearchLinks(ctx context.Context, criteria models.SearchCriteria) ([]models.Link, error)
	DeleteLink(ctx context.Context, id string) error
}

type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(linkRepo repository.LinkRepository, cacheRepo repository.CacheRepository, logger *zap.Logger) LinkService {
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// CreateLinks создаёт короткую ссылку для каждой записи batch-а.
// Batch lenient: запись без redirect_url пропускается, ошибка одной записи
// не прерывает остальные - каждая запись получает свой результат.
func (s *linkService) CreateLinks(ctx context.Context, inputs []models.CreateLinkInput, owner string) []models.CreateLinkResult {
	results := make([]models.CreateLinkResult, 0, len(inputs))

	for _, input := range inputs {
		// Без целевого URL запись просто пропускаем
		if input.RedirectURL == "" {
			results = append(results, models.CreateLinkResult{Skipped: true})
			continue
		}

		link, err := s.createOne(ctx, input, owner)
		if err != nil {
			s.logger.Error("Не удалось создать ссылку",
				zap.String("redirect_url", input.RedirectURL),
				zap.Error(err),
			)
			results = append(results, models.CreateLinkResult{Error: err.Error()})
			continue
		}

		results = append(results, models.CreateLinkResult{Link: link})
	}

	return results
}

// createOne готовит запись и проводит её через insert-unique протокол
func (s *linkService) createOne(ctx context.Context, input models.CreateLinkInput, owner string) (*models.Link, error) {
	now := time.Now().UTC()

	expiration, err := parseExpiration(input.Expiration)
	if err != nil {
		return nil, err
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	link := &models.Link{
		ID:          uuid.NewString(),
		ShortLink:   input.ShortLink,
		RedirectURL: input.RedirectURL,
		Owner:       owner,
		Tags:        tags,
		WebHook:     input.WebHook,
		Expiration:  expiration,
		ClickCount:  0,
		Created:     now,
		Updated:     now,
	}

	generate := link.ShortLink == ""

	// Кастомный код: при занятости не падаем, а откатываемся к генерации
	if !generate {
		if _, err := s.linkRepo.GetByShortLink(ctx, link.ShortLink); err == nil {
			s.logger.Warn("Запрошенный короткий код занят, переходим к генерации",
				zap.String("short_link", link.ShortLink),
			)
			link.ShortLink = ""
			generate = true
		} else if !errors.Is(err, repository.ErrLinkNotFound) {
			return nil, err
		}
	}

	if err := s.insertUnique(ctx, link, generate); err != nil {
		return nil, err
	}

	// Кэшируем для редиректов; ошибка кэша не отменяет создание
	if err := s.cacheRepo.Set(ctx, link.ShortLink, link, cacheTTL(link)); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.Error(err))
	}

	return link, nil
}

// insertUnique атомарная вставка под уникальным индексом по short_link.
// Конфликт - ожидаемое условие: при генерируемом коде до 5 попыток, каждая
// с первым кандидатом свежей последовательности (новый seed, а не продолжение
// старой). Кастомный код вставляется ровно один раз.
func (s *linkService) insertUnique(ctx context.Context, link *models.Link, generate bool) error {
	attempts := 1
	if generate {
		attempts = maxInsertAttempts
	}

	for i := 0; i < attempts; i++ {
		if generate {
			candidate, ok := newCodeSequence().Next()
			if !ok {
				break
			}
			link.ShortLink = candidate
		}

		err := s.linkRepo.Insert(ctx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrCodeExists) {
			// Проиграли гонку за кандидата - пробуем следующий
			continue
		}
		return err
	}

	return ErrCodeExhausted
}

// UpdateLink применяет частичное обновление {redirect_url, expiration, web_hook, tags}.
// Штамп updated и все $set-поля уходят в хранилище одной атомарной записью.
func (s *linkService) UpdateLink(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error) {
	doc := repository.LinkPatchDoc{
		RedirectURL: patch.RedirectURL,
		WebHook:     patch.WebHook,
		Tags:        patch.Tags,
	}

	if patch.Expiration != nil {
		doc.ExpirationSet = true
		expiration, err := parseExpiration(*patch.Expiration)
		if err != nil {
			return nil, err
		}
		doc.Expiration = expiration
	}

	link, err := s.linkRepo.Update(ctx, id, doc)
	if err != nil {
		return nil, err
	}

	// Сбрасываем кэш редиректов, чтобы не отдавать устаревшую цель
	if err := s.cacheRepo.Delete(ctx, link.ShortLink); err != nil {
		s.logger.Warn("Не удалось сбросить кэш ссылки", zap.Error(err))
	}

	return link, nil
}

// FindLink находит ссылку по идентификатору хранилища или по короткому коду.
// UUID-образный идентификатор ищется по id, всё остальное - по short_link.
func (s *linkService) FindLink(ctx context.Context, identifier string) (*models.Link, error) {
	if _, err := uuid.Parse(identifier); err == nil {
		return s.linkRepo.GetByID(ctx, identifier)
	}
	return s.linkRepo.GetByShortLink(ctx, identifier)
}

// GetByShortLink получает ссылку по короткому коду (сначала из кэша, затем из БД)
func (s *linkService) GetByShortLink(ctx context.Context, shortLink string) (*models.Link, error) {
	if link, err := s.cacheRepo.Get(ctx, shortLink); err == nil {
		return link, nil
	}

	link, err := s.linkRepo.GetByShortLink(ctx, shortLink)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, shortLink, link, cacheTTL(link)); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.Error(err))
	}

	return link, nil
}

// SearchLinks возвращает окно ссылок по критериям поиска
func (s *linkService) SearchLinks(ctx context.Context, criteria models.SearchCriteria) ([]models.Link, error) {
	return s.linkRepo.Search(ctx, criteria)
}

// DeleteLink жёстко удаляет ссылку. История переходов не каскадируется:
// записи кликов остаются как журнал аудита.
func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	link, err := s.linkRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.cacheRepo.Delete(ctx, link.ShortLink); err != nil {
		s.logger.Warn("Не удалось сбросить кэш ссылки", zap.Error(err))
	}

	return s.linkRepo.Delete(ctx, id)
}

// parseExpiration нормализует срок действия: пустая строка - без срока,
// иначе парсим как RFC3339
func parseExpiration(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpiration, raw)
	}
	t = t.UTC()
	return &t, nil
}

// cacheTTL подбирает TTL кэша: до истечения срока действия, либо сутки
func cacheTTL(link *models.Link) time.Duration {
	if link.Expiration != nil {
		if ttl := time.Until(*link.Expiration); ttl > 0 {
			return ttl
		}
	}
	return defaultCacheTTL
}
