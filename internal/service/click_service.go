package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/minify-io/url-minifier/internal/models"
	"github.com/minify-io/url-minifier/internal/repository"
	"go.uber.org/zap"
)

// placeholderWebHook значение-заглушка из примеров API, на него не шлём
const placeholderWebHook = "https://test.com/webhook"

// ClickService учёт переходов по ссылкам
type ClickService interface {
	Record(ctx context.Context, link *models.Link, requestURL string, args []string, meta models.ClickMeta) error
	ListClicks(ctx context.Context, urlID string, criteria models.ClickCriteria) ([]models.Click, error)
}

type clickService struct {
	clickRepo  repository.ClickRepository
	linkRepo   repository.LinkRepository
	dispatcher WebhookDispatcher
	logger     *zap.Logger
}

// NewClickService создаёт новый экземпляр сервиса переходов.
// dispatcher может быть nil - тогда уведомления не отправляются.
func NewClickService(
	clickRepo repository.ClickRepository,
	linkRepo repository.LinkRepository,
	dispatcher WebhookDispatcher,
	logger *zap.Logger,
) ClickService {
	return &clickService{
		clickRepo:  clickRepo,
		linkRepo:   linkRepo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Record учитывает один переход:
// 1) атомарный click_count + 1 и last_clicked = NOW() на документе ссылки;
// 2) неизменяемая запись перехода с контекстом запроса;
// 3) асинхронная передача уведомления, если настроен web_hook.
// Передача в dispatcher не блокирует и не ломает путь редиректа.
func (s *clickService) Record(ctx context.Context, link *models.Link, requestURL string, args []string, meta models.ClickMeta) error {
	if err := s.linkRepo.RegisterClick(ctx, link.ID); err != nil {
		return err
	}

	if args == nil {
		args = []string{}
	}

	click := &models.Click{
		ID:         uuid.NewString(),
		URLID:      link.ID,
		Clicked:    time.Now().UTC(),
		RequestURL: requestURL,
		Args:       args,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
	}

	if err := s.clickRepo.Insert(ctx, click); err != nil {
		return err
	}

	if s.dispatcher != nil && link.WebHook != "" && link.WebHook != placeholderWebHook {
		s.dispatcher.Enqueue(&WebhookNotification{
			TargetURL: link.WebHook,
			Payload: models.WebhookPayload{
				URLID:       link.ID,
				ShortLink:   link.ShortLink,
				Clicked:     click.Clicked.Format(time.RFC3339),
				RequestLink: click.RequestURL,
				Args:        click.Args,
				Tags:        link.Tags,
			},
		})
	}

	return nil
}

// ListClicks возвращает окно переходов ссылки
func (s *clickService) ListClicks(ctx context.Context, urlID string, criteria models.ClickCriteria) ([]models.Click, error) {
	return s.clickRepo.ListByLink(ctx, urlID, criteria)
}
