package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/minify-io/url-minifier/internal/models"
	"go.uber.org/zap"
)

// Ошибки резолвера
var (
	ErrLinkExpired  = errors.New("link expired")
	ErrTemplateArgs = errors.New("redirect template references a missing argument")
)

// RedirectResolver отображает короткий код и контекст запроса в целевой URL
type RedirectResolver interface {
	Resolve(ctx context.Context, shortLink, requestURL, suffix string, meta models.ClickMeta) (string, error)
}

type redirectResolver struct {
	links  LinkService
	clicks ClickService
	logger *zap.Logger
}

// NewRedirectResolver создаёт новый экземпляр резолвера
func NewRedirectResolver(links LinkService, clicks ClickService, logger *zap.Logger) RedirectResolver {
	return &redirectResolver{
		links:  links,
		clicks: clicks,
		logger: logger,
	}
}

// Resolve основная логика редиректа: поиск, проверка срока действия,
// учёт перехода, подстановка позиционных аргументов в шаблон цели.
//
// Срок действия сравнивается с точностью до даты (UTC): ссылка перестаёт
// работать на следующий день после даты истечения, а не в сам момент.
// Истёкшие ссылки не удаляются - только отклоняются при резолве.
func (r *redirectResolver) Resolve(ctx context.Context, shortLink, requestURL, suffix string, meta models.ClickMeta) (string, error) {
	link, err := r.links.GetByShortLink(ctx, shortLink)
	if err != nil {
		return "", err
	}

	if link.Expiration != nil && dateOf(*link.Expiration).Before(dateOf(time.Now())) {
		return "", fmt.Errorf("%w: %s", ErrLinkExpired, shortLink)
	}

	args := splitArgs(suffix)

	// Сломанный учёт переходов не должен ломать редирект
	if err := r.clicks.Record(ctx, link, requestURL, args, meta); err != nil {
		r.logger.Error("Не удалось записать переход",
			zap.String("short_link", shortLink),
			zap.Error(err),
		)
	}

	return expandTemplate(link.RedirectURL, args)
}

// splitArgs разбивает хвост пути на позиционные аргументы.
// Пустой хвост - пустой список.
func splitArgs(suffix string) []string {
	suffix = strings.Trim(suffix, "/")
	if suffix == "" {
		return []string{}
	}
	return strings.Split(suffix, "/")
}

// placeholderRe позиционный плейсхолдер: {0}, {1} или пустой {}
var placeholderRe = regexp.MustCompile(`\{(\d*)\}`)

// expandTemplate подставляет позиционные аргументы в шаблон цели.
// Шаблон без плейсхолдеров возвращается как есть; лишние аргументы
// игнорируются. Плейсхолдер без аргумента - фатальная ошибка резолва:
// редиректить на битый URL нельзя.
func expandTemplate(template string, args []string) (string, error) {
	var expandErr error
	auto := 0

	expanded := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		index := auto
		digits := match[1 : len(match)-1]
		if digits != "" {
			index, _ = strconv.Atoi(digits)
		} else {
			auto++
		}

		if index >= len(args) {
			expandErr = fmt.Errorf("%w: {%s} with %d args", ErrTemplateArgs, digits, len(args))
			return match
		}
		return args[index]
	})

	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// dateOf отбрасывает время, оставляя дату в UTC
func dateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
