package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minify-io/url-minifier/internal/models"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short link already exists")
)

// uniqueViolation код SQLSTATE нарушения уникального индекса
const uniqueViolation = "23505"

// LinkPatchDoc скомпилированный документ частичного обновления.
// ExpirationSet отличает "снять срок действия" от "не трогать".
type LinkPatchDoc struct {
	RedirectURL   *string
	WebHook       *string
	Tags          []string
	Expiration    *time.Time
	ExpirationSet bool
}

type LinkRepository interface {
	Insert(ctx context.Context, link *models.Link) error
	GetByID(ctx context.Context, id string) (*models.Link, error)
	GetByShortLink(ctx context.Context, shortLink string) (*models.Link, error)
	Update(ctx context.Context, id string, patch LinkPatchDoc) (*models.Link, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Link, error)
	RegisterClick(ctx context.Context, id string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, short_link, redirect_url, owner, tags, web_hook, expiration, click_count, last_clicked, created, updated`

// Insert вставляет ссылку под защитой уникального индекса по short_link.
// Нарушение уникальности - ожидаемое локальное условие, возвращается как ErrCodeExists.
func (r *linkRepository) Insert(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		link.ID,
		link.ShortLink,
		link.RedirectURL,
		link.Owner,
		link.Tags,
		link.WebHook,
		link.Expiration,
		link.ClickCount,
		link.LastClicked,
		link.Created,
		link.Updated,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *linkRepository) GetByShortLink(ctx context.Context, shortLink string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_link = $1`
	return r.getOne(ctx, query, shortLink)
}

func (r *linkRepository) getOne(ctx context.Context, query string, arg any) (*models.Link, error) {
	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// Update применяет patch и штамп updated = NOW() одним атомарным UPDATE-ом
func (r *linkRepository) Update(ctx context.Context, id string, patch LinkPatchDoc) (*models.Link, error) {
	query := `
		UPDATE links SET
			updated      = NOW(),
			redirect_url = COALESCE($2, redirect_url),
			web_hook     = COALESCE($3, web_hook),
			tags         = COALESCE($4, tags),
			expiration   = CASE WHEN $5 THEN $6 ELSE expiration END
		WHERE id = $1
		RETURNING ` + linkColumns

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query,
		id,
		patch.RedirectURL,
		patch.WebHook,
		patch.Tags,
		patch.ExpirationSet,
		patch.Expiration,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	return link, nil
}

// Delete жёстко удаляет ссылку. История переходов остаётся нетронутой.
func (r *linkRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// Search выбирает окно ссылок по критериям. Общее количество не считается.
func (r *linkRepository) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Link, error) {
	criteria.Normalize()

	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE ($1 = '' OR redirect_url ILIKE '%' || $1 || '%')
			AND ($2 = '' OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ~* $2))
		ORDER BY created DESC
		OFFSET $3 LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query,
		criteria.URL,
		AlternationPattern(criteria.Tags),
		criteria.Offset(),
		criteria.PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// RegisterClick атомарно инкрементирует счётчик и ставит отметку последнего перехода
func (r *linkRepository) RegisterClick(ctx context.Context, id string) error {
	query := `
		UPDATE links
		SET click_count = click_count + 1, last_clicked = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to register click: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// AlternationPattern компилирует список значений в case-insensitive
// regex-альтернацию для фильтра по массивным полям. Пустой список - пустой фильтр.
func AlternationPattern(values []string) string {
	if len(values) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	return strings.Join(quoted, "|")
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortLink,
		&link.RedirectURL,
		&link.Owner,
		&link.Tags,
		&link.WebHook,
		&link.Expiration,
		&link.ClickCount,
		&link.LastClicked,
		&link.Created,
		&link.Updated,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}
