package repository

import (
	"context"
	"fmt"

	"github.com/minify-io/url-minifier/internal/models"
)

type ClickRepository interface {
	Insert(ctx context.Context, click *models.Click) error
	ListByLink(ctx context.Context, urlID string, criteria models.ClickCriteria) ([]models.Click, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

// Insert добавляет неизменяемую запись перехода. Записи никогда не обновляются
// и не удаляются - это журнал аудита, а не дочерняя сущность ссылки.
func (r *clickRepository) Insert(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (id, url_id, clicked, request_url, args, ip_address, user_agent, referrer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.ID,
		click.URLID,
		click.Clicked,
		click.RequestURL,
		click.Args,
		click.IPAddress,
		click.UserAgent,
		click.Referrer,
	)

	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}

	return nil
}

// ListByLink выбирает окно переходов ссылки с фильтром по позиционным аргументам
func (r *clickRepository) ListByLink(ctx context.Context, urlID string, criteria models.ClickCriteria) ([]models.Click, error) {
	criteria.Normalize()

	query := `
		SELECT id, url_id, clicked, request_url, args, ip_address, user_agent, referrer
		FROM clicks
		WHERE url_id = $1
			AND ($2 = '' OR EXISTS (SELECT 1 FROM unnest(args) AS a WHERE a ~* $2))
		ORDER BY clicked DESC
		OFFSET $3 LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query,
		urlID,
		AlternationPattern(criteria.Args),
		criteria.Offset(),
		criteria.PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var clicks []models.Click
	for rows.Next() {
		var click models.Click
		if err := rows.Scan(
			&click.ID,
			&click.URLID,
			&click.Clicked,
			&click.RequestURL,
			&click.Args,
			&click.IPAddress,
			&click.UserAgent,
			&click.Referrer,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}
