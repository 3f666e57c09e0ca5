package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/minify-io/url-minifier/internal/config"
	"github.com/minify-io/url-minifier/internal/models"
	"go.uber.org/zap"
)

// WebhookNotification одно уведомление о переходе для доставки.
// Живёт только на время retry-цикла, нигде не персистится.
type WebhookNotification struct {
	TargetURL string
	Payload   models.WebhookPayload
}

// WebhookDispatcher доставляет уведомления о переходах POST-ом на web_hook.
// Доставка best-effort: экспоненциальный backoff с джиттером, ограниченное
// число попыток, после исчерпания уведомление отбрасывается с записью в лог.
type WebhookDispatcher interface {
	Start()
	Stop()
	Enqueue(n *WebhookNotification) bool
}

// webhookDispatcher реализация на worker pool-е: доставка идёт вне
// цикла запрос-ответ, латентность редиректа не зависит от получателя
type webhookDispatcher struct {
	cfg    config.WebhookConfig
	client *http.Client
	logger *zap.Logger
	queue  chan *WebhookNotification
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWebhookDispatcher создаёт новый экземпляр диспетчера
func NewWebhookDispatcher(cfg config.WebhookConfig, logger *zap.Logger) WebhookDispatcher {
	cfg.ApplyDefaults()
	return &webhookDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		queue:  make(chan *WebhookNotification, cfg.QueueSize),
	}
}

// Start запускает worker pool
func (d *webhookDispatcher) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.logger.Info("Запуск воркеров webhook-диспетчера", zap.Int("count", d.cfg.Workers))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop корректно останавливает worker pool
func (d *webhookDispatcher) Stop() {
	d.logger.Info("Остановка webhook-диспетчера...")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("Webhook-диспетчер остановлен")
}

// Enqueue отправляет уведомление в очередь доставки (неблокирующая операция).
// При переполненном буфере уведомление теряется - доставка best-effort.
func (d *webhookDispatcher) Enqueue(n *WebhookNotification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("Очередь webhook-уведомлений заполнена, уведомление потеряно",
			zap.String("target", n.TargetURL),
		)
		return false
	}
}

// worker доставляет уведомления из очереди
func (d *webhookDispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("Webhook-воркер запущен", zap.Int("id", id))

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("Webhook-воркер остановлен", zap.Int("id", id))
			return

		case n, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(n)
		}
	}
}

// deliver retry-цикл одной нотификации: Pending -> Delivering ->
// {Delivered | Retrying -> Delivering | Exhausted}. Любая сетевая ошибка
// или не-2xx ответ считается retryable.
func (d *webhookDispatcher) deliver(n *WebhookNotification) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		lastErr = d.post(n)
		if lastErr == nil {
			d.logger.Debug("Webhook доставлен",
				zap.String("target", n.TargetURL),
				zap.Int("attempt", attempt),
			)
			return
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}

		d.logger.Debug("Повторная попытка доставки webhook",
			zap.String("target", n.TargetURL),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.backoff(attempt)):
		}
	}

	// Попытки исчерпаны: уведомление отбрасывается, гарантий сверх
	// retry-бюджета нет
	d.logger.Error("Webhook не доставлен после всех попыток",
		zap.String("target", n.TargetURL),
		zap.Int("attempts", d.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
}

// post выполняет один POST с JSON-снимком ссылки и перехода
func (d *webhookDispatcher) post(n *WebhookNotification) error {
	body, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, n.TargetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// backoff экспоненциальная задержка с полным джиттером: база удваивается
// с каждой попыткой, потолок ограничен, случайность размазывает повторы
// множества ссылок с общим получателем
func (d *webhookDispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase << (attempt - 1)
	if delay > d.cfg.BackoffMax || delay <= 0 {
		delay = d.cfg.BackoffMax
	}
	return rand.N(delay + 1)
}
