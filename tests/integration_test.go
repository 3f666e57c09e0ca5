package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minify-io/url-minifier/internal/config"
	"github.com/minify-io/url-minifier/internal/handler"
	"github.com/minify-io/url-minifier/internal/middleware"
	"github.com/minify-io/url-minifier/internal/models"
	"github.com/minify-io/url-minifier/internal/repository"
	"github.com/minify-io/url-minifier/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// TestMain настраивает тестовый режим gin
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv хранит окружение для интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	linkService    service.LinkService
	clickService   service.ClickService
	dispatcher     service.WebhookDispatcher
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv создаёт тестовое окружение с PostgreSQL и Redis контейнерами
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	// Запускаем контейнер PostgreSQL
	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("minifier"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Запускаем контейнер Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	// Получаем данные для подключения
	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Создаём подключение к БД и схему
	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "minifier",
	})
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))

	// Создаём подключение к Redis
	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	// Инициализируем репозитории и сервисы
	logger := zap.NewNop()
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	clickRepo := repository.NewClickRepository(db)

	dispatcher := service.NewWebhookDispatcher(config.WebhookConfig{
		Workers:     1,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		BackoffMax:  10 * time.Millisecond,
		Timeout:     time.Second,
	}, logger)
	dispatcher.Start()

	linkService := service.NewLinkService(linkRepo, cacheRepo, logger)
	clickService := service.NewClickService(clickRepo, linkRepo, dispatcher, logger)
	resolver := service.NewRedirectResolver(linkService, clickService, logger)

	// Настраиваем роутер с middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 100, // Высокий лимит для тестов
		BurstSize:         200,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(linkService, clickService, resolver,
		rateLimiter, nil, "http://short.local", logger)

	return &TestEnv{
		router:         router,
		linkService:    linkService,
		clickService:   clickService,
		dispatcher:     dispatcher,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.dispatcher.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

// CreateLinkResultResponse результат одной записи batch-а в ответе API
type CreateLinkResultResponse struct {
	models.Link
	ShortURL string `json:"short_url"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// postLinks отправляет batch на создание и возвращает разобранный ответ
func (env *TestEnv) postLinks(t *testing.T, inputs []models.CreateLinkInput) []CreateLinkResultResponse {
	t.Helper()

	body, _ := json.Marshal(inputs)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var results []CreateLinkResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	return results
}

// TestIntegration_CreateLinks тестирует lenient batch создание ссылок
func TestIntegration_CreateLinks(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	results := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/first"},
		{RedirectURL: "https://example.com/second", ShortLink: "my-custom", Tags: []string{"promo"}},
		{Tags: []string{"no-target"}}, // запись без целевого URL пропускается
	})

	require.Len(t, results, 3)

	// Сгенерированный код
	assert.Len(t, results[0].ShortLink, 5)
	assert.Equal(t, "https://example.com/first", results[0].RedirectURL)
	assert.Equal(t, "http://short.local/"+results[0].ShortLink, results[0].ShortURL)
	assert.NotEmpty(t, results[0].ID)

	// Кастомный код
	assert.Equal(t, "my-custom", results[1].ShortLink)
	assert.Equal(t, []string{"promo"}, results[1].Tags)

	// Запись без target пропущена, но не развалила batch
	assert.True(t, results[2].Skipped)
	assert.Empty(t, results[2].ID)
}

// TestIntegration_CustomCodeCollision тестирует откат к генерации при
// занятом кастомном коде
func TestIntegration_CustomCodeCollision(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	first := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/a", ShortLink: "taken"},
	})
	require.Equal(t, "taken", first[0].ShortLink)

	second := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/b", ShortLink: "taken"},
	})
	require.Empty(t, second[0].Error)
	assert.NotEqual(t, "taken", second[0].ShortLink)
	assert.NotEmpty(t, second[0].ShortLink)
}

// TestIntegration_RedirectFlow тестирует редирект с подстановкой аргументов
// и учёт переходов
func TestIntegration_RedirectFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	results := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/search?q={0}&lang={1}"},
	})
	code := results[0].ShortLink

	// Несколько переходов с аргументами в хвосте пути
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+code+"/golang/en", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", i))
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/search?q=golang&lang=en", w.Header().Get("Location"))
	}

	// Счётчик переходов на самой ссылке
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links/"+code, nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var link models.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, int64(3), link.ClickCount)
	assert.NotNil(t, link.LastClicked)

	// История переходов с контекстом запроса
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/links/"+code+"/clicks", nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var clicks []models.Click
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clicks))
	require.Len(t, clicks, 3)
	assert.Equal(t, []string{"golang", "en"}, clicks[0].Args)
	assert.Contains(t, clicks[0].RequestURL, "/"+code+"/golang/en")
}

// TestIntegration_ExpiredLink тестирует отказ по сроку действия:
// редирект отвечает 410, но ссылка остаётся в реестре
func TestIntegration_ExpiredLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	results := env.postLinks(t, []models.CreateLinkInput{
		{
			RedirectURL: "https://example.com/expired",
			Expiration:  time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339),
		},
	})
	code := results[0].ShortLink

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/"+code, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGone, w.Code)

	// Истёкшая ссылка не удаляется
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/links/"+code, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestIntegration_UpdateLink тестирует частичное обновление и
// инвалидацию кэша на пути редиректа
func TestIntegration_UpdateLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	results := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/before"},
	})
	code := results[0].ShortLink
	id := results[0].ID

	// Редирект кладёт ссылку в кэш
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/"+code, nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://example.com/before", w.Header().Get("Location"))

	// Частичное обновление
	patch := map[string]interface{}{
		"redirect_url": "https://example.com/after",
		"tags":         []string{"updated"},
	}
	body, _ := json.Marshal(patch)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PUT", "/api/v1/links/"+id, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "https://example.com/after", updated.RedirectURL)
	assert.Equal(t, []string{"updated"}, updated.Tags)
	assert.True(t, updated.Updated.After(updated.Created))

	// Редирект идёт уже на новый target
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/"+code, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/after", w.Header().Get("Location"))
}

// TestIntegration_DeleteLink тестирует удаление ссылок
func TestIntegration_DeleteLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	results := env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://example.com/delete-test"},
	})
	code := results[0].ShortLink

	// Удаляем ссылку
	t.Run("удаление существующей ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/links/"+code, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	// Пытаемся удалить повторно (должна быть ошибка)
	t.Run("удаление несуществующей ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/links/"+code, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	// Редирект по удалённому коду
	t.Run("редирект по удалённому коду", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+code, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_SearchLinks тестирует поиск по URL и тегам
func TestIntegration_SearchLinks(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.postLinks(t, []models.CreateLinkInput{
		{RedirectURL: "https://blog.example.com/post-1", Tags: []string{"Blog", "News"}},
		{RedirectURL: "https://shop.example.com/item", Tags: []string{"shop"}},
		{RedirectURL: "https://blog.example.com/post-2", Tags: []string{"blog"}},
	})

	// Поиск по подстроке URL
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links?url=blog.example", nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var byURL []models.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byURL))
	assert.Len(t, byURL, 2)

	// Поиск по тегу без учёта регистра
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/links?tag=blog", nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var byTag []models.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byTag))
	assert.Len(t, byTag, 2)
}

// TestIntegration_WebhookDelivery тестирует асинхронную доставку уведомления
// о переходе на настроенный web_hook
func TestIntegration_WebhookDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	received := make(chan models.WebhookPayload, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.WebhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	results := env.postLinks(t, []models.CreateLinkInput{
		{
			RedirectURL: "https://example.com/{0}",
			WebHook:     receiver.URL,
			Tags:        []string{"hooked"},
		},
	})
	code := results[0].ShortLink

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/"+code+"/docs", nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	select {
	case payload := <-received:
		assert.Equal(t, results[0].ID, payload.URLID)
		assert.Equal(t, code, payload.ShortLink)
		assert.Equal(t, []string{"docs"}, payload.Args)
		assert.Equal(t, []string{"hooked"}, payload.Tags)
		assert.Contains(t, payload.RequestLink, "/"+code+"/docs")
	case <-time.After(5 * time.Second):
		t.Fatal("webhook не доставлен")
	}
}

// TestIntegration_HealthCheck тестирует endpoint проверки здоровья
func TestIntegration_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ok", resp["status"])
}
