package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpandTemplate проверяет подстановку позиционных аргументов
func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []string
		expected string
		wantErr  bool
	}{
		{
			name:     "индексированные плейсхолдеры",
			template: "https://t.com?a={0}&b={1}",
			args:     []string{"x", "y"},
			expected: "https://t.com?a=x&b=y",
		},
		{
			name:     "без плейсхолдеров - no-op",
			template: "https://t.com/fixed",
			args:     []string{"x", "y"},
			expected: "https://t.com/fixed",
		},
		{
			name:     "пустые плейсхолдеры нумеруются по порядку",
			template: "https://t.com/{}/{}",
			args:     []string{"a", "b"},
			expected: "https://t.com/a/b",
		},
		{
			name:     "повторное использование индекса",
			template: "https://t.com?x={0}&again={0}",
			args:     []string{"v"},
			expected: "https://t.com?x=v&again=v",
		},
		{
			name:     "лишние аргументы игнорируются",
			template: "https://t.com/{0}",
			args:     []string{"a", "b", "c"},
			expected: "https://t.com/a",
		},
		{
			name:     "плейсхолдер без аргумента - фатальная ошибка",
			template: "https://t.com?a={0}&b={1}",
			args:     []string{"x"},
			wantErr:  true,
		},
		{
			name:     "плейсхолдер без аргументов вообще",
			template: "https://t.com/{0}",
			args:     []string{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := expandTemplate(tt.template, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrTemplateArgs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestSplitArgs проверяет разбор хвоста пути на позиционные аргументы
func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{}, splitArgs(""))
	assert.Equal(t, []string{}, splitArgs("/"))
	assert.Equal(t, []string{"x"}, splitArgs("x"))
	assert.Equal(t, []string{"x", "y"}, splitArgs("x/y"))
	assert.Equal(t, []string{"x", "y"}, splitArgs("/x/y/"))
}

// TestDateOf проверяет усечение до даты в UTC
func TestDateOf(t *testing.T) {
	moment := time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), dateOf(moment))
}
