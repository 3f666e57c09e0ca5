package service

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Границы длины короткого кода
const (
	minCodeLength = 5
	maxCodeLength = 11
)

// codeSequence конечная последовательность кандидатов короткого кода:
// префиксы одного детерминированного md5-дайджеста свежего 128-битного
// seed-а, длиной от 5 до 11 символов. Исчерпание последовательности
// означает "отказаться от этой попытки", перезапуска нет.
//
// Хэш не является криптографическим по назначению - от него требуется
// только равномерное распределение коротких префиксов.
type codeSequence struct {
	digest string
	length int
}

// newCodeSequence создаёт последовательность от свежего seed-а.
// Каждый вызов независим: новый seed - новая последовательность.
func newCodeSequence() *codeSequence {
	return newCodeSequenceFrom(uuid.New())
}

// newCodeSequenceFrom создаёт последовательность от заданного seed-а.
// Один и тот же seed даёт одну и ту же последовательность.
func newCodeSequenceFrom(seed uuid.UUID) *codeSequence {
	sum := md5.Sum(seed[:])
	return &codeSequence{
		digest: hex.EncodeToString(sum[:]),
		length: minCodeLength,
	}
}

// Next возвращает следующий кандидат. ok == false после исчерпания.
func (s *codeSequence) Next() (string, bool) {
	if s.length > maxCodeLength {
		return "", false
	}
	candidate := s.digest[:s.length]
	s.length++
	return candidate, true
}
