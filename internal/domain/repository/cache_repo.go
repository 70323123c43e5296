package repository

import "time"

// CacheRepository определяет методы для кеша и одноразовых маркеров.
// SetNX — ключевой примитив «место отвечает на вопрос не более одного раза»:
// установка проходит только у первого из конкурентных сабмитов.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(key string) (int64, error)
}
