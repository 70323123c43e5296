package entity

import "time"

// QueueEntry представляет запись в очереди автоподбора.
// Уникальный индекс по user_id гарантирует не более одной записи на пользователя;
// запись удаляется при успешном спаривании, явном выходе или по TTL.
type QueueEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	TimeControlSec int       `gorm:"not null" json:"time_control_sec"`
	Difficulty     string    `gorm:"size:20;not null" json:"difficulty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (QueueEntry) TableName() string {
	return "duel_queue"
}

// IsStale проверяет, протухла ли запись относительно TTL очереди
func (e *QueueEntry) IsStale(ttl time.Duration) bool {
	return time.Since(e.CreatedAt) > ttl
}
