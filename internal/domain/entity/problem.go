package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Problem представляет задачу на интегрирование из каталога.
// Solution — каноническая форма ответа, AlternativeForms — допустимые
// эквивалентные записи, Hint показывается игроку по запросу.
type Problem struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	Difficulty       string      `gorm:"size:20;not null;index" json:"difficulty"`
	Statement        string      `gorm:"size:500;not null" json:"statement"`
	Solution         string      `gorm:"size:255;not null" json:"-"` // Скрыто от клиента
	AlternativeForms StringArray `gorm:"type:jsonb;not null" json:"-"`
	Hint             string      `gorm:"size:500" json:"hint,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Problem) TableName() string {
	return "problems"
}
