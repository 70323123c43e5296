package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Game     GameConfig
	Judge    JudgeConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// AuthConfig содержит настройки проверки токенов.
// Выпуск токенов — внешняя система; ядру нужен только ключ проверки подписи.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// GameConfig содержит игровые настройки ядра координации
type GameConfig struct {
	// QueueTTL — возраст записи очереди, после которого она не участвует
	// в подборе и подлежит фоновой чистке
	QueueTTL time.Duration `mapstructure:"queue_ttl"`
	// WaitingRoomTTL — возраст WAITING комнаты, после которого она считается
	// брошенной и переводится в ABANDONED
	WaitingRoomTTL time.Duration `mapstructure:"waiting_room_ttl"`
	// CodeAttempts — число попыток выделить уникальный код комнаты
	CodeAttempts int `mapstructure:"code_attempts"`
	// AnsweredMarkerTTL — время жизни маркера «место уже отвечало на вопрос»
	AnsweredMarkerTTL time.Duration `mapstructure:"answered_marker_ttl"`
	// SweepInterval — период фоновой чистки очереди
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// JudgeConfig содержит настройки судьи ответов
type JudgeConfig struct {
	// Mode: "local" — нормализующее сравнение, "remote" — внешний сервис проверки
	Mode string `mapstructure:"mode"`
	// RemoteURL — адрес внешнего сервиса (для mode=remote)
	RemoteURL string `mapstructure:"remote_url"`
	// TimeoutMs — дедлайн обращения к внешнему сервису
	TimeoutMs int `mapstructure:"timeout_ms"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// Значения по умолчанию для игровых настроек
	vip.SetDefault("game.queue_ttl", 5*time.Minute)
	vip.SetDefault("game.waiting_room_ttl", 30*time.Minute)
	vip.SetDefault("game.code_attempts", 10)
	vip.SetDefault("game.answered_marker_ttl", time.Hour)
	vip.SetDefault("game.sweep_interval", time.Minute)
	vip.SetDefault("judge.mode", "local")
	vip.SetDefault("judge.timeout_ms", 8000)

	// Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")

	vip.BindEnv("server.port", "SERVER_PORT")

	vip.BindEnv("judge.mode", "JUDGE_MODE")
	vip.BindEnv("judge.remote_url", "JUDGE_REMOTE_URL")
	vip.BindEnv("judge.timeout_ms", "JUDGE_TIMEOUT_MS")

	// Путь к файлу конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Judge Mode: %s", cfg.Judge.Mode)
		log.Printf("Queue TTL: %v", cfg.Game.QueueTTL)
		log.Printf("-----------------------------------------")
	}

	// Проверка обязательных параметров
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check AUTH_JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Judge.Mode == "remote" && cfg.Judge.RemoteURL == "" {
		return nil, fmt.Errorf("judge.remote_url is required when judge.mode=remote (check JUDGE_REMOTE_URL env var)")
	}

	return &cfg, nil
}
