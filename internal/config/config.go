package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	MockMode bool
}

type RedisConfig struct {
	Addr string
}

type SchedulerConfig struct {
	Workers int
}

// BookingConfig carries the reservation acceptance policy. Opening and
// closing hours are "HH:MM" shop-local times; holidays are weekday names.
type BookingConfig struct {
	MinAdvanceMinutes  int
	OpeningTime        string
	ClosingTime        string
	PrepWindowMinutes  int
	CloseWindowMinutes int
	DurationMinutes    int
	BufferMinutes      int
	CancelWindowMin    int
	Holidays           []time.Weekday
}

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Booking   BookingConfig
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", ":8086"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "cafe"),
			Password:     getEnv("DB_PASSWORD", "cafe"),
			Database:     getEnv("DB_NAME", "cafe_fulfillment"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:29092"), ","),
			GroupID:  getEnv("KAFKA_GROUP_ID", "cafe-fulfillment"),
			MockMode: getBool("KAFKA_MOCK_MODE", true),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Scheduler: SchedulerConfig{
			Workers: getInt("SCHEDULER_WORKERS", 8),
		},
		Booking: BookingConfig{
			MinAdvanceMinutes:  getInt("BOOKING_MIN_ADVANCE_MINUTES", 60),
			OpeningTime:        getEnv("BOOKING_OPENING_TIME", "08:00"),
			ClosingTime:        getEnv("BOOKING_CLOSING_TIME", "22:00"),
			PrepWindowMinutes:  getInt("BOOKING_PREP_WINDOW_MINUTES", 30),
			CloseWindowMinutes: getInt("BOOKING_CLOSE_WINDOW_MINUTES", 60),
			DurationMinutes:    getInt("BOOKING_DURATION_MINUTES", 90),
			BufferMinutes:      getInt("BOOKING_BUFFER_MINUTES", 30),
			CancelWindowMin:    getInt("BOOKING_CANCEL_WINDOW_MINUTES", 30),
			Holidays:           parseHolidays(getEnv("BOOKING_HOLIDAYS", "")),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseHolidays(csv string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if day, ok := weekdayNames[name]; ok {
			days = append(days, day)
		}
	}
	return days
}
