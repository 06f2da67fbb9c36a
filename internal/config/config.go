package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	BrokerHost      string
	BrokerPort      int
	BrokerTopic     string
	ClientIDPrefix  string
	AttendanceFile  string
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	BufferCapacity  int
	RecentLimit     int
	QueueBackend    string
	QueueSize       int
	RedisAddr       string
	RedisQueueKey   string
	RateLimitPerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		BrokerHost:      getEnv("MQTT_BROKER", "broker.hivemq.com"),
		BrokerPort:      intEnv("MQTT_PORT", 1883),
		BrokerTopic:     getEnv("MQTT_TOPIC", "attendance/student"),
		ClientIDPrefix:  getEnv("MQTT_CLIENT_ID_PREFIX", "attendboard"),
		AttendanceFile:  getEnv("ATTENDANCE_FILE", "Attendance.csv"),
		CacheTTL:        durationEnv("CACHE_TTL", 5*time.Second),
		RefreshInterval: durationEnv("REFRESH_INTERVAL", 3*time.Second),
		BufferCapacity:  intEnv("LIVE_BUFFER_CAPACITY", 50),
		RecentLimit:     intEnv("RECENT_LIMIT", 10),
		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		QueueSize:       intEnv("QUEUE_SIZE", 64),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisQueueKey:   getEnv("REDIS_QUEUE_KEY", "attendboard:events"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
