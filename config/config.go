package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	ServerPort  int

	MQTTBroker          string
	MQTTPort            int
	BusStartupAttempts  uint
	BusMaxReconnectWait time.Duration

	StoreWriteTimeout     time.Duration
	StoreMaxWriteAttempts uint
	WriteQueueSize        int
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tracker_mqtt" // Docker-internal broker hostname
	}
	mqttPort, err := intEnv("MQTT_PORT", 1883)
	if err != nil {
		return nil, err
	}

	startupAttempts, err := intEnv("BUS_STARTUP_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if startupAttempts <= 0 {
		return nil, fmt.Errorf("BUS_STARTUP_ATTEMPTS must be positive, got %d", startupAttempts)
	}

	reconnectWait, err := durationEnv("BUS_MAX_RECONNECT_WAIT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := durationEnv("STORE_WRITE_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	writeAttempts, err := intEnv("STORE_MAX_WRITE_ATTEMPTS", 4)
	if err != nil {
		return nil, err
	}
	if writeAttempts <= 0 {
		return nil, fmt.Errorf("STORE_MAX_WRITE_ATTEMPTS must be positive, got %d", writeAttempts)
	}

	queueSize, err := intEnv("WRITE_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		return nil, fmt.Errorf("WRITE_QUEUE_SIZE must be positive, got %d", queueSize)
	}

	cfg := &Config{
		DatabaseURL:           dbURL,
		ServerPort:            port,
		MQTTBroker:            broker,
		MQTTPort:              mqttPort,
		BusStartupAttempts:    uint(startupAttempts),
		BusMaxReconnectWait:   reconnectWait,
		StoreWriteTimeout:     writeTimeout,
		StoreMaxWriteAttempts: uint(writeAttempts),
		WriteQueueSize:        queueSize,
	}

	return cfg, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
