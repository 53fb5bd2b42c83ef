package config

import "github.com/ticos-device/ticosd/internal/logging"

func testLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelError})
}
