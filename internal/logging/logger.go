package logging

import (
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Development mode logs at debug level
// in a human readable encoding.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if cfg.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
