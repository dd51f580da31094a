package logger

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"cryptopay/internal/config"
)

func NewLogger(cfg *config.Config) *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("Failed to build logger: %v", err))
	}
	return logger.With(zap.String("service", "cryptopay"))
}

type gooseLogger struct {
	logger *zap.Logger
}

// GooseZapLogger routes goose migration output through zap.
func GooseZapLogger(logger *zap.Logger) goose.Logger {
	return &gooseLogger{logger: logger.With(zap.String("component", "goose"))}
}

func (g *gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Fatal(fmt.Sprintf(format, v...))
}

func (g *gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Info(fmt.Sprintf(format, v...))
}
