package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/soaringjerry/FormPulse/internal/config"
)

// New builds a JSON logger for format "json" and a console logger otherwise.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zapCfg.Build()
}
