package logger

import (
	"time"

	"printhub/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewLogger builds the application logger for the configured environment
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.FunctionKey = "func"

	log, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return log.Named("printhub"), nil
}

// GinLogger logs one line per request, leveled by response status
func GinLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if userID, ok := c.Get("userID"); ok {
			fields = append(fields, zap.Any("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request processed", fields...)
		case status >= 400:
			log.Warn("request processed", fields...)
		default:
			log.Info("request processed", fields...)
		}
	}
}
