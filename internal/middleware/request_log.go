package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
)

// RequestLogger tags each request with an id, puts a request-scoped zap
// logger on the context and logs one line per request.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	logValues := echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if uid, ok := c.Get("user_id").(string); ok {
				fields = append(fields, zap.String("user_id", uid))
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})

	scope := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
				req.Header.Set(echo.HeaderXRequestID, rid)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			l := log.With(zap.String("request_id", rid))
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), l)))
			return next(c)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return scope(logValues(next))
	}
}
