package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/util"
)

// LoggerConfig configures the request logger.
type LoggerConfig struct {
	Skipper         middleware.Skipper
	Level           zerolog.Level
	LogRequestBody  bool
	LogResponseBody bool
}

// DefaultLoggerConfig logs every request at debug level without bodies.
var DefaultLoggerConfig = LoggerConfig{
	Skipper: middleware.DefaultSkipper,
	Level:   zerolog.DebugLevel,
}

// LoggerWithConfig attaches a request scoped logger carrying the request id to the
// request context and logs each request once it has been served.
func LoggerWithConfig(config LoggerConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultLoggerConfig.Skipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			res := c.Response()

			id := res.Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = req.Header.Get(echo.HeaderXRequestID)
			}

			logger := log.With().Str("id", id).Logger()
			ctx := logger.WithContext(util.WithRequestID(req.Context(), id))
			c.SetRequest(req.WithContext(ctx))

			var reqBody []byte
			if config.LogRequestBody && req.Body != nil {
				var err error
				reqBody, err = io.ReadAll(req.Body)
				if err != nil {
					logger.Debug().Err(err).Msg("Failed to read body while logging request")
					return err
				}
				req.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			var resBody bytes.Buffer
			if config.LogResponseBody {
				res.Writer = &bodyDumpWriter{ResponseWriter: res.Writer, body: &resBody}
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			e := logger.WithLevel(config.Level).
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("duration_ms", time.Since(start))
			if config.LogRequestBody {
				e = e.Bytes("request_body", reqBody)
			}
			if config.LogResponseBody {
				e = e.Bytes("response_body", resBody.Bytes())
			}
			if err != nil {
				e = e.Err(err)
			}
			e.Msg("http_request")

			return nil
		}
	}
}
