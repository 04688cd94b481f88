package httpclient

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// defaultLogger is the package-level zerolog logger used by
// DefaultZerologLogger.
var defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// LogLevel controls how much of each exchange a Logger records.
type LogLevel int

const (
	// LevelNone logs nothing.
	LevelNone LogLevel = iota
	// LevelBasic logs the method, URL, status and elapsed time.
	LevelBasic
	// LevelHeaders adds request and response headers.
	LevelHeaders
	// LevelFull adds bodies and an equivalent curl command.
	LevelFull
)

func (l LogLevel) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelBasic:
		return "BASIC"
	case LevelHeaders:
		return "HEADERS"
	case LevelFull:
		return "FULL"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// Logger records the exchanges of the invocation pipeline. configKey
// identifies the method, see MethodMetadata.ConfigKey.
type Logger interface {
	LogRequest(configKey string, level LogLevel, req *Request)

	// LogResponse may read the body; it returns the response to continue
	// with, with the body rebuffered when it was consumed.
	LogResponse(configKey string, level LogLevel, resp *Response, elapsed time.Duration) (*Response, error)

	LogRetry(configKey string, level LogLevel)
	LogIOError(configKey string, level LogLevel, err error, elapsed time.Duration)
}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) LogRequest(string, LogLevel, *Request) {}

func (nopLogger) LogResponse(_ string, _ LogLevel, resp *Response, _ time.Duration) (*Response, error) {
	return resp, nil
}

func (nopLogger) LogRetry(string, LogLevel) {}

func (nopLogger) LogIOError(string, LogLevel, error, time.Duration) {}

// ZerologLogger writes debug events to a zerolog.Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a Logger writing to logger.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	builder.Logger(httpclient.NewZerologLogger(logger)).LogLevel(httpclient.LevelHeaders)
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// DefaultZerologLogger creates a Logger writing JSON lines to stdout.
func DefaultZerologLogger() *ZerologLogger {
	return NewZerologLogger(defaultLogger)
}

// LogRequest implements Logger.
func (l *ZerologLogger) LogRequest(configKey string, level LogLevel, req *Request) {
	if level == LevelNone {
		return
	}
	event := l.logger.Debug().
		Str("method_key", configKey).
		Str("method", req.Method().String()).
		Str("url", req.URL())
	if level >= LevelHeaders {
		event = event.Dict("headers", headersDict(req.Headers()))
	}
	if level >= LevelFull {
		if req.Body() != nil {
			event = event.Str("body", req.Body().String()).Int("content_length", req.Length())
		}
		event = event.Str("curl", generateCurlCommand(req))
	}
	event.Msg("HTTP request")
}

// LogResponse implements Logger. At LevelFull the body is read and
// rebuffered so decoding still sees it.
func (l *ZerologLogger) LogResponse(
	configKey string,
	level LogLevel,
	resp *Response,
	elapsed time.Duration,
) (*Response, error) {
	if level == LevelNone {
		return resp, nil
	}
	event := l.logger.Debug().
		Str("method_key", configKey).
		Int("status", resp.Status).
		Str("reason", resp.Reason).
		Dur("elapsed", elapsed)
	if level >= LevelHeaders {
		event = event.Dict("headers", headersDict(resp.Headers))
	}
	if level >= LevelFull && resp.Body != nil {
		body, err := resp.Bytes()
		if err != nil {
			event.Err(err).Msg("HTTP response")
			return resp, err
		}
		event = event.Str("body", string(body)).Int("content_length", len(body))
	}
	event.Msg("HTTP response")
	return resp, nil
}

// LogRetry implements Logger.
func (l *ZerologLogger) LogRetry(configKey string, level LogLevel) {
	if level == LevelNone {
		return
	}
	l.logger.Debug().Str("method_key", configKey).Msg("retrying")
}

// LogIOError implements Logger.
func (l *ZerologLogger) LogIOError(configKey string, level LogLevel, err error, elapsed time.Duration) {
	if level == LevelNone {
		return
	}
	l.logger.Warn().
		Str("method_key", configKey).
		Err(err).
		Dur("elapsed", elapsed).
		Msg("HTTP request failed")
}

func headersDict(h map[string][]string) *zerolog.Event {
	dict := zerolog.Dict()
	for _, name := range sortedHeaderNames(h) {
		dict = dict.Str(name, strings.Join(h[name], ", "))
	}
	return dict
}

// generateCurlCommand renders a curl command reproducing req. Headers are
// sorted; binary bodies are left out.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' -H 'Content-Type: application/json' -d '{"name":"John"}'
func generateCurlCommand(req *Request) string {
	parts := []string{"curl"}
	if req.Method() != MethodGet {
		parts = append(parts, "-X", req.Method().String())
	}
	parts = append(parts, shellQuote(req.URL()))

	headers := req.Headers()
	for _, name := range sortedHeaderNames(headers) {
		for _, v := range headers[name] {
			parts = append(parts, "-H", shellQuote(name+": "+v))
		}
	}

	if req.Length() > 0 && !req.IsBinary() {
		parts = append(parts, "-d", shellQuote(req.Body().String()))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
