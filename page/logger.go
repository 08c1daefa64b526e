package page

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// leveledLogger routes retryablehttp logs into zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, kv ...any) { fields(l.logger.Error(), kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { fields(l.logger.Warn(), kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { fields(l.logger.Debug(), kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { fields(l.logger.Trace(), kv).Msg(msg) }

func fields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	return e
}
