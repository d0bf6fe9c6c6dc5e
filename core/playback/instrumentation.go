package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-live/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	chunksScheduled, _ = meter.Int64Counter("playback.chunks.scheduled")
	chunksDropped, _   = meter.Int64Counter("playback.chunks.dropped")
	hardStops, _       = meter.Int64Counter("playback.hard_stops")
)
