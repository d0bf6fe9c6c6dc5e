package video

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-live/core/video"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	framesSent, _    = meter.Int64Counter("video.frames.sent")
	framesSkipped, _ = meter.Int64Counter("video.frames.skipped")
)
