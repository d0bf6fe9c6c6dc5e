package capture

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-live/core/capture"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	blocksSent, _  = meter.Int64Counter("capture.blocks.sent")
	blocksGated, _ = meter.Int64Counter("capture.blocks.gated")
)
