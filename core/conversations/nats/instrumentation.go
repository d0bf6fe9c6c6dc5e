package nats

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-live/core/conversations/nats"

var logger = otelslog.NewLogger(scopeName)
