package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/koscakluka/ema-live/core/tools"
)

// demoTools give the model something to call from the terminal.
func demoTools() []tools.Tool {
	return []tools.Tool{
		tools.MustNewTool("current_time", "Get the current local time, optionally in another time zone",
			func(_ context.Context, args struct {
				Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone name such as Europe/Zagreb"`
			}) (any, error) {
				return currentTime(time.Now(), args.Timezone)
			}),
		tools.MustNewTool("roll_dice", "Roll a die with the given number of sides",
			func(_ context.Context, args struct {
				Sides int `json:"sides" jsonschema:"minimum=2,maximum=1000"`
			}) (any, error) {
				return rand.IntN(args.Sides) + 1, nil
			}),
	}
}

func currentTime(now time.Time, timezone string) (string, error) {
	location := time.Local
	if timezone != "" {
		var err error
		if location, err = time.LoadLocation(timezone); err != nil {
			return "", fmt.Errorf("unknown time zone %q", timezone)
		}
	}
	return now.In(location).Format(time.RFC1123), nil
}
