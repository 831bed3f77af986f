// Package localtools provides example in-process tool implementations used
// by the demo worker and the conversation workflow's tool catalog. They are the
// concrete tool contract examples the specification's worked scenarios are
// built around.
package localtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relayrun/convorch/internal/toolspec"
)

// WeatherForecastSchema is the args_schema for WeatherForecast.
var WeatherForecastSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"location": {"type": "string"},
		"days": {"type": "integer", "default": 7}
	},
	"required": ["location"]
}`)

// Invoker executes a local tool given its shaped arguments.
type Invoker func(ctx context.Context, args map[string]any) (string, error)

// WeatherForecast renders a deterministic synthetic forecast string, the
// exact shape spec §8.4's scenarios assert against.
func WeatherForecast(_ context.Context, args map[string]any) (string, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return "", fmt.Errorf("weather_forecast: location is required")
	}
	days := 7
	switch v := args["days"].(type) {
	case int64:
		days = int(v)
	case int:
		days = v
	case float64:
		days = int(v)
	}
	return fmt.Sprintf("WX(%s,%d)", location, days), nil
}

// Descriptor returns the registry descriptor for the weather_forecast tool.
func Descriptor() toolspec.Descriptor {
	return toolspec.Descriptor{
		Name:        "weather_forecast",
		Description: "Look up a multi-day weather forecast for a location.",
		ArgsSchema:  WeatherForecastSchema,
		Kind:        toolspec.Local,
	}
}
