package runner

import (
	"time"
)

// Options arrive from YAML or JSON decoding, so numbers may be int or float64.

func getStringOption(options map[string]interface{}, key, defaultValue string) string {
	if value, ok := options[key].(string); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntOption(options map[string]interface{}, key string, defaultValue int) int {
	switch value := options[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return defaultValue
}

func getBoolOption(options map[string]interface{}, key string, defaultValue bool) bool {
	if value, ok := options[key].(bool); ok {
		return value
	}
	return defaultValue
}

// getDurationOption accepts a Go duration string or a number of seconds.
func getDurationOption(options map[string]interface{}, key string, defaultValue time.Duration) time.Duration {
	switch value := options[key].(type) {
	case string:
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	case int:
		return time.Duration(value) * time.Second
	case int64:
		return time.Duration(value) * time.Second
	case float64:
		return time.Duration(value * float64(time.Second))
	}
	return defaultValue
}

func getHeadersOption(options map[string]interface{}) map[string]string {
	headers := make(map[string]string)

	switch headersOpt := options["headers"].(type) {
	case map[string]interface{}:
		for key, value := range headersOpt {
			if strValue, ok := value.(string); ok {
				headers[key] = strValue
			}
		}
	case map[string]string:
		for key, value := range headersOpt {
			headers[key] = value
		}
	}

	return headers
}
