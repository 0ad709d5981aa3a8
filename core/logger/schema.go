package logger

import "strings"

const (
	// LevelDebug is the canonical debug severity name.
	LevelDebug = "DEBUG"
	// LevelInfo is the canonical info severity name.
	LevelInfo = "INFO"
	// LevelWarn is the canonical warning severity name.
	LevelWarn = "WARN"
	// LevelError is the canonical error severity name.
	LevelError = "ERROR"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var statusNames = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if canon, ok := levelNames[strings.ToLower(level)]; ok {
		return canon
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	canon, ok := statusNames[status]
	if !ok {
		return status, false
	}
	return canon, true
}

// defaultKeyOrder pins the well-known keys to the front of every line so
// grep and eyeballs find them in the same place.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"operation",
	"state",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"tokens",
	"bot_id",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"fault",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
}
