package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single-line kv or JSON with a fixed
// key prefix order, pulling rid/user/chat identifiers out of the context.
type structuredHandler struct {
	cfg    handlerConfig
	preset []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	row := make(map[string]any, 16)
	when := r.Time.UTC()
	row["ts"] = when.Truncate(time.Millisecond).Format(tsLayout)
	row["level"] = normalizeLevel(r.Level.String())
	asJSON := h.cfg.format == formatJSON
	if asJSON {
		row["ts_unix_nano"] = when.UnixNano()
	}

	for _, a := range h.preset {
		h.absorb(row, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.absorb(row, a)
		return true
	})
	contextFields(ctx, row)

	if rid, ok := asString(row, "rid"); ok && rid != "" {
		if short := CompactRID(rid); short != "" && short != rid {
			if asJSON {
				if _, dup := row["rid_full"]; !dup {
					row["rid_full"] = rid
				}
			}
			row["rid"] = short
		}
	}

	if ev, ok := asString(row, "event"); !ok || ev == "" {
		row["event"] = "unknown"
		if r.Message != "" {
			row["event"] = r.Message
		}
	}
	if c, ok := asString(row, "component"); !ok || c == "" {
		row["component"] = "app"
	}
	if s, ok := asString(row, "status"); ok && s != "" {
		if canon, valid := normalizeStatus(s); valid {
			row["status"] = canon
		}
	}
	dropEmpty(row)

	var (
		line []byte
		err  error
	)
	if asJSON {
		line, err = renderJSON(row, h.cfg.keyOrder)
	} else {
		line = renderKV(row, h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) absorb(row map[string]any, attr slog.Attr) {
	walkAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		key, val, ok := coerceAttr(k, v)
		if ok {
			row[key] = val
		}
	})
}

// walkAttr flattens nested groups into dot-joined keys.
func walkAttr(prefix string, attr slog.Attr, emit func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			walkAttr(key, child, emit)
		}
		return
	}
	emit(key, attr.Value)
}

func coerceAttr(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		u := val.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := val.Any().(type) {
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return msKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		case nil:
			return key, nil, false
		default:
			return key, fmt.Sprint(x), true
		}
	default:
		return key, val.Any(), true
	}
}

// msKey rewrites duration keys so every duration lands in a *_ms field.
func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func dropEmpty(row map[string]any) {
	for k, v := range row {
		switch val := v.(type) {
		case nil:
			delete(row, k)
		case string:
			if val == "" {
				delete(row, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(row, k)
			}
		}
	}
}

func renderJSON(row map[string]any, order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	wrote := 0
	emitted := make(map[string]struct{}, len(row))
	emit := func(k string) error {
		data, err := json.Marshal(row[k])
		if err != nil {
			return err
		}
		if wrote > 0 {
			b.WriteByte(',')
		}
		wrote++
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
		emitted[k] = struct{}{}
		return nil
	}
	for _, key := range order {
		if _, ok := row[key]; !ok {
			continue
		}
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	rest := make([]string, 0, len(row))
	for k := range row {
		if _, done := emitted[k]; !done {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func renderKV(row map[string]any, order []string) []byte {
	var b strings.Builder
	for i, key := range sortedKeys(row, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(row[key]))
	}
	return []byte(b.String())
}

// sortedKeys puts the well-known keys first in their configured order and
// the rest alphabetically after them.
func sortedKeys(row map[string]any, order []string) []string {
	keys := make([]string, 0, len(row))
	seen := make(map[string]struct{}, len(row))
	for _, key := range order {
		if _, ok := row[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	head := len(keys)
	for key := range row {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

func kvValue(val any) string {
	switch v := val.(type) {
	case string:
		if strings.IndexFunc(v, kvUnsafe) >= 0 {
			return strconv.Quote(v)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		s := fmt.Sprint(v)
		if strings.IndexFunc(s, kvUnsafe) >= 0 {
			return strconv.Quote(s)
		}
		return s
	}
}

func kvUnsafe(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}

func asString(row map[string]any, key string) (string, bool) {
	v, ok := row[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

func contextFields(ctx context.Context, row map[string]any) {
	if ctx == nil {
		return
	}
	put := func(key string, val any) {
		if _, ok := row[key]; !ok {
			row[key] = val
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		put("rid", rid)
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		put("user_id", uid)
	}
	if upd := UpdateIDFrom(ctx); upd != 0 {
		put("update_id", upd)
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		put("chat_id", cid)
	}
	if name := HandlerFrom(ctx); name != "" {
		put("handler", name)
	}
}
