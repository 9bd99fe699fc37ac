package logger

import (
	"encoding/json"
	"log/slog"
	"path"
	"reflect"
	"strings"
)

// attrFormatter has the signature of slog.HandlerOptions.ReplaceAttr.
type attrFormatter func(groups []string, a slog.Attr) slog.Attr

/*
chainFormatters returns formatter which applies non-nil formatters of "f" in
order, nil when there is nothing to apply.
*/
func chainFormatters(f ...attrFormatter) attrFormatter {
	var chain []attrFormatter
	for _, fn := range f {
		if fn != nil {
			chain = append(chain, fn)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, fn := range chain {
			a = fn(groups, a)
		}
		return a
	}
}

// timeFormatter renders the record time with layout, "none" drops the time and "" keeps the handler's default.
func timeFormatter(layout string) attrFormatter {
	if layout == "" {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.TimeKey || len(groups) != 0 {
			return a
		}
		if layout == "none" {
			return slog.Attr{}
		}
		if t := a.Value.Time(); !t.IsZero() {
			a.Value = slog.StringValue(t.Format(layout))
		}
		return a
	}
}

func levelName(lvl slog.Level) string {
	if lvl <= LevelTrace {
		return "TRACE"
	}
	return lvl.String()
}

func formatLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelName(lvl))
		}
	}
	return a
}

// formatDataJSON replaces structured data value with it's JSON encoding.
func formatDataJSON(groups []string, a slog.Attr) slog.Attr {
	if a.Key != DataKey || a.Value.Kind() != slog.KindAny {
		return a
	}
	if b, err := json.Marshal(a.Value.Any()); err == nil {
		a.Value = slog.StringValue(string(b))
	}
	return a
}

// formatConsole maps message and level to the keys zerolog.ConsoleWriter expects.
func formatConsole(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return a
	}
	switch a.Key {
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(strings.ToLower(levelName(lvl)))
		}
	}
	return a
}

// formatCLI keeps only level, message and error.
func formatCLI(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey, slog.MessageKey, ErrorKey:
		return a
	}
	return slog.Attr{}
}

// ecsFields maps attribute keys to their ECS field path.
var ecsFields = map[string][]string{
	ModuleKey:  {"service", "module", "name"},
	ErrorKey:   {"error", "message"},
	AddressKey: {"account", "address"},
	TxIDKey:    {"transaction", "id"},
	SlotKey:    {"resmeter", "slot"},
	TierKey:    {"resmeter", "tier"},
}

// formatECS formats the well known attributes as Elastic Common Schema fields.
func formatECS(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		return slog.Group("log", slog.Group("origin",
			slog.String("function", shortFuncName(src.Function)),
			slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
		))
	case DataKey:
		// the same field must have the same type in the index so the value
		// is nested under the name of it's type
		return slog.Group(DataKey, slog.Any(dataName(a.Value), a.Value))
	}
	if fields, ok := ecsFields[a.Key]; ok {
		return nest(fields, a.Value)
	}
	return a
}

func nest(fields []string, v slog.Value) slog.Attr {
	a := slog.Attr{Key: fields[len(fields)-1], Value: v}
	for i := len(fields) - 2; i >= 0; i-- {
		a = slog.Group(fields[i], a)
	}
	return a
}

/*
dataName returns the type name of "v" usable as JSON key, ie "types_Account"
for both types.Account and *types.Account. Anonymous types return their
definition.
*/
func dataName(v slog.Value) string {
	if k := v.Kind(); k != slog.KindAny && k != slog.KindLogValuer {
		return k.String()
	}
	name := reflect.TypeOf(v.Any()).String()
	return strings.ReplaceAll(strings.TrimLeft(name, "*"), ".", "_")
}

// shortFuncName strips the package path from the function name
// (github.com/resmeter/resmeter/state.(*State).Commit -> (*State).Commit).
func shortFuncName(fn string) string {
	_, fn = path.Split(fn)
	if _, name, ok := strings.Cut(fn, "."); ok {
		return name
	}
	return fn
}
