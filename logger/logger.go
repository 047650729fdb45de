package logger

import (
	"context"
	"errors"
)

// Logger allows you to control logging with message levels and subsystem controls.
// The "Include" flags select which fields are included in each log message; newSystemConfig sets
//   them from the JSON/text choice.
// Subsystem log entries can be enabled per subsystem.
// For example the parent package can specify if they want to see logs from a subsystem and how
//   they want to see them.
//
// Sample Setup:
// // Create a log config and set it up.
// logConfig := logger.NewDevelopmentConfig()
// // Logs to stderr. To log to main.log instead use
// // logger.NewConfig(true, false, "./tmp/main.log").
// logConfig.EnableSubSystem(scheduler.SubSystem)
//
// // Attach the log config to the context.
// ctx := logger.ContextWithLogConfig(context.Background(), logConfig)
//

type Level int

const (
	LevelDebug   Level = -2
	LevelVerbose Level = -1
	LevelInfo    Level = 0
	LevelWarn    Level = 1
	LevelError   Level = 2
	LevelFatal   Level = 3 // Logged only; does not exit
	LevelPanic   Level = 4 // Logged only; does not panic
)

// Log entry formatting (which prefix fields to include)
const (
	IncludeDate      = 0x01 // date in the local time zone: 2018/01/01
	IncludeTime      = 0x02 // time in the local time zone: 06:54:32
	IncludeMicro     = 0x04 // microseconds .123123
	IncludeFile      = 0x08 // file name and line number
	IncludeSystem    = 0x10 // system name
	IncludeLevel     = 0x20 // level of log entry
	IncludeCaller    = 0x40 // short file:line of the log call site
	IncludeTimeStamp = 0x80 // unix epoch timestamp instead of IncludeDate/IncludeTime
)

// Returns a context with the logging config attached.
func ContextWithLogConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey, config)
}

func ContextWithNoLogger(ctx context.Context) context.Context {
	return context.WithValue(ctx, configKey, &emptyConfig)
}

// ContextWithLogger attaches a ready-to-use Config built by NewConfig to the context, in one
// call.
func ContextWithLogger(ctx context.Context, isDevelopment, isText bool, filePath string) context.Context {
	return ContextWithLogConfig(ctx, NewConfig(isDevelopment, isText, filePath))
}

// ContextWithLogFields attaches fields to the context so every entry logged through it (directly
// or via one of the *WithFields functions) carries them, without each call site having to repeat
// them. A field already attached is replaced, by name, rather than duplicated.
func ContextWithLogFields(ctx context.Context, fields ...Field) context.Context {
	existing := contextFields(ctx)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)

	for _, f := range fields {
		replaced := false
		for i, e := range merged {
			if e.Name() == f.Name() {
				merged[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, f)
		}
	}

	return context.WithValue(ctx, fieldsKey, merged)
}

func contextFields(ctx context.Context) []Field {
	fields, _ := ctx.Value(fieldsKey).([]Field)
	return fields
}

// Returns a context with the logging subsystem attached.
func ContextWithLogSubSystem(ctx context.Context, subsystem string) context.Context {
	return context.WithValue(ctx, subSystemKey, subsystem)
}

// Returns a context with the logging subsystem cleared. Used when a context is passed back from a
//   subsystem.
func ContextWithOutLogSubSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, subSystemKey, nil)
}

// Returns a context with trace attached, so entries logged through it carry a "trace" field.
func ContextWithLogTrace(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

// Log an entry to the main Outputs if:
//   There is no subsystem specified or if the current subsystem is included in the attached
//     Config.IncludedSubSystems.
//   And the level is equal to or above the specified minimum logging level.
// Logs to the Config.SubSystems if the level is above minimum.
func Log(ctx context.Context, level Level, format string, values ...interface{}) error {
	return LogDepth(ctx, level, 1, format, values...)
}

// Debug adds a debug level entry to the log.
func Debug(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelDebug, 1, format, values...)
}

// Verbose adds a verbose level entry to the log.
func Verbose(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelVerbose, 1, format, values...)
}

// Info adds a info level entry to the log.
func Info(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelInfo, 1, format, values...)
}

// Warn adds a warn level entry to the log.
func Warn(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelWarn, 1, format, values...)
}

// Error adds a error level entry to the log.
func Error(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelError, 1, format, values...)
}

// Fatal adds a fatal level entry to the log. It does not exit the process.
func Fatal(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelFatal, 1, format, values...)
}

// Panic adds a panic level entry to the log. It does not call panic().
func Panic(ctx context.Context, format string, values ...interface{}) error {
	return LogDepth(ctx, LevelPanic, 1, format, values...)
}

func getTrace(ctx context.Context) string {
	traceValue := ctx.Value(traceKey)
	if traceValue == nil {
		return ""
	}

	trace, ok := traceValue.(string)
	if !ok {
		return ""
	}

	return trace
}

// Same as Log, but the number of levels above the current call in the stack from which to get the
//   file name/line of code can be specified as depth.
func LogDepth(ctx context.Context, level Level, depth int, format string, values ...interface{}) error {
	return logEntry(ctx, level, GetCaller(depth+1), nil, format, values...)
}

// GetCaller resolves the file:line skip frames up the call stack from its own caller. Unlike a
// raw stack depth, the resolved string stays meaningful once passed across a goroutine boundary,
// which is why threads.Thread captures it before starting its goroutine and logs with it from
// inside that goroutine via LogDepthWithFields.
func GetCaller(skip int) string {
	return resolveCaller(skip + 1)
}

// LogDepthWithFields is the fields-carrying counterpart to LogDepth. caller is typically the
// result of an earlier GetCaller call rather than a depth resolved fresh here, since the log call
// itself may happen on a different goroutine than the one that should be attributed.
func LogDepthWithFields(ctx context.Context, level Level, caller string, fields []Field, format string,
	values ...interface{}) error {

	return logEntry(ctx, level, caller, fields, format, values...)
}

// InfoWithFields adds an info level entry carrying fields, in addition to any attached via
// ContextWithLogFields.
func InfoWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logEntry(ctx, LevelInfo, GetCaller(1), fields, format, values...)
}

// WarnWithFields adds a warn level entry carrying fields.
func WarnWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logEntry(ctx, LevelWarn, GetCaller(1), fields, format, values...)
}

// ErrorWithFields adds an error level entry carrying fields.
func ErrorWithFields(ctx context.Context, fields []Field, format string, values ...interface{}) error {
	return logEntry(ctx, LevelError, GetCaller(1), fields, format, values...)
}

func logEntry(ctx context.Context, level Level, caller string, fields []Field, format string,
	values ...interface{}) error {

	configValue := ctx.Value(configKey)
	if configValue == nil {
		// Config not specified. Use default config.
		configValue = &DefaultConfig
	}

	config, ok := configValue.(*Config)
	if !ok {
		return errors.New("Invalid Config Type")
	}

	if config == &emptyConfig {
		return nil
	}

	trace := getTrace(ctx)
	allFields := append(contextFields(ctx), fields...)

	config.mutex.Lock()
	defer config.mutex.Unlock()

	subsystem := "Main"
	subsystemValue := ctx.Value(subSystemKey)
	if subsystemValue != nil {
		var ok bool
		subsystem, ok = subsystemValue.(string)
		if !ok {
			return errors.New("Invalid SubSystem Type")
		}
		// Log to subsystem specific config
		subConfig, subExists := config.SubSystems[subsystem]
		if subExists {
			var err error
			if config.IsText {
				err = subConfig.logText(subsystem, level, caller, trace, allFields, format, values...)
			} else {
				err = subConfig.logJSON(subsystem, level, caller, trace, allFields, format, values...)
			}
			if err != nil {
				return err
			}
		}

		include, includeExists := config.IncludedSubSystems[subsystem]
		if !includeExists || !include {
			return nil // Don't log to main config
		}
	}

	// Log to main config
	if config.IsText {
		return config.Main.logText(subsystem, level, caller, trace, allFields, format, values...)
	} else {
		return config.Main.logJSON(subsystem, level, caller, trace, allFields, format, values...)
	}
}

// Keys for context key/pairs
type loggerkey int

const (
	configKey    loggerkey = 1
	subSystemKey loggerkey = 2
	traceKey     loggerkey = 3
	fieldsKey    loggerkey = 4
)

// DefaultConfig is used whenever a context carries no Config of its own.
var DefaultConfig = *NewProductionConfig()

// emptyConfig is the sentinel installed by ContextWithNoLogger; logEntry compares against its
// address to short-circuit without taking the (still valid, but pointless) main config's mutex.
var emptyConfig = *NewEmptyConfig()
