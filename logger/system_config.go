package logger

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	levelName = []string{
		"debug",
		"verbose",
		"info",
		"warn",
		"error",
		"fatal",
		"panic",
	}

	tab        = []byte{byte('\t')}
	comma      = []byte{byte(',')}
	newLine    = []byte{byte('\n')}
	openCurly  = []byte{byte('{')}
	closeCurly = []byte{byte('}')}
)

const (
	// levelOffset is the amount to add to change the lowest log level to zero so it aligns with the
	// levelName list
	levelOffset = 2
)

// SystemConfig defines the configuration the main system or a subsystem with custom settings.
type SystemConfig struct {
	minLevel   Level
	stackLevel Level
	isText     bool
	output     Output
	fields     []Field
	format     int

	first bool
}

// Copy makes a separate copy so if the fields are modified in one copy they will not be in another.
func (sc SystemConfig) Copy() SystemConfig {
	result := sc
	result.fields = make([]Field, len(sc.fields))
	copy(result.fields, sc.fields)
	return result
}

// newSystemConfig creates a new logger system config. isText switches entries from JSON to tab
// delimited.
func newSystemConfig(isDevelopment, isText bool, filePath string) (SystemConfig, error) {
	result := SystemConfig{
		isText:     isText,
		stackLevel: LevelError,
		minLevel:   LevelInfo,
		format:     IncludeCaller | IncludeLevel,
	}

	if isText {
		result.format |= IncludeDate | IncludeTime | IncludeMicro
	} else {
		result.format |= IncludeTimeStamp
	}

	if isDevelopment {
		result.minLevel = LevelVerbose
	}

	if len(filePath) > 0 {
		if filePath == "dummy" { // for benchmarking
			result.output = &dummyWriter{}
		} else {
			file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				panic(errors.Wrap(err, "open file"))
				return result, errors.Wrap(err, "open file")
			}

			result.output = &fileWriter{file: file}
		}
	} else {
		result.output = &printer{}
	}

	return result, nil
}

// newEmptySystemConfig a new logger system config that doesn't log.
func newEmptySystemConfig() (SystemConfig, error) {
	return SystemConfig{}, nil
}

// addField adds a field to the log outputs
func (s *SystemConfig) addField(newField Field) {
	for i, field := range s.fields {
		if field.Name() == newField.Name() {
			s.fields[i] = newField
			return
		}
	}

	s.fields = append(s.fields, newField)
}

// addSubSystem adds a subsystem to the log outputs
func (s *SystemConfig) addSubSystem(name string) {
	for i, field := range s.fields {
		if field.Name() == "subsystem" {
			s.fields[i] = String("subsystem", name)
			return
		}
	}

	s.fields = append(s.fields, String("subsystem", name))
}

// removeSubSystem removes the subsystem from the log outputs
func (s *SystemConfig) removeSubSystem() {
	for i, field := range s.fields {
		if field.Name() == "subsystem" {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return
		}
	}
}

// logJSON writes a JSON entry for subsystem, folding trace and caller in as extra fields alongside
// whatever the caller explicitly attached.
func (config *SystemConfig) logJSON(subsystem string, level Level, caller string, trace string,
	fields []Field, format string, values ...interface{}) error {

	return config.writeJSONEntry(level, 0, caller, entryFields(subsystem, trace, fields), format, values...)
}

// logText is the tab-delimited counterpart to logJSON.
func (config *SystemConfig) logText(subsystem string, level Level, caller string, trace string,
	fields []Field, format string, values ...interface{}) error {

	return config.writeTextEntry(level, 0, caller, entryFields(subsystem, trace, fields), format, values...)
}

// entryFields prepends the subsystem (when not the unnamed main one) and trace id to fields so
// they show up alongside any explicitly attached fields without needing their own output code
// path.
func entryFields(subsystem, trace string, fields []Field) []Field {
	var result []Field
	if len(subsystem) > 0 && subsystem != "Main" {
		result = append(result, String("subsystem", subsystem))
	}
	if len(trace) > 0 {
		result = append(result, String("trace", trace))
	}
	return append(result, fields...)
}

func (config *SystemConfig) writeField(format string, values ...interface{}) {
	if config.first {
		config.first = false
	} else if config.isText {
		config.output.Write(tab)
	} else {
		config.output.Write(comma)
	}

	fmt.Fprintf(config.output, format, values...)
}

// resolveCaller formats the file:line skip frames up the stack from its own caller. It is the
// fallback used when a log entry doesn't already carry a caller resolved by GetCaller.
func resolveCaller(skip int) string {
	_, filepath, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "???"
	}

	fileParts := strings.Split(filepath, string(os.PathSeparator))
	if l := len(fileParts); l >= 2 {
		filepath = fileParts[l-2] + string(os.PathSeparator) + fileParts[l-1]
	} else if l != 0 {
		filepath = fileParts[0]
	}

	return fmt.Sprintf("%s:%d", filepath, line)
}

func (config *SystemConfig) writeEntry(level Level, depth int, fields []Field, format string,
	values ...interface{}) error {

	if config.isText {
		return config.writeTextEntry(level, depth+1, "", fields, format, values...)
	}

	return config.writeJSONEntry(level, depth+1, "", fields, format, values...)
}

// writeJSONEntry writes a JSON log entry. caller, if non-empty, is used as the "caller" field
// verbatim instead of resolving one from depth frames up the stack -- necessary when the entry is
// being logged from a different goroutine than the one the caller information describes, as is
// the case for threads.Thread's start/finish log lines.
func (config *SystemConfig) writeJSONEntry(level Level, depth int, caller string, fields []Field, format string,
	values ...interface{}) error {

	if config.output == nil {
		return nil
	}

	if config.minLevel > level {
		return nil // Level is below minimum
	}

	config.output.Lock()
	defer config.output.Unlock()

	config.first = true
	config.output.Write(openCurly)

	// Write Level
	if config.format&IncludeLevel != 0 {
		config.writeField("\"level\":\"%s\"", levelName[level+levelOffset])
	}

	// Create log entry
	now := time.Now()

	// Append timestamp
	if config.format&IncludeTimeStamp != 0 {
		config.writeField("\"ts\":%d.%06d", now.Unix(), now.Nanosecond()/1e3)
	}

	// Append Date
	var datetime bytes.Buffer
	if config.format&IncludeDate != 0 {
		year, month, day := now.Date()
		fmt.Fprintf(&datetime, "%04d/%02d/%02d", year, month, day)
		if config.format&IncludeTime != 0 {
			fmt.Fprint(&datetime, []byte(" "))
		}
	}

	// Append Time
	if config.format&IncludeTime != 0 {
		hour, min, sec := now.Clock()
		fmt.Fprintf(&datetime, "%02d:%02d:%02d", hour, min, sec)
		if config.format&IncludeMicro != 0 {
			fmt.Fprintf(&datetime, ".%06d", now.Nanosecond()/1e3)
		}
	}

	if datetime.Len() > 0 {
		name := ""
		if config.format&IncludeDate != 0 {
			name = "date"
		}
		if config.format&IncludeTime != 0 {
			name += "time"
		}

		config.writeField("\"%s\":\"%s\"", name, string(datetime.Bytes()))
	}

	// Append Caller
	if config.format&IncludeCaller != 0 {
		if len(caller) == 0 {
			caller = resolveCaller(depth + 1)
		}

		config.writeField("\"caller\":\"%s\"", caller)
	}

	// Append actual log entry
	config.writeField("\"msg\":\"%s\"", fmt.Sprintf(format, values...))

	for _, field := range config.fields {
		config.writeField("\"%s\":%s", field.Name(), field.ValueJSON())
	}

	for _, field := range fields {
		config.writeField("\"%s\":%s", field.Name(), field.ValueJSON())
	}

	config.output.Write(closeCurly)
	config.output.Write(newLine)

	return nil
}

// writeTextEntry writes a tab-delimited log entry. See writeJSONEntry for the meaning of caller.
func (config *SystemConfig) writeTextEntry(level Level, depth int, caller string, fields []Field, format string,
	values ...interface{}) error {

	if config.output == nil {
		return nil
	}

	if config.minLevel > level {
		return nil // Level is below minimum
	}

	// Write full entry to output
	config.output.Lock()
	defer config.output.Unlock()

	config.first = true

	// Write Level
	if config.format&IncludeLevel != 0 {
		config.writeField("%s", levelName[level+levelOffset])
	}

	// Create log entry
	now := time.Now()

	// Append timestamp
	if config.format&IncludeTimeStamp != 0 {
		config.writeField("ts %d.%06d", now.Unix(), now.Nanosecond()/1e3)
	}

	// Append Date
	var datetime bytes.Buffer
	if config.format&IncludeDate != 0 {
		year, month, day := now.Date()
		fmt.Fprintf(&datetime, "%04d/%02d/%02d", year, month, day)
		if config.format&IncludeTime != 0 {
			fmt.Fprint(&datetime, []byte(" "))
		}
	}

	// Append Time
	if config.format&IncludeTime != 0 {
		hour, min, sec := now.Clock()
		fmt.Fprintf(&datetime, "%02d:%02d:%02d", hour, min, sec)
		if config.format&IncludeMicro != 0 {
			fmt.Fprintf(&datetime, ".%06d", now.Nanosecond()/1e3)
		}
	}

	if datetime.Len() > 0 {
		config.writeField("%s", string(datetime.Bytes()))
	}

	// Append Caller
	if config.format&IncludeCaller != 0 {
		if len(caller) == 0 {
			caller = resolveCaller(depth + 1)
		}

		config.writeField("%s", caller)
	}

	// Append actual log entry
	config.writeField("%s", fmt.Sprintf(format, values...))

	for _, field := range config.fields {
		fmt.Fprintf(config.output, ", %s: %s", field.Name(), field.ValueJSON())
	}

	for _, field := range fields {
		fmt.Fprintf(config.output, ", %s: %s", field.Name(), field.ValueJSON())
	}

	config.output.Write(newLine)

	return nil
}

type Output interface {
	Write([]byte) (int, error)
	Lock()
	Unlock()
}

type fileWriter struct {
	file *os.File
	lock sync.Mutex
}

func (w *fileWriter) Write(b []byte) (int, error) {
	return w.file.Write(b)
}

func (w *fileWriter) Lock() {
	w.lock.Lock()
}

func (w *fileWriter) Unlock() {
	w.file.Sync()
	w.lock.Unlock()
}

type printer struct {
	lock sync.Mutex
}

func (p *printer) Write(b []byte) (int, error) {
	return os.Stderr.Write(b)
}

func (p *printer) Lock() {
	p.lock.Lock()
}

func (p *printer) Unlock() {
	p.lock.Unlock()
}

type dummyWriter struct {
	lock sync.Mutex
}

func (d *dummyWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (d *dummyWriter) Lock() {
	d.lock.Lock()
}

func (d *dummyWriter) Unlock() {
	d.lock.Unlock()
}
