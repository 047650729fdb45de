package logger

import "sync"

// Config defines the logging configuration for the context it is attached to.
type Config struct {
	Active             SystemConfig
	Main               *SystemConfig
	IsText             bool                     // mirrors Main's format; logEntry reads it to pick text or JSON output
	IncludedSubSystems map[string]bool          // If true, log in main log
	SubSystems         map[string]*SystemConfig // SubSystem specific loggers

	mutex sync.Mutex
}

// NewConfig builds a Config logging to stderr (or filePath, if given). isDevelopment lowers the
// minimum level to verbose; isText switches the entry format from JSON to tab-delimited.
func NewConfig(isDevelopment, isText bool, filePath string) *Config {
	result := Config{
		IsText:             isText,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	main, _ := newSystemConfig(isDevelopment, isText, filePath)
	result.Main = &main
	result.Active = main
	return &result
}

// NewProductionConfig creates a new config with default production values.
//   Logs info level and above to stderr.
func NewProductionConfig() *Config {
	result := Config{
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	result.Main, _ = NewProductionLogger()
	result.Active = *result.Main
	return &result
}

// NewProductionTextConfig creates a new config with default production values.
//   Logs info level and above to stderr.
func NewProductionTextConfig() *Config {
	result := Config{
		IsText:             true,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	result.Main, _ = NewProductionTextLogger()
	result.Active = *result.Main
	return &result
}

// NewDevelopmentConfig creates a new config with default development values.
//   Logs verbose level and above to stderr.
func NewDevelopmentConfig() *Config {
	result := Config{
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	result.Main, _ = NewDevelopmentLogger()
	result.Active = *result.Main
	return &result
}

// NewDevelopmentTextConfig creates a new config with default development values.
//   Logs verbose level and above to stderr.
func NewDevelopmentTextConfig() *Config {
	result := Config{
		IsText:             true,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	result.Main, _ = NewDevelopmentTextLogger()
	result.Active = *result.Main
	return &result
}

// NewEmptyConfig creates a new config that doesn't log.
func NewEmptyConfig() *Config {
	result := Config{
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*SystemConfig),
	}

	result.Main, _ = NewEmptyLogger()
	result.Active = *result.Main
	return &result
}

// NewProductionLogger builds the SystemConfig backing NewProductionConfig: JSON entries at info
// level and above, to stderr.
func NewProductionLogger() (*SystemConfig, error) {
	sc, err := newSystemConfig(false, false, "")
	return &sc, err
}

// NewProductionTextLogger is NewProductionLogger with tab-delimited entries instead of JSON.
func NewProductionTextLogger() (*SystemConfig, error) {
	sc, err := newSystemConfig(false, true, "")
	return &sc, err
}

// NewDevelopmentLogger builds the SystemConfig backing NewDevelopmentConfig: JSON entries at
// verbose level and above, to stderr.
func NewDevelopmentLogger() (*SystemConfig, error) {
	sc, err := newSystemConfig(true, false, "")
	return &sc, err
}

// NewDevelopmentTextLogger is NewDevelopmentLogger with tab-delimited entries instead of JSON.
func NewDevelopmentTextLogger() (*SystemConfig, error) {
	sc, err := newSystemConfig(true, true, "")
	return &sc, err
}

// NewEmptyLogger builds a SystemConfig with no output, used by NewEmptyConfig.
func NewEmptyLogger() (*SystemConfig, error) {
	sc, err := newEmptySystemConfig()
	return &sc, err
}

// EnableSubSystem enables a subsytem to log to the main log
func (config *Config) EnableSubSystem(subsystem string) {
	config.IncludedSubSystems[subsystem] = true
}
