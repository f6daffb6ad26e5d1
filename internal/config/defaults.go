package config

const (
	defaultVersionsDir        = "~/.local/share/labelflow/versions"
	defaultImagesDir          = "~/labelflow/images"
	defaultLogDir             = "~/.local/share/labelflow/logs"
	defaultPromptPath         = "~/.config/labelflow/prompt.txt"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultStaleResetMinutes  = 30
	defaultErrorRetryInterval = 10
	defaultProviderBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultProviderTimeout    = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VersionsDir: defaultVersionsDir,
			ImagesDir:   defaultImagesDir,
			LogDir:      defaultLogDir,
			PromptPath:  defaultPromptPath,
		},
		Batch: Batch{
			StaleResetMinutes:  defaultStaleResetMinutes,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
