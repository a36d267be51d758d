package config

const (
	defaultRuntimeDir  = "/tmp/videowall/sockets"
	defaultLogDir      = "~/.local/share/videowall/logs"
	defaultStateDir    = "~/.local/share/videowall/state"
	defaultMappingFile = "~/.config/videowall/monitors_mapping.json"

	defaultPlayerBinary = "mpv"
	defaultVideoOutput  = "gpu"

	defaultScreenCount = 3
	// AudioScreen -1 selects the middle screen of the ordered slot list.
	defaultAudioScreen = -1

	defaultPollIntervalSeconds  = 1
	defaultSettleDelayMillis    = 50
	defaultCommandTimeoutMillis = 500
	defaultCommandRetries       = 3
	defaultRetryDelayMillis     = 100
	defaultDriftSlackSeconds    = 1.0
	defaultMaxSampleFailures    = 5
	defaultWarmupSeconds        = 2
	defaultSocketWaitSeconds    = 10
	defaultShutdownGraceSeconds = 2

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir:  defaultRuntimeDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			MappingFile: defaultMappingFile,
		},
		Player: Player{
			Binary:      defaultPlayerBinary,
			VideoOutput: defaultVideoOutput,
		},
		Screens: Screens{
			Count:       defaultScreenCount,
			AudioScreen: defaultAudioScreen,
		},
		Sync: Sync{
			PollIntervalSeconds:  defaultPollIntervalSeconds,
			SettleDelayMillis:    defaultSettleDelayMillis,
			CommandTimeoutMillis: defaultCommandTimeoutMillis,
			CommandRetries:       defaultCommandRetries,
			RetryDelayMillis:     defaultRetryDelayMillis,
			DriftSlackSeconds:    defaultDriftSlackSeconds,
			MaxSampleFailures:    defaultMaxSampleFailures,
			WarmupSeconds:        defaultWarmupSeconds,
			SocketWaitSeconds:    defaultSocketWaitSeconds,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
