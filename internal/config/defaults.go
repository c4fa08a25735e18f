package config

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Server: Server{
			Addr:                     ":8080",
			ReadHeaderTimeoutSeconds: 15,
			ShutdownTimeoutSeconds:   10,
		},
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "songtagger.db",
		},
		Spotify: Spotify{
			BaseURL:        "https://api.spotify.com/v1",
			TokenURL:       "https://accounts.spotify.com/api/token",
			MaxRetries:     3,
			RetryBackoffMs: 500,
		},
		Engine: Engine{
			Workers:             4,
			RunTimeoutSeconds:   120,
			QueueSize:           64,
			RunWorkers:          2,
			RunRetentionSeconds: 900,
			RetainRuns:          256,
		},
		Logging: Logging{
			Format: "text",
			Level:  "info",
		},
	}
}
