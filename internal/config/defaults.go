package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "/usr/local/var/kioku/store.json"
	}
	if cfg.Store.EmbeddingSize == 0 {
		cfg.Store.EmbeddingSize = 384
	}
	if cfg.Store.MaxDocuments == 0 {
		cfg.Store.MaxDocuments = 10000
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Lock.Attempts == 0 {
		cfg.Lock.Attempts = 5
	}
	if cfg.Lock.InitialDelayMS == 0 {
		cfg.Lock.InitialDelayMS = 50
	}
	if cfg.Lock.MaxDelayMS == 0 {
		cfg.Lock.MaxDelayMS = 500
	}
	if cfg.Lock.StaleAfterSecs == 0 {
		cfg.Lock.StaleAfterSecs = 30
	}
}
