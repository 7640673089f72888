package config

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	var cfg AppConfig
	var err error
	if cfg.Log, err = LoadLog(); err != nil {
		return AppConfig{}, err
	}
	if cfg.Server, err = LoadServer(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
