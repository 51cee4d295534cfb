package logger

// Config log rotation, level and encoding settings
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Service    string `mapstructure:"service"`
	Stderr     bool   `mapstructure:"stderr"`
	FileName   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:      "INFO",
		Format:     FormatJSON,
		Service:    "nvm",
		FileName:   "./logs/nvm.log",
		MaxSize:    500,
		MaxAge:     360,
		MaxBackups: 20,
		Compress:   true,
	}
}
