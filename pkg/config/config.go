package config

import (
	"github.com/Czone-League/nuls/pkg/contract/vm"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/spf13/viper"
)

const (
	// EngineBadger selects the badger backed store
	EngineBadger = "badger"
	// EngineLevelDB selects the goleveldb backed store
	EngineLevelDB = "leveldb"
)

type CfgInfo struct {
	LogConfig   *logger.Config `mapstructure:"logconfig"`
	VMConfig    *vm.Config     `mapstructure:"vmconfig"`
	StoreConfig *StoreConfig   `mapstructure:"storeconfig"`
	CacheConfig *CacheConfig   `mapstructure:"cacheconfig"`
}

type StoreConfig struct {
	Engine string `mapstructure:"engine"`
	Path   string `mapstructure:"path"`
}

type CacheConfig struct {
	CodeCacheSize  int `mapstructure:"codecachesize"`
	StateCacheSize int `mapstructure:"statecachesize"`
}

// DefaultConfig returns the configuration used when no file is supplied
func DefaultConfig() *CfgInfo {
	return &CfgInfo{
		LogConfig: logger.DefaultConfig(),
		VMConfig:  vm.DefaultConfig(),
		StoreConfig: &StoreConfig{
			Engine: EngineBadger,
			Path:   "./data/nvm",
		},
		CacheConfig: &CacheConfig{
			CodeCacheSize:  256,
			StateCacheSize: 16,
		},
	}
}

// LoadConfig load configuration information, missing sections keep their defaults
func LoadConfig(path string) (*CfgInfo, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nvmConf")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config/")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
