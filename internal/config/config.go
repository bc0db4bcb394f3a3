package config

import (
	"errors"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	Lock sync.RWMutex

	initLock  sync.Mutex
	hasInit   bool
	initError error

	listenerLock sync.Mutex
	listeners    []func(fsnotify.Event)
)

func IsProductionMode() bool {
	return os.Getenv("ENVIRONMENT") == "prod"
}

func IsDebugLoggingEnabled() bool {
	return os.Getenv("DEBUG_LOG") == "true"
}

func Init() error {
	initLock.Lock()
	defer initLock.Unlock()

	if hasInit {
		return initError
	}

	Lock.Lock()
	defer Lock.Unlock()

	configFilePath := os.Getenv("CONFIG_FILE_PATH")
	if configFilePath == "" {
		viper.SetConfigName("loginguard")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(configFilePath)
	}

	hasInit = true

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			initError = err
			return initError
		}

		log.Fatal().Str("config_file", viper.ConfigFileUsed()).Err(err).Msg("could not read config")
	}
	log.Info().Str("config_file_path", viper.ConfigFileUsed()).Msg("initialized configuration")

	viper.OnConfigChange(notifyListeners)
	viper.WatchConfig()

	return nil
}

// OnChange registers fn to be called every time the config file is rewritten. viper only keeps a single change
// callback, so everything that wants to hear about changes goes through here.
func OnChange(fn func(fsnotify.Event)) {
	listenerLock.Lock()
	defer listenerLock.Unlock()

	listeners = append(listeners, fn)
}

func notifyListeners(e fsnotify.Event) {
	log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config file changed")

	listenerLock.Lock()
	current := make([]func(fsnotify.Event), len(listeners))
	copy(current, listeners)
	listenerLock.Unlock()

	for _, curr := range current {
		curr(e)
	}
}
