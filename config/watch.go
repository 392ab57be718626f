package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-reads config.yaml from dir whenever it changes and passes the
// decoded result to onChange. It returns an error when no file can be found
// to watch.
func Watch(dir string, logger *zap.Logger, onChange func(*Config)) error {
	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config file changed", zap.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// WatchDefault watches the config directory Load uses.
func WatchDefault(logger *zap.Logger, onChange func(*Config)) error {
	return Watch(configDir(), logger, onChange)
}

