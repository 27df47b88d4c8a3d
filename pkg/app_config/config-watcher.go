package app_config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigWatcher decodes a JSON file into a T every time it is written and
// broadcasts the result to all subscribers.
type ConfigWatcher[T any] struct {
	configPath string
	logger     *zap.Logger

	lock     sync.Mutex
	watchers map[uuid.UUID]chan<- T
	watch    *fsnotify.Watcher
}

func NewConfigWatcher[T any](path string, logger *zap.Logger) (*ConfigWatcher[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configWatcher := &ConfigWatcher[T]{
		configPath: filepath.Clean(path),
		logger:     logger,
		watchers:   map[uuid.UUID]chan<- T{},
		watch:      watch,
	}

	err = configWatcher.startWatcher()
	if err != nil {
		_ = watch.Close()
		return nil, err
	}

	return configWatcher, nil
}

// ReadConfig reads the current contents of the watched file.
func (c *ConfigWatcher[T]) ReadConfig() (T, error) {
	var config T

	bytes, err := os.ReadFile(c.configPath)
	if err != nil {
		return config, err
	}

	err = json.Unmarshal(bytes, &config)
	return config, err
}

func (c *ConfigWatcher[T]) broadcastConfig(config T) {
	c.lock.Lock()
	chans := make([]chan<- T, 0, len(c.watchers))
	for _, ch := range c.watchers {
		chans = append(chans, ch)
	}
	c.lock.Unlock()

	for _, ch := range chans {
		ch <- config
	}
}

func (c *ConfigWatcher[T]) startWatcher() error {
	// editors often replace the file rather than writing it, so we watch
	// the directory and filter for our file
	err := c.watch.Add(filepath.Dir(c.configPath))
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-c.watch.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != c.configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				config, err := c.ReadConfig()
				if err != nil {
					c.logger.Warn("failed to read changed config file",
						zap.String("path", c.configPath),
						zap.Error(err))
					continue
				}

				c.broadcastConfig(config)
			case err, ok := <-c.watch.Errors:
				if !ok {
					return
				}
				c.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Subscribe registers ch to receive every successfully decoded change.  The
// returned function removes the subscription.
func (c *ConfigWatcher[T]) Subscribe(ch chan<- T) func() {
	id := uuid.New()

	c.lock.Lock()
	c.watchers[id] = ch
	c.lock.Unlock()

	return func() {
		c.lock.Lock()
		delete(c.watchers, id)
		c.lock.Unlock()
	}
}

func (c *ConfigWatcher[T]) Close() error {
	return c.watch.Close()
}
