package serv

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// events closer together than this trigger a single reload
const reloadDebounce = 500 * time.Millisecond

// Initialize the watcher for the config directory
func initConfigWatcher(s1 *Service) {
	s := s1.load()
	if s.conf.Serv.Production || s.conf.ConfigPath == "" {
		return
	}

	go func() {
		err := startConfigWatcher(s1)
		if err != nil {
			s.log.Errorf("error in config file watcher: %s", err)
		}
	}()
}

// startConfigWatcher reloads the collections when a file in the config
// path changes. It returns when the service is closed or the watcher fails.
func startConfigWatcher(s1 *Service) error {
	s := s1.load()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.conf.ConfigPath); err != nil {
		return err
	}
	s.log.Infof("watching %s for changes", s.conf.ConfigPath)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s1.done:
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			s.log.Debugf("config change: %s", ev)

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if err := s1.Reload(ctx); err != nil {
					s.log.Errorf("reload failed: %s", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
