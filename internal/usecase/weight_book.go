package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"HackCap/internal/domain/models"
	svcmetrics "HackCap/internal/service/metrics"
	"HackCap/pkg/logger"
)

// WeightNormalizer validates raw weights against the active agent set.
type WeightNormalizer interface {
	Normalize(models.WeightVector) (models.WeightVector, error)
}

// WeightBook holds the current ensemble weights. Callers always receive a
// copy, so an update never changes a decision already in flight.
type WeightBook struct {
	norm WeightNormalizer
	log  *logger.Logger

	mu        sync.RWMutex
	current   models.WeightVector
	listeners []func(models.WeightVector)
}

// NewWeightBook validates and installs the initial weights.
func NewWeightBook(norm WeightNormalizer, initial map[string]float64) (*WeightBook, error) {
	b := &WeightBook{norm: norm, log: logger.Nop()}
	w, err := norm.Normalize(models.WeightVector(initial))
	if err != nil {
		return nil, err
	}
	b.current = w
	return b, nil
}

func (b *WeightBook) SetLogger(l *logger.Logger) {
	if l != nil {
		b.log = l
	}
}

// Current returns a copy of the normalized weights.
func (b *WeightBook) Current() models.WeightVector {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.Clone()
}

// Subscribe registers fn to receive every accepted update.
func (b *WeightBook) Subscribe(fn func(models.WeightVector)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Update accepts a raw, possibly unnormalized mapping. Invalid input leaves
// the current weights untouched.
func (b *WeightBook) Update(raw map[string]float64) (models.WeightVector, error) {
	w, err := b.norm.Normalize(models.WeightVector(raw).Clone())
	if err != nil {
		svcmetrics.WeightUpdates.WithLabelValues("rejected").Inc()
		return nil, err
	}

	b.mu.Lock()
	b.current = w
	listeners := append([]func(models.WeightVector){}, b.listeners...)
	b.mu.Unlock()

	svcmetrics.WeightUpdates.WithLabelValues("accepted").Inc()
	b.log.Info("ensemble weights updated", logger.Any("weights", map[string]float64(w)))
	for _, fn := range listeners {
		fn(w.Clone())
	}
	return w.Clone(), nil
}

// LoadFile reads a YAML mapping of agent id to weight and applies it.
func (b *WeightBook) LoadFile(path string) (models.WeightVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse weights file: %w", err)
	}
	return b.Update(raw)
}

// Watch reloads path whenever it is written or replaced, until ctx ends.
// The parent directory is watched so editors that rename over the file work.
func (b *WeightBook) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	b.log.Info("watching weights file", logger.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs || !evt.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if _, err := b.LoadFile(abs); err != nil {
				b.log.Warn("weights reload rejected", logger.String("path", abs), logger.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("weights watcher error", logger.Error(err))
		}
	}
}
