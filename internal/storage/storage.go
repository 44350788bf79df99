// Package storage persists named JSON records through a pluggable backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotExist is returned by Load when a record was never saved.
var ErrNotExist = errors.New("record does not exist")

// Record keys.
const (
	KeyState     = "state"
	KeyAssistant = "assistant"
	KeyHistory   = "history"
)

// Backend stores opaque records by key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Kinds of backend.
const (
	KindFile   = "file"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Kind  string
	Dir   string
	Redis RedisConfig
}

// Open creates the backend named by cfg.Kind. An empty kind means file.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindFile:
		return NewFileBackend(cfg.Dir)
	case KindRedis:
		return NewRedisBackend(ctx, cfg.Redis)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q (want file or redis)", cfg.Kind)
	}
}

// LoadJSON loads key and decodes it into v. It returns ErrNotExist
// unchanged so callers can fall back to defaults.
func LoadJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := b.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s record: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v with 2-space indentation and saves it under key.
func SaveJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", key, err)
	}
	data = append(data, '\n')
	return b.Save(ctx, key, data)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid record key %q", key)
	}
	return nil
}
