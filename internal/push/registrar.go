// Package push handles push delivery: registering this device with the
// server and presenting push messages through the delivery channels.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/api"
)

const deviceFileName = "device.json"

// TokenRegistry is the slice of the API client the registrar needs.
type TokenRegistry interface {
	RegisterPushToken(ctx context.Context, reg api.PushRegistration) error
}

type deviceRecord struct {
	DeviceToken string `json:"device_token"`
}

// Registrar registers the device push token with the server, at most once
// per process. Registration failure is logged and swallowed: push is an
// enhancement, never a reason to block login.
type Registrar struct {
	registry TokenRegistry
	homeDir  string
	platform string
	logger   *slog.Logger

	mu   sync.Mutex
	done bool
}

// NewRegistrar creates a Registrar rooted at the client home directory.
func NewRegistrar(registry TokenRegistry, homeDir, platform string, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{registry: registry, homeDir: homeDir, platform: platform, logger: logger}
}

// Register sends the device token to the server. Later calls in the same
// process are no-ops, even after a failure: retrying on every sync start
// would hammer a server that is already telling us no.
func (r *Registrar) Register(ctx context.Context) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()

	token, err := r.deviceToken()
	if err != nil {
		r.logger.Warn("push registration skipped", "error", err)
		return
	}
	reg := api.PushRegistration{Token: token, Platform: r.platform}
	if err := r.registry.RegisterPushToken(ctx, reg); err != nil {
		r.logger.Warn("push registration failed", "error", err)
		return
	}
	r.logger.Info("push token registered", "platform", r.platform)
}

// Registered reports whether a registration attempt has been made.
func (r *Registrar) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// deviceToken loads the stable per-device token, minting one on first use.
func (r *Registrar) deviceToken() (string, error) {
	path := filepath.Join(r.homeDir, deviceFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		var rec deviceRecord
		if err := json.Unmarshal(data, &rec); err == nil && rec.DeviceToken != "" {
			return rec.DeviceToken, nil
		}
		// Corrupt record: mint a fresh token below.
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read device record: %w", err)
	}

	rec := deviceRecord{DeviceToken: uuid.NewString()}
	data, err = json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write device record: %w", err)
	}
	return rec.DeviceToken, nil
}
