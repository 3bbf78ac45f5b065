// Package state provides the persisted per-package release run ledger
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/types"
)

// RunRecord is the persisted state of the most recent release run for one
// package. The ProcessID and Heartbeat fields double as the run lock.
type RunRecord struct {
	PackageName string              `json:"packageName"`
	Version     string              `json:"version"`
	RunID       string              `json:"runId"`
	Stage       types.PipelineStage `json:"stage"`
	DryRun      bool                `json:"dryRun"`
	ProcessID   int                 `json:"processId"`
	Hostname    string              `json:"hostname"`
	StartedAt   time.Time           `json:"startedAt"`
	Heartbeat   time.Time           `json:"heartbeat"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
	LastError   string              `json:"lastError,omitempty"`
}

// InProgress reports whether the record describes an unfinished run
func (r *RunRecord) InProgress() bool {
	return r.FinishedAt == nil && r.ProcessID != 0
}

// StateManager handles persistent run records
type StateManager struct {
	stateDir       string
	runID          string
	logger         logger.Logger
	mu             sync.RWMutex
	records        map[string]*RunRecord
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewStateManager creates a state manager rooted at the runtime context's
// state directory
func NewStateManager(rc *runctx.RuntimeContext, log logger.Logger) *StateManager {
	stateDir := filepath.Join(rc.StateDir(), "state")

	// Ensure state directory exists
	if err := os.MkdirAll(stateDir, 0755); err != nil && log != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &StateManager{
		stateDir: stateDir,
		runID:    rc.RunID(),
		logger:   log,
		records:  make(map[string]*RunRecord),
	}
}

// InitializeRun records the start of a release run and takes the run lock.
// It fails with ErrRunInProgress when another live process holds the lock.
func (sm *StateManager) InitializeRun(cfg *types.SubmoduleConfig, version types.Version, opts types.ReleaseOptions) (*RunRecord, error) {
	locked, err := sm.IsLocked(cfg.PackageName)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, cfg.PackageName)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	hostname, _ := os.Hostname()
	record := &RunRecord{
		PackageName: cfg.PackageName,
		Version:     version.String(),
		RunID:       sm.runID,
		Stage:       types.StageInit,
		DryRun:      opts.DryRun,
		ProcessID:   os.Getpid(),
		Hostname:    hostname,
		StartedAt:   time.Now(),
		Heartbeat:   time.Now(),
	}

	if err := sm.saveRecordFile(record); err != nil {
		return nil, fmt.Errorf("failed to save initial run record: %w", err)
	}

	sm.records[cfg.PackageName] = record
	return record, nil
}

// ReadRun reads the run record for a package
func (sm *StateManager) ReadRun(packageName string) (*RunRecord, error) {
	sm.mu.RLock()

	// Check memory cache first
	if record, ok := sm.records[packageName]; ok {
		sm.mu.RUnlock()
		return record, nil
	}
	sm.mu.RUnlock()

	// Load from file
	record, err := sm.loadRecordFile(packageName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, packageName)
		}
		return nil, err
	}
	return record, nil
}

// UpdateStage advances the recorded pipeline stage
func (sm *StateManager) UpdateStage(packageName string, stage types.PipelineStage) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	record, ok := sm.records[packageName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, packageName)
	}

	record.Stage = stage
	record.Heartbeat = time.Now()
	return sm.saveRecordFile(record)
}

// RecordError stores the fatal error message on the active run record
func (sm *StateManager) RecordError(packageName string, message string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	record, ok := sm.records[packageName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, packageName)
	}

	record.LastError = message
	record.Heartbeat = time.Now()
	return sm.saveRecordFile(record)
}

// FinishRun records the terminal stage and releases the run lock
func (sm *StateManager) FinishRun(packageName string, stage types.PipelineStage) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	record, ok := sm.records[packageName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, packageName)
	}

	now := time.Now()
	record.Stage = stage
	record.FinishedAt = &now
	record.ProcessID = 0
	record.Heartbeat = now
	return sm.saveRecordFile(record)
}

// IsLocked checks if a package's run lock is held by another live process
func (sm *StateManager) IsLocked(packageName string) (bool, error) {
	record, err := sm.loadRecordFile(packageName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if !record.InProgress() {
		return false, nil
	}

	// Our own process
	if record.ProcessID == os.Getpid() {
		return false, nil
	}

	// Consider the lock stale if the heartbeat is older than 30 seconds
	if time.Since(record.Heartbeat) > 30*time.Second {
		return false, nil
	}

	process, err := os.FindProcess(record.ProcessID)
	if err != nil {
		return false, nil
	}

	// Signal 0 probes liveness without delivering a signal
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}

	return true, nil
}

// DiscoverRuns finds all existing run records
func (sm *StateManager) DiscoverRuns() (map[string]*RunRecord, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	records := make(map[string]*RunRecord)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		packageName := file.Name()[:len(file.Name())-5] // Remove .json
		record, err := sm.loadRecordFile(packageName)
		if err != nil {
			if sm.logger != nil {
				sm.logger.Warn("Failed to load run record",
					logger.WithField("package", packageName),
					logger.WithField("error", err))
			}
			continue
		}

		records[packageName] = record
	}

	return records, nil
}

// StartHeartbeat starts the lock heartbeat updater
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return // Already running
	}

	// The goroutine reads only these locals: StopHeartbeat clears the
	// struct fields under the lock, so touching them from here would race
	stop := make(chan struct{})
	ticker := time.NewTicker(10 * time.Second)
	sm.heartbeatStop = stop
	sm.heartbeatTimer = ticker

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				sm.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the lock heartbeat updater
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}

	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup releases locks held by this process
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, record := range sm.records {
		if record.FinishedAt == nil {
			record.ProcessID = 0
			if err := sm.saveRecordFile(record); err != nil && sm.logger != nil {
				sm.logger.Warn("Failed to save final run record",
					logger.WithField("package", record.PackageName),
					logger.WithField("error", err))
			}
		}
	}

	return nil
}

// Private methods

func (sm *StateManager) getRecordFilePath(packageName string) string {
	return filepath.Join(sm.stateDir, packageName+".json")
}

func (sm *StateManager) loadRecordFile(packageName string) (*RunRecord, error) {
	recordFile := sm.getRecordFilePath(packageName)

	data, err := os.ReadFile(recordFile)
	if err != nil {
		return nil, err
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse run record: %w", err)
	}

	return &record, nil
}

func (sm *StateManager) saveRecordFile(record *RunRecord) error {
	recordFile := sm.getRecordFilePath(record.PackageName)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	// Write atomically
	tempFile := recordFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	if err := os.Rename(tempFile, recordFile); err != nil {
		os.Remove(tempFile) // Clean up
		return fmt.Errorf("failed to rename run record: %w", err)
	}

	return nil
}

func (sm *StateManager) updateHeartbeats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for _, record := range sm.records {
		if record.FinishedAt != nil {
			continue
		}
		record.Heartbeat = now
		if err := sm.saveRecordFile(record); err != nil && sm.logger != nil {
			sm.logger.Debug("Failed to update heartbeat",
				logger.WithField("package", record.PackageName),
				logger.WithField("error", err))
		}
	}
}
