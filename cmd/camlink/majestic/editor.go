// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package majestic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexflint/go-filemutex"
	"github.com/hashicorp/go-hclog"
)

// Result describes what an edit did to the document.
type Result int

const (
	ResultUpdated Result = iota
	ResultInserted
	ResultFileNotFound
	ResultSectionNotFound
	ResultKeyNotFound
	ResultWriteFailed
)

func (r Result) String() string {
	switch r {
	case ResultUpdated:
		return "updated"
	case ResultInserted:
		return "inserted"
	case ResultFileNotFound:
		return "file not found"
	case ResultSectionNotFound:
		return "section not found"
	case ResultKeyNotFound:
		return "key not found"
	case ResultWriteFailed:
		return "write failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Changed reports whether the document on disk was modified.
func (r Result) Changed() bool {
	return r == ResultUpdated || r == ResultInserted
}

// Notifier is told when the config on disk changed.
type Notifier interface {
	NotifyReload() Outcome
}

type EditorConfig struct {
	Path string
	// LockPath is the advisory lock shared by every camlink process editing
	// Path. Empty disables locking.
	LockPath string
	Target   Target
	Reloader Notifier
	Logger   hclog.Logger
}

type Editor struct {
	path     string
	lockPath string
	target   Target
	reloader Notifier
	logger   hclog.Logger
}

func NewEditor(cfg EditorConfig) *Editor {
	target := cfg.Target
	if target.Section == "" || target.Key == "" {
		target = DefaultTarget
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Editor{
		path:     cfg.Path,
		lockPath: cfg.LockPath,
		target:   target,
		reloader: cfg.Reloader,
		logger:   logger,
	}
}

func (e *Editor) Path() string {
	return e.path
}

// UpdateCrop sets the target key to value. With mayCreate the key is added
// right below the section header when it is missing. Failures are logged and
// reported through the result; the file is only written when it changes.
func (e *Editor) UpdateCrop(value string, mayCreate bool) Result {
	unlock := e.lock()
	defer unlock()

	data, err := os.ReadFile(e.path)
	if err != nil {
		e.logger.Warn("majestic config not readable, skipping crop update", "path", e.path, "error", err)
		return ResultFileNotFound
	}

	doc := ParseDocument(data)
	plan := PlanEdit(doc, e.target, value, mayCreate)
	switch plan.Result {
	case ResultSectionNotFound:
		e.logger.Warn("section not found, no changes written", "section", e.target.Section, "path", e.path)
		return plan.Result
	case ResultKeyNotFound:
		e.logger.Warn("key not found in section, no changes written", "section", e.target.Section, "key", e.target.Key, "path", e.path)
		return plan.Result
	}

	doc.Apply(plan)
	if err := writeAtomic(e.path, doc.Bytes()); err != nil {
		e.logger.Error("failed to write majestic config", "path", e.path, "error", err)
		return ResultWriteFailed
	}
	e.logger.Info("crop written", "value", value, "result", plan.Result.String(), "line", plan.Index+1)

	if e.reloader != nil {
		e.reloader.NotifyReload()
	}
	return plan.Result
}

// Current returns the value of the target key as Majestic would read it.
func (e *Editor) Current() (string, bool, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return "", false, err
	}
	return Lookup(data, e.target)
}

// lock takes the cross-process edit lock. A lock that cannot be taken is
// logged and the edit goes ahead unlocked.
func (e *Editor) lock() func() {
	if e.lockPath == "" {
		return func() {}
	}
	m, err := filemutex.New(e.lockPath)
	if err != nil {
		e.logger.Warn("cannot open edit lock, editing unlocked", "lock", e.lockPath, "error", err)
		return func() {}
	}
	if err := m.Lock(); err != nil {
		e.logger.Warn("cannot take edit lock, editing unlocked", "lock", e.lockPath, "error", err)
		m.Close()
		return func() {}
	}
	return func() {
		m.Unlock()
		m.Close()
	}
}

// writeAtomic replaces path with data so that a concurrent reader sees either
// the old or the new document, never a partial one.
func writeAtomic(path string, data []byte) (err error) {
	mode := os.FileMode(0644)
	if stat, statErr := os.Stat(path); statErr == nil {
		mode = stat.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
