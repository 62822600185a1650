// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package link

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// Opener opens a link on a device path.
type Opener interface {
	Open(path string) (Link, error)
}

type OpenerFunc func(path string) (Link, error)

func (f OpenerFunc) Open(path string) (Link, error) {
	return f(path)
}

// SerialOpener opens the device as a serial port and starts MAVLink on it.
type SerialOpener struct {
	Baud     int
	Identity Identity
	Logger   hclog.Logger
}

func (o SerialOpener) Open(path string) (Link, error) {
	baud := o.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	id := o.Identity
	if id == (Identity{}) {
		id = DefaultIdentity
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("the port '%s' was not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	return NewMavLink(path, port, id, o.Logger)
}

// Candidates lists the files in dir in lexicographic order.
func Candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	res := make([]string, len(names))
	for i, name := range names {
		res[i] = filepath.Join(dir, name)
	}
	return res, nil
}

// SystemPorts lists the serial ports known to the OS. Unless all is set,
// only USB and ACM ports are kept.
func SystemPorts(all bool) ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	if !all {
		ports = filterPorts(ports)
	}
	sort.Strings(ports)
	return ports, nil
}

func filterPorts(paths []string) []string {
	res := []string(nil)
	for _, path := range paths {
		if strings.Contains(path, "tty") {
			if strings.Contains(path, "USB") || strings.Contains(path, "ACM") {
				res = append(res, path)
			}
		}
	}
	return res
}

// Discover opens the candidates in order and returns the first link that
// comes up, together with its path. Every failure is logged and the next
// candidate tried; when none opens the error wraps ErrDeviceNotFound.
func Discover(candidates []string, opener Opener, logger hclog.Logger) (Link, string, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	var errs error
	for _, path := range candidates {
		l, err := opener.Open(path)
		if err != nil {
			logger.Warn("candidate failed", "device", path, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		logger.Info("attached", "device", path)
		return l, path, nil
	}
	if errs == nil {
		return nil, "", fmt.Errorf("%w: no candidates", ErrDeviceNotFound)
	}
	return nil, "", fmt.Errorf("%w: %d candidate(s) failed: %v", ErrDeviceNotFound, len(candidates), errs)
}
