// Package control watches an admin control file for out-of-band commands.
// Writing a command name to the file halts or resumes the engine without a
// restart; the file is consumed (truncated) after each apply.
package control

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"talon/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Command is one admin instruction.
type Command string

const (
	CmdHalt        Command = "halt"
	CmdResume      Command = "resume"
	CmdForceEnable Command = "force_enable" // lifts equity protector breakers
	CmdResetGate   Command = "reset_gate"   // clears cooldown and daily counter
)

// Handler receives each parsed command.
type Handler func(Command)

// Watcher tails the control file. The parent directory is watched rather
// than the file itself so editors that replace-on-save still trigger.
type Watcher struct {
	path    string
	handler Handler
}

func NewWatcher(path string, handler Handler) *Watcher {
	return &Watcher{path: strings.TrimSpace(path), handler: handler}
}

func (w *Watcher) Enabled() bool { return w != nil && w.path != "" }

// Run blocks until ctx is done, dispatching commands as the file changes.
// Any commands already present at startup are applied first.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.Enabled() {
		<-ctx.Done()
		return ctx.Err()
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return err
	}
	logger.Infof("control: watching %s", w.path)

	w.consume()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.consume()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("control: watch error: %v", err)
		}
	}
}

// consume reads, applies and truncates the control file.
func (w *Watcher) consume() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("control: read %s: %v", w.path, err)
		}
		return
	}
	applied := false
	for _, line := range strings.Split(string(raw), "\n") {
		cmd := Command(strings.ToLower(strings.TrimSpace(line)))
		if cmd == "" || strings.HasPrefix(string(cmd), "#") {
			continue
		}
		switch cmd {
		case CmdHalt, CmdResume, CmdForceEnable, CmdResetGate:
			logger.Warnf("control: applying admin command %q", cmd)
			w.handler(cmd)
			applied = true
		default:
			logger.Warnf("control: unknown command %q ignored", cmd)
		}
	}
	if applied {
		if err := os.Truncate(w.path, 0); err != nil {
			logger.Warnf("control: truncate %s: %v", w.path, err)
		}
	}
}
