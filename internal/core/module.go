package core

import "strings"

// ModuleID identifies a module, namespaced with dots (e.g. "notify.slack").
type ModuleID string

// Module is implemented by everything the App manages.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Namespace returns the part of the ID before the last dot.
//
//	"notify.slack" → "notify"
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the part of the ID after the last dot.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}
