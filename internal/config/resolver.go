package config

import (
	"maps"
	"slices"
	"strings"
)

// notifyPrefix is the namespace of modules that deliver incidents.
const notifyPrefix = "notify."

// Resolve returns the configured module IDs in load order, sorted so that
// every run loads the same modules in the same sequence.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}

// Notifiers returns the configured notify.* module IDs, sorted. An empty
// result means incidents are only written to the log.
func Notifiers(cfg *Config) []string {
	var ids []string
	for _, id := range Resolve(cfg) {
		if strings.HasPrefix(id, notifyPrefix) {
			ids = append(ids, id)
		}
	}
	return ids
}
