package gateway

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/flemzord/jobwatch/internal/config"
	"github.com/flemzord/jobwatch/internal/core"
	"gopkg.in/yaml.v3"
)

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// secretPattern matches keys that likely contain secrets.
var secretPattern = regexp.MustCompile(`(?i)(secret|token|password|pass$|key|webhook_url)`)

// handleGetConfig returns the current config file with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.reloader == nil || g.reloader.ConfigPath() == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		cfg, err := config.Load(g.reloader.ConfigPath())
		if err != nil {
			http.Error(w, "failed to load config", http.StatusInternalServerError)
			return
		}

		generic, err := toGeneric(cfg)
		if err != nil {
			http.Error(w, "failed to serialize config", http.StatusInternalServerError)
			return
		}
		redactSecrets(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// toGeneric converts cfg to nested maps keyed by the YAML field names.
func toGeneric(cfg *config.Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// redactSecrets walks a map and replaces values whose keys match the secret pattern.
func redactSecrets(m map[string]any) {
	for k, v := range m {
		if secretPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = "***REDACTED***"
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			redactSecrets(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					redactSecrets(sub)
				}
			}
		}
	}
}

// handleReloadConfig triggers a hot-reload of the configuration.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.reloader == nil {
			http.Error(w, "reload not available", http.StatusServiceUnavailable)
			return
		}

		res, err := g.reloader.Reload(r.Context())
		if err != nil {
			g.logger.Error("config reload failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": g.redact(err.Error())})
			return
		}

		g.logger.Info("configuration reloaded", "jobs", res.Jobs, "removed", len(res.Removed))
		writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "jobs": res.Jobs, "removed": res.Removed})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
