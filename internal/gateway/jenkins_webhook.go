package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flemzord/jobwatch/internal/jenkins"
	"github.com/flemzord/jobwatch/internal/monitor"
)

// jenkinsNotification is the payload posted by the Jenkins Notification
// plugin on every build phase change.
type jenkinsNotification struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Build struct {
		FullURL string `json:"full_url"`
		Number  int64  `json:"number"`
		Phase   string `json:"phase"`
		Status  string `json:"status"`
	} `json:"build"`
}

// jenkinsWebhook checks a job as soon as one of its builds finishes,
// instead of waiting for the next cycle.
type jenkinsWebhook struct {
	monitor Monitor
	logger  *slog.Logger
}

// HandleWebhook implements WebhookHandler. Unknown jobs and phases other
// than COMPLETED and FINALIZED are acknowledged and ignored.
func (h *jenkinsWebhook) HandleWebhook(ctx context.Context, _ string, body []byte, _ http.Header) error {
	var n jenkinsNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("gateway: decode jenkins notification: %w", err)
	}

	switch strings.ToUpper(n.Build.Phase) {
	case "COMPLETED", "FINALIZED":
	default:
		return nil
	}

	id, ok := jenkins.JobIDFromPath(n.URL)
	if !ok {
		id = n.Name
	}

	res, err := h.monitor.CheckNow(ctx, id)
	if errors.Is(err, monitor.ErrUnknownJob) {
		h.logger.Debug("gateway: webhook for unmonitored job", "job", id)
		return nil
	}
	h.logger.Info("gateway: webhook check",
		"job", id,
		"build", n.Build.Number,
		"phase", n.Build.Phase,
		"outcome", string(res.Outcome),
	)
	return nil
}
