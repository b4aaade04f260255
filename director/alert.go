package director

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/types"
	"github.com/suitedirector/suitedirector/utils"
)

// Alerter escalates conditions that must not be silently logged.
type Alerter interface {
	Alert(ctx context.Context, alert types.Alert) error
}

// LogAlerter writes alerts to the error log. It is used when no webhook is
// configured.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, alert types.Alert) error {
	ErrorLogger(LogHolder{
		SessionID:  alert.SessionID,
		SuiteName:  alert.SuiteName,
		TenantID:   alert.TenantID,
		InstanceID: alert.InstanceID,
		ErrorKind:  string(alert.Kind),
		Message:    "ALERT: " + alert.Summary + ": " + alert.Error,
	})
	return nil
}

// WebhookAlerter POSTs each alert as JSON to a fixed URL.
type WebhookAlerter struct {
	URL    string
	client *utils.HTTPClient
}

func NewWebhookAlerter(url string, client *utils.HTTPClient) *WebhookAlerter {
	if client == nil {
		client = utils.NewHTTPClient(10*time.Second, nil)
	}
	return &WebhookAlerter{URL: url, client: client}
}

func (w *WebhookAlerter) Alert(ctx context.Context, alert types.Alert) error {
	if err := w.client.PostJSON(ctx, w.URL, alert); err != nil {
		return errors.Wrap(err, "WebhookAlerter")
	}
	return nil
}
