package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/airdropbot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares the webhook listener.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

func (o PollerOptions) longPollTimeout() time.Duration {
	if o.LongPollTimeoutSeconds > 0 {
		return time.Duration(o.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPollTimeout
}

// BuildPoller returns a webhook listener in webhook mode and a long poller
// otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: opts.longPollTimeout()}
}
