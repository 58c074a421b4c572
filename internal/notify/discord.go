package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordChannel posts messages to per-kind Discord webhooks. A kind without
// a webhook falls back to the info webhook; an empty URL drops the message.
type DiscordChannel struct {
	webhooks map[Kind]string
	client   *http.Client
}

// DiscordWebhooks configures one webhook URL per message kind.
type DiscordWebhooks struct {
	Info  string
	Error string
	Buy   string
	Sell  string
}

func NewDiscordChannel(hooks DiscordWebhooks) *DiscordChannel {
	return &DiscordChannel{
		webhooks: map[Kind]string{
			KindInfo:  hooks.Info,
			KindError: hooks.Error,
			KindBuy:   hooks.Buy,
			KindSell:  hooks.Sell,
		},
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *DiscordChannel) Name() string {
	return "discord"
}

func (d *DiscordChannel) Send(ctx context.Context, payload Payload) error {
	url := d.webhooks[payload.Kind]
	if url == "" {
		url = d.webhooks[KindInfo]
	}
	if url == "" {
		return nil
	}

	body := map[string]interface{}{
		"content": payload.Message,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook failed with status: %d", resp.StatusCode)
	}

	return nil
}
