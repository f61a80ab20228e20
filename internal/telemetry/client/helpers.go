package client

import (
	"fmt"
	"strings"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

func required(kind telemetry.Kind, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s requires %s", telemetry.ErrInvalidRecord, kind, field)
	}
	return nil
}

func (c *Client) Event(category, name string, properties map[string]any) error {
	if err := required(telemetry.KindEvent, "name", name); err != nil {
		return err
	}
	fields := telemetry.Fields{"category": category, "name": name}
	if len(properties) > 0 {
		fields["properties"] = properties
	}
	_, err := c.Track(telemetry.Record{Kind: telemetry.KindEvent, Fields: fields})
	return err
}

func (c *Client) EconomyEvent(category, name, currency string, amount float64, isGain bool, reason string) error {
	if err := required(telemetry.KindEconomy, "name", name); err != nil {
		return err
	}
	if err := required(telemetry.KindEconomy, "currency", currency); err != nil {
		return err
	}
	_, err := c.Track(telemetry.Record{Kind: telemetry.KindEconomy, Fields: telemetry.Fields{
		"category": category,
		"name":     name,
		"currency": currency,
		"amount":   amount,
		"is_gain":  isGain,
		"reason":   reason,
	}})
	return err
}

func (c *Client) MessageSendEvent(channel, campaignID, messageID string, recipients int) error {
	if err := required(telemetry.KindMessageSend, "channel", channel); err != nil {
		return err
	}
	_, err := c.Track(telemetry.Record{Kind: telemetry.KindMessageSend, Fields: telemetry.Fields{
		"channel":         channel,
		"campaign_id":     campaignID,
		"message_id":      messageID,
		"recipient_count": recipients,
	}})
	return err
}

func (c *Client) Log(level, message string, context map[string]any) error {
	return c.TaggedLog("", level, message, context)
}

// TaggedLog queues a log record. An empty level means "info".
func (c *Client) TaggedLog(tag, level, message string, context map[string]any) error {
	if err := required(telemetry.KindLog, "message", message); err != nil {
		return err
	}
	if level == "" {
		level = "info"
	}
	fields := telemetry.Fields{"level": level, "message": message}
	if tag != "" {
		fields["tag"] = tag
	}
	if len(context) > 0 {
		fields["context"] = context
	}
	_, err := c.Track(telemetry.Record{Kind: telemetry.KindLog, Fields: fields})
	return err
}
