// Package ops posts operational notices to Slack: pipeline failures as they
// happen and a daily digest of report activity.
package ops

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

// slackAPI is the slice of the Slack client the notifier uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts to one ops channel. Satisfies the report pipeline's
// Alerter contract.
type Notifier struct {
	client  slackAPI
	channel string
}

// NewNotifier creates a Notifier.
func NewNotifier(token, channel string) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("ops: slack token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("ops: slack channel is required")
	}
	return &Notifier{client: slack.New(token), channel: channel}, nil
}

// Alert posts a failure notice. Alerting is best effort: a Slack outage must
// never escalate a pipeline failure, so errors are only logged.
func (n *Notifier) Alert(ctx context.Context, text string) {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(":rotating_light: "+text, false))
	if err != nil {
		log.Printf("ops: post alert: %v", err)
	}
}

// Digest summarizes the last 24 hours of report activity and posts it to
// the ops channel. Run from the cron scheduler.
type Digest struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewDigest creates a Digest.
func NewDigest(db *gorm.DB, notifier *Notifier) (*Digest, error) {
	if db == nil {
		return nil, fmt.Errorf("ops: digest: db is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("ops: digest: notifier is required")
	}
	return &Digest{db: db, notifier: notifier}, nil
}

// Run builds and posts the digest for the 24 hours before now.
func (d *Digest) Run(ctx context.Context, now time.Time) error {
	text, err := d.build(now)
	if err != nil {
		return err
	}
	_, _, err = d.notifier.client.PostMessageContext(ctx, d.notifier.channel,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("ops: post digest: %w", err)
	}
	return nil
}

type digestRow struct {
	Type  string
	Count int64
}

// build renders the digest text from report counts.
func (d *Digest) build(now time.Time) (string, error) {
	since := now.Add(-24 * time.Hour)

	var rows []digestRow
	err := d.db.Model(&models.Report{}).
		Select("type, count(*) as count").
		Where("created_at >= ?", since).
		Group("type").Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return "", fmt.Errorf("ops: digest counts: %w", err)
	}

	var unnotified int64
	err = d.db.Model(&models.Report{}).
		Where("created_at >= ? AND division_notified = ?", since, false).
		Count(&unnotified).Error
	if err != nil {
		return "", fmt.Errorf("ops: digest unnotified count: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Daily report digest* (%s)\n", now.Format("2006-01-02"))
	if len(rows) == 0 {
		b.WriteString("No reports in the last 24 hours.")
		return b.String(), nil
	}
	var total int64
	for _, r := range rows {
		total += r.Count
		fmt.Fprintf(&b, "• %s: %d\n", r.Type, r.Count)
	}
	fmt.Fprintf(&b, "Total: %d", total)
	if unnotified > 0 {
		fmt.Fprintf(&b, " (%d without officer notification)", unnotified)
	}
	return b.String(), nil
}
