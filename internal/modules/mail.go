// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Mail is the store-and-forward messaging module: "mail send/read/list/
// delete", plus an unread-count nudge on EventNodeDiscovered.
type Mail struct {
	clock clock.Clock
}

func NewMail(c clock.Clock) *Mail {
	return &Mail{clock: c}
}

func (*Mail) Name() string          { return "mail" }
func (*Mail) Description() string   { return "Store-and-forward mail" }
func (*Mail) Commands() []string    { return []string{"mail"} }
func (*Mail) Scope() registry.Scope { return registry.ScopeBoth }

const mailUsage = "Usage: mail send <name> <msg> | mail read | mail list | mail delete <id>"

func (m *Mail) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	subcmd, rest := args, ""
	if i := strings.IndexByte(args, ' '); i >= 0 {
		subcmd, rest = args[:i], strings.TrimSpace(args[i+1:])
	}

	var text string
	var err error
	switch subcmd {
	case "send":
		text, err = m.cmdSend(ctx, s, rest, msg)
	case "read":
		text, err = m.cmdRead(ctx, s, msg)
	case "list":
		text, err = m.cmdList(ctx, s, msg)
	case "delete", "del":
		text, err = m.cmdDelete(ctx, s, rest, msg)
	default:
		text = mailUsage
	}
	if err != nil {
		return nil, err
	}

	return []registry.Response{{Text: text, Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (m *Mail) cmdSend(ctx context.Context, s *store.Store, args string, msg registry.MessageContext) (string, error) {
	i := strings.IndexByte(args, ' ')
	if i < 0 {
		return "Usage: mail send <name> <message>", nil
	}
	recipient, body := strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+1:])
	if body == "" {
		return "Usage: mail send <name> <message>", nil
	}

	toNode, err := s.FindNodeByName(ctx, recipient)
	if err != nil {
		return "", fmt.Errorf("mail: resolving recipient: %w", err)
	}
	if toNode == nil {
		return fmt.Sprintf("Unknown node: %s", recipient), nil
	}
	if *toNode == msg.From {
		return "Can't send mail to yourself.", nil
	}

	toName, err := s.NodeName(ctx, *toNode)
	if err != nil {
		return "", fmt.Errorf("mail: resolving recipient name: %w", err)
	}
	if err := s.LeaveMail(ctx, msg.From, *toNode, body, m.clock.Now().Unix()); err != nil {
		return "", fmt.Errorf("mail: storing message: %w", err)
	}

	return fmt.Sprintf("Mail sent to %s.", toName), nil
}

func (m *Mail) cmdRead(ctx context.Context, s *store.Store, msg registry.MessageContext) (string, error) {
	mail, err := s.UnreadMailFor(ctx, msg.From)
	if err != nil {
		return "", fmt.Errorf("mail: reading mail: %w", err)
	}
	if len(mail) == 0 {
		return "No unread mail.", nil
	}

	var lines []string
	for _, item := range mail {
		fromName, err := s.NodeName(ctx, item.FromNode)
		if err != nil {
			return "", fmt.Errorf("mail: resolving sender name: %w", err)
		}
		ago := humanize.Time(time.Unix(item.Timestamp, 0))
		lines = append(lines, fmt.Sprintf("[%d] %s (%s): %s", item.ID, fromName, ago, item.Body))
		if err := s.MarkMailRead(ctx, item.ID); err != nil {
			return "", fmt.Errorf("mail: marking read: %w", err)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (m *Mail) cmdList(ctx context.Context, s *store.Store, msg registry.MessageContext) (string, error) {
	count, err := s.CountUnreadMail(ctx, msg.From)
	if err != nil {
		return "", fmt.Errorf("mail: counting unread mail: %w", err)
	}
	if count == 0 {
		return "No unread mail.", nil
	}
	return fmt.Sprintf("%d unread message%s.", count, plural(count)), nil
}

func (m *Mail) cmdDelete(ctx context.Context, s *store.Store, args string, msg registry.MessageContext) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "Usage: mail delete <id>", nil
	}
	removed, err := s.DeleteMailOwned(ctx, id, msg.From)
	if err != nil {
		return "", fmt.Errorf("mail: deleting message: %w", err)
	}
	if removed {
		return fmt.Sprintf("Mail #%d deleted.", id), nil
	}
	return "Mail not found.", nil
}

func (m *Mail) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	if ev.Kind != registry.EventNodeDiscovered {
		return nil, nil
	}
	count, err := s.CountUnreadMail(ctx, ev.Node)
	if err != nil {
		return nil, fmt.Errorf("mail: counting unread mail: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	text := fmt.Sprintf("You have %d unread message%s. Send !mail read to view.", count, plural(count))
	return []registry.Response{{Text: text, Destination: registry.DestinationNode, NodeID: ev.Node, Channel: 0}}, nil
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

