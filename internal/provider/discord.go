package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
)

// MaxMessageLength is the chat platform's limit on message content, in characters.
const MaxMessageLength = 2000

// DiscordClient calls the Discord REST API as a bot within one guild.
type DiscordClient struct {
	api     apiClient
	baseURL string
	guildID string
	logger  *slog.Logger
}

// NewDiscordClient creates a client. breaker may be nil.
func NewDiscordClient(baseURL, token, guildID string, timeout time.Duration, breaker *guard.CircuitBreaker, logger *slog.Logger) *DiscordClient {
	return &DiscordClient{
		api: apiClient{
			service: "discord",
			client:  &http.Client{Timeout: timeout},
			breaker: breaker,
			auth: func(req *http.Request) {
				req.Header.Set("Authorization", "Bot "+token)
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		guildID: guildID,
		logger:  logger,
	}
}

// GrantRoles adds each role to the member. Adding a role the member already has is a
// no-op on the platform side.
func (c *DiscordClient) GrantRoles(ctx context.Context, userID string, roles []domain.RoleID) error {
	for _, role := range roles {
		u := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s",
			c.baseURL, url.PathEscape(c.guildID), url.PathEscape(userID), url.PathEscape(string(role)))
		status, err := c.api.do(ctx, http.MethodPut, u, nil, nil, http.StatusNoContent, http.StatusOK)
		if err != nil {
			return fmt.Errorf("add role %s to %s: %w", role, userID, forbidden(status, err))
		}
	}
	return nil
}

// SetNickname changes the member's guild nickname.
func (c *DiscordClient) SetNickname(ctx context.Context, userID, nickname string) error {
	u := fmt.Sprintf("%s/guilds/%s/members/%s", c.baseURL, url.PathEscape(c.guildID), url.PathEscape(userID))
	body := map[string]string{"nick": nickname}
	status, err := c.api.do(ctx, http.MethodPatch, u, body, nil, http.StatusOK, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("set nickname of %s: %w", userID, forbidden(status, err))
	}
	return nil
}

type message struct {
	ID string `json:"id"`
}

// PostMessage sends content to a channel, split into parts of at most
// MaxMessageLength characters. It returns the ids of the posted messages.
func (c *DiscordClient) PostMessage(ctx context.Context, channelID, content string) ([]string, error) {
	u := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, url.PathEscape(channelID))

	var ids []string
	for _, part := range SplitMessage(content, MaxMessageLength) {
		var m message
		body := map[string]interface{}{
			"content":          part,
			"allowed_mentions": map[string]interface{}{"parse": []string{}},
		}
		if _, err := c.api.do(ctx, http.MethodPost, u, body, &m, http.StatusOK); err != nil {
			return ids, fmt.Errorf("post message to %s: %w", channelID, err)
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// DeleteMessage removes a message. A message that is already gone is not an error.
func (c *DiscordClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	u := fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, url.PathEscape(channelID), url.PathEscape(messageID))
	status, err := c.api.do(ctx, http.MethodDelete, u, nil, nil, http.StatusNoContent, http.StatusOK)
	if status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func forbidden(status int, err error) error {
	if status == http.StatusForbidden {
		return errors.Join(domain.ErrPlatformForbidden, err)
	}
	return err
}

// SplitMessage cuts content into parts of at most limit characters, preferring to cut
// after a line break. Empty content yields no parts.
func SplitMessage(content string, limit int) []string {
	if content == "" {
		return nil
	}
	runes := []rune(content)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
