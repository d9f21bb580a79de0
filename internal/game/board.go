package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultRankingSize is the number of players shown on the leaderboard.
const DefaultRankingSize = 10

// ChannelPoster posts and deletes channel messages. *provider.DiscordClient satisfies it.
type ChannelPoster interface {
	PostMessage(ctx context.Context, channelID, content string) ([]string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Saver persists a snapshot of every player. *FileStore satisfies it.
type Saver interface {
	Save(players map[string]Player) error
}

// Board publishes the leaderboard to a channel and checkpoints scores.
type Board struct {
	game      *Game
	store     Saver
	chat      ChannelPoster
	channelID string
	size      int
	logger    *slog.Logger

	mu           sync.Mutex
	lastMessages []string
}

// NewBoard creates a Board. chat may be nil when no ranking channel is configured.
func NewBoard(game *Game, store Saver, chat ChannelPoster, channelID string, size int, logger *slog.Logger) *Board {
	if size <= 0 {
		size = DefaultRankingSize
	}
	return &Board{game: game, store: store, chat: chat, channelID: channelID, size: size, logger: logger}
}

// Render formats the current top players.
func (b *Board) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Top %d PyLadies Game**\n", b.size)
	for _, r := range b.game.Ranking(b.size) {
		fmt.Fprintf(&sb, "%d. <@%s> (%d points)\n", r.Position, r.UserID, r.Points)
	}
	return sb.String()
}

// PostRanking replaces the previous leaderboard message with the current one. Nothing
// is posted before anyone has played.
func (b *Board) PostRanking(ctx context.Context) error {
	if b.chat == nil || b.channelID == "" {
		return nil
	}
	if len(b.game.Ranking(1)) == 0 {
		b.logger.Debug("no game players yet")
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.lastMessages {
		if err := b.chat.DeleteMessage(ctx, b.channelID, id); err != nil {
			b.logger.Warn("delete previous ranking", "message_id", id, "error", err)
		}
	}
	b.lastMessages = nil

	ids, err := b.chat.PostMessage(ctx, b.channelID, b.Render())
	b.lastMessages = ids
	if err != nil {
		return fmt.Errorf("post ranking: %w", err)
	}
	return nil
}

// Checkpoint saves every player's score.
func (b *Board) Checkpoint() error {
	if err := b.store.Save(b.game.Players()); err != nil {
		return fmt.Errorf("checkpoint scores: %w", err)
	}
	return nil
}

// RunRanking posts the leaderboard every interval until ctx is done.
func (b *Board) RunRanking(ctx context.Context, interval time.Duration) error {
	b.logger.Info("game ranking starting", "channel_id", b.channelID, "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.PostRanking(ctx); err != nil {
			b.logger.Error("game ranking error", "error", err)
		}
		select {
		case <-ctx.Done():
			b.logger.Info("game ranking stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunBackups checkpoints scores every interval and once more when ctx is done.
func (b *Board) RunBackups(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := b.Checkpoint(); err != nil {
				return err
			}
			b.logger.Info("game scores saved", "players", len(b.game.Players()))
			return nil
		case <-ticker.C:
			if err := b.Checkpoint(); err != nil {
				b.logger.Error("game backup error", "error", err)
			}
		}
	}
}
