// Package game implements the chapter-logo trivia game: players are shown an
// anonymised chapter logo and guess which chapter it belongs to.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/pyladiescon/confops/internal/infra"
)

var (
	// ErrAllSeen is returned by Ask once a player has guessed every chapter.
	ErrAllSeen = errors.New("game: every chapter already guessed")
	// ErrUnknownOption is returned by Answer for a choice that was not offered.
	ErrUnknownOption = errors.New("game: choice was not offered")
)

// DefaultQuestionTTL is how long a question stays answerable.
const DefaultQuestionTTL = 8 * time.Second

// Player is the persisted state of one chat user. The JSON shape is the on-disk score
// file format.
type Player struct {
	Correct   int      `json:"correct"`
	Incorrect int      `json:"incorrect"`
	Seen      []string `json:"seen"`
	Playing   bool     `json:"playing"`
}

// Points is one point per correct answer minus one point per two incorrect answers.
func (p Player) Points() int {
	return p.Correct - p.Incorrect/2
}

func (p Player) clone() Player {
	p.Seen = slices.Clone(p.Seen)
	return p
}

// Outcome is the result of an answer.
type Outcome string

const (
	Correct         Outcome = "correct"
	Incorrect       Outcome = "incorrect"
	AlreadyAnswered Outcome = "already_answered"
	Expired         Outcome = "expired"
)

// Question is what a player is shown.
type Question struct {
	Image     string    `json:"image"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is the feedback for an answer.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	// Reveal is the named logo image, set for correct answers.
	Reveal string `json:"reveal,omitempty"`
	Points int    `json:"points"`
}

// ScoreCard summarises a player's progress.
type ScoreCard struct {
	Points    int      `json:"points"`
	Correct   int      `json:"correct"`
	Incorrect int      `json:"incorrect"`
	Seen      []string `json:"seen"`
}

// Rank is one line of the leaderboard.
type Rank struct {
	Position int
	UserID   string
	Points   int
}

type pending struct {
	answer  string
	options []string
	expires time.Time
}

// Config tunes a Game. Zero values use the defaults.
type Config struct {
	QuestionTTL time.Duration
	// Rand drives question and option selection. Defaults to a randomly seeded source.
	Rand *rand.Rand
}

// Game holds every player's score and the open question per player. It is safe for
// concurrent use.
type Game struct {
	mu       sync.Mutex
	chapters []Chapter
	byName   map[string]Chapter
	players  map[string]*Player
	pending  map[string]pending
	ttl      time.Duration
	rng      *rand.Rand
	now      func() time.Time
	metrics  *infra.Metrics
	logger   *slog.Logger
}

// NewGame creates a Game over chapters, resuming from players (may be nil).
// metrics may be nil.
func NewGame(chapters []Chapter, players map[string]*Player, cfg Config, metrics *infra.Metrics, logger *slog.Logger) *Game {
	if cfg.QuestionTTL <= 0 {
		cfg.QuestionTTL = DefaultQuestionTTL
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if players == nil {
		players = make(map[string]*Player)
	}

	byName := make(map[string]Chapter, len(chapters))
	for _, c := range chapters {
		byName[c.Name] = c
	}

	g := &Game{
		chapters: chapters,
		byName:   byName,
		players:  players,
		pending:  make(map[string]pending),
		ttl:      cfg.QuestionTTL,
		rng:      cfg.Rand,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger,
	}
	g.observePlayers()
	return g
}

// Ask draws a chapter the player has not guessed yet and offers it with two other
// chapter names. Distractors come from unguessed chapters first. Asking again replaces
// the open question.
func (g *Game) Ask(userID string) (Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[userID]
	if !ok {
		g.logger.Info("new game player", "user_id", userID)
		p = &Player{Seen: []string{}}
		g.players[userID] = p
		g.observePlayers()
	}

	var unseen, seen []Chapter
	for _, c := range g.chapters {
		if slices.Contains(p.Seen, c.Name) {
			seen = append(seen, c)
		} else {
			unseen = append(unseen, c)
		}
	}
	if len(unseen) == 0 {
		return Question{}, ErrAllSeen
	}

	answer := unseen[g.rng.IntN(len(unseen))]
	options := []string{answer.Name}
	for _, pool := range [][]Chapter{unseen, seen} {
		for _, i := range g.rng.Perm(len(pool)) {
			if len(options) == OptionsPerQuestion {
				break
			}
			if pool[i].Name != answer.Name {
				options = append(options, pool[i].Name)
			}
		}
	}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	p.Playing = true
	q := Question{Image: answer.File, Options: options, ExpiresAt: g.now().Add(g.ttl)}
	g.pending[userID] = pending{answer: answer.Name, options: options, expires: q.ExpiresAt}
	return q, nil
}

// Answer scores choice against the player's open question. A player without an open
// question gets AlreadyAnswered; a late answer gets Expired. Neither changes the score.
func (g *Game) Answer(userID, choice string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	q, ok := g.pending[userID]
	p := g.players[userID]
	if !ok || p == nil {
		return g.result(AlreadyAnswered, "", p), nil
	}
	if !slices.Contains(q.options, choice) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOption, choice)
	}

	delete(g.pending, userID)
	p.Playing = false

	if g.now().After(q.expires) {
		return g.result(Expired, "", p), nil
	}
	if choice != q.answer {
		p.Incorrect++
		return g.result(Incorrect, "", p), nil
	}

	p.Correct++
	p.Seen = append(p.Seen, q.answer)
	return g.result(Correct, g.byName[q.answer].RevealFile(), p), nil
}

func (g *Game) result(o Outcome, reveal string, p *Player) Result {
	if g.metrics != nil {
		g.metrics.GameAnswers.WithLabelValues(string(o)).Inc()
	}
	r := Result{Outcome: o, Message: g.message(o), Reveal: reveal}
	if p != nil {
		r.Points = p.Points()
	}
	return r
}

// Score returns the player's score card, or false if they never played.
func (g *Game) Score(userID string) (ScoreCard, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[userID]
	if !ok {
		return ScoreCard{}, false
	}
	return ScoreCard{
		Points:    p.Points(),
		Correct:   p.Correct,
		Incorrect: p.Incorrect,
		Seen:      slices.Clone(p.Seen),
	}, true
}

// Ranking returns the top n players by points. Ties are ordered by user id.
func (g *Game) Ranking(n int) []Rank {
	g.mu.Lock()
	out := make([]Rank, 0, len(g.players))
	for id, p := range g.players {
		out = append(out, Rank{UserID: id, Points: p.Points()})
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Players returns a copy of every player's state.
func (g *Game) Players() map[string]Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]Player, len(g.players))
	for id, p := range g.players {
		out[id] = p.clone()
	}
	return out
}

// Chapters returns the number of guessable chapters.
func (g *Game) Chapters() int {
	return len(g.chapters)
}

func (g *Game) observePlayers() {
	if g.metrics != nil {
		g.metrics.GamePlayers.Set(float64(len(g.players)))
	}
}

var (
	correctMessages = []string{
		"That's correct!",
		"Good guess ;)",
		"Perfect!",
		"You are...correct!",
		"Correct answer",
		"It seems you knew the logo!",
		"Too easy? you are correct :D",
	}
	incorrectMessages = []string{
		"No, that's incorrect",
		"mmm maybe next time",
		"Sadly, that's incorrect",
		"Almost, but no",
		"Better to try again",
		"Wrong answer",
		"The logo was maybe difficult to guess :(",
	}
)

func (g *Game) message(o Outcome) string {
	switch o {
	case Correct:
		return correctMessages[g.rng.IntN(len(correctMessages))]
	case Incorrect:
		return incorrectMessages[g.rng.IntN(len(incorrectMessages))]
	case Expired:
		return "Time is up! Ask for a new logo to try again."
	default:
		return "You already submitted your answer. Ask for a new logo to play again!"
	}
}
