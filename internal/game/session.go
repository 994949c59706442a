package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/capture"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region session
// Session resolves rounds against the adaptive opponent. It owns the
// predictor; rounds are serialized so learning and saving never overlap.
type Session struct {
	mu        sync.Mutex
	id        string
	predictor *predictor.Predictor
	saver     ModelSaver
	publisher message.Publisher
	score     Score
	rounds    int
	now       func() time.Time
	log       *zap.Logger
}

// NewSession creates a session. saver and publisher may be nil (no
// persistence / no events); logger may be nil.
func NewSession(p *predictor.Predictor, saver ModelSaver, publisher message.Publisher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Session{
		id:        id,
		predictor: p,
		saver:     saver,
		publisher: publisher,
		now:       time.Now,
		log:       logger.With(zap.String("session", id)),
	}
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.id
}

// Score returns the running tally.
func (s *Session) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// #endregion session

// #region play-round
// PlayRound resolves one round: the AI commits to the counter of its
// prediction before seeing the player's move, the outcome is scored, the
// predictor learns the move and the model is saved. A save error is returned
// but the round still counts.
func (s *Session) PlayRound(player move.Move, src Source) (Round, error) {
	if !player.Valid() {
		return Round{}, fmt.Errorf("%w: %v", ErrInvalidMove, player)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	predicted, ai := s.predictor.ChooseCounter()
	s.rounds++
	r := Round{
		ID:        uuid.New().String(),
		SessionID: s.id,
		Number:    s.rounds,
		Player:    player,
		Predicted: predicted,
		AI:        ai,
		Result:    move.Outcome(player, ai),
		Source:    src,
		PlayedAt:  s.now().UTC(),
	}
	switch r.Result {
	case move.AIWins:
		s.score.AI++
	case move.PlayerWins:
		s.score.Player++
	default:
		s.score.Draws++
	}

	s.predictor.RecordRound(player)

	s.log.Info("round played",
		zap.Int("round", r.Number),
		zap.Stringer("player", r.Player),
		zap.Stringer("predicted", r.Predicted),
		zap.Stringer("ai", r.AI),
		zap.String("result", string(r.Result)),
		zap.String("source", string(src)),
	)
	s.publish(r)

	if s.saver != nil {
		if err := s.saver.Save(s.predictor.Snapshot()); err != nil {
			return r, fmt.Errorf("save model: %w", err)
		}
	}
	return r, nil
}

// ConfirmPending consumes the pending camera gesture, if any, and plays it.
// ok is false when nothing was pending.
func (s *Session) ConfirmPending(pending *capture.Mailbox[move.Move]) (r Round, ok bool, err error) {
	m, ok := pending.Take()
	if !ok {
		return Round{}, false, nil
	}
	r, err = s.PlayRound(m, SourceCamera)
	return r, true, err
}

// #endregion play-round

// #region publish
func (s *Session) publish(r Round) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(eventFor(r))
	if err != nil {
		s.log.Error("marshal round event", zap.Error(err))
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(TopicRoundPlayed, msg); err != nil {
		s.log.Warn("publish round event", zap.Error(err))
	}
}

// #endregion publish
