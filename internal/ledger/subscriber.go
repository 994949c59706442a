package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/game"
)

// #region consume
// Consume subscribes to round events and records them until ctx is done or
// the subscriber closes.
func (s *Store) Consume(ctx context.Context, sub message.Subscriber) error {
	msgs, err := sub.Subscribe(ctx, game.TopicRoundPlayed)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", game.TopicRoundPlayed, err)
	}
	go func() {
		for msg := range msgs {
			s.Handle(msg)
		}
	}()
	return nil
}
// #endregion consume

// #region handle
// Handle records one round event. Messages are always acked: a ledger
// failure is logged and never blocks play.
func (s *Store) Handle(msg *message.Message) {
	defer msg.Ack()

	var ev game.RoundPlayed
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		s.log.Warn("dropping malformed round event", zap.String("uuid", msg.UUID), zap.Error(err))
		return
	}
	if ev.RoundID == "" || ev.SessionID == "" {
		s.log.Warn("dropping round event without ids", zap.String("uuid", msg.UUID))
		return
	}
	if !ev.Player.Valid() || !ev.Predicted.Valid() || !ev.AI.Valid() {
		s.log.Warn("dropping round event with missing moves", zap.String("round", ev.RoundID))
		return
	}

	err := s.RecordRound(RoundRecord{
		RoundID:   ev.RoundID,
		SessionID: ev.SessionID,
		Number:    ev.Number,
		Player:    ev.Player,
		Predicted: ev.Predicted,
		AI:        ev.AI,
		Result:    ev.Result,
		Source:    string(ev.Source),
		PlayedAt:  ev.PlayedAt,
	})
	if err != nil {
		s.log.Error("record round", zap.String("round", ev.RoundID), zap.Error(err))
		return
	}
	s.log.Debug("round recorded", zap.String("round", ev.RoundID), zap.Int("number", ev.Number))
}
// #endregion handle
