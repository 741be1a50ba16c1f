package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"learn-quiz-service/internal/domain"
)

// SessionStore is a Redis implementation of app.AnonSessionStore.
// Each visitor session is one hash:
//
//	HSET quiz:session:{key} sitting:{slug} {json}
//	HSET quiz:session:{key} tally {json}
//
// Every write refreshes the hash TTL, so a session lives ttl past its last answer.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) LoadSitting(ctx context.Context, sessionKey, quizSlug string) (domain.AnonSitting, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(sessionKey), sittingField(quizSlug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnonSitting{}, false, nil
	}
	if err != nil {
		return domain.AnonSitting{}, false, err
	}
	var sitting domain.AnonSitting
	if err := json.Unmarshal(raw, &sitting); err != nil {
		return domain.AnonSitting{}, false, fmt.Errorf("decode anonymous sitting: %w", err)
	}
	return sitting, true, nil
}

func (s *SessionStore) SaveSitting(ctx context.Context, sessionKey string, sitting domain.AnonSitting) error {
	raw, err := json.Marshal(sitting)
	if err != nil {
		return err
	}
	return s.write(ctx, sessionKey, sittingField(sitting.QuizSlug), raw)
}

func (s *SessionStore) DeleteSitting(ctx context.Context, sessionKey, quizSlug string) error {
	return s.client.HDel(ctx, s.key(sessionKey), sittingField(quizSlug)).Err()
}

func (s *SessionStore) LoadTally(ctx context.Context, sessionKey string) (domain.AnonTally, error) {
	raw, err := s.client.HGet(ctx, s.key(sessionKey), "tally").Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnonTally{}, nil
	}
	if err != nil {
		return domain.AnonTally{}, err
	}
	var tally domain.AnonTally
	if err := json.Unmarshal(raw, &tally); err != nil {
		// An unreadable tally restarts from zero.
		return domain.AnonTally{}, nil
	}
	return tally, nil
}

func (s *SessionStore) SaveTally(ctx context.Context, sessionKey string, tally domain.AnonTally) error {
	raw, err := json.Marshal(tally)
	if err != nil {
		return err
	}
	return s.write(ctx, sessionKey, "tally", raw)
}

func (s *SessionStore) write(ctx context.Context, sessionKey, field string, raw []byte) error {
	key := s.key(sessionKey)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) key(sessionKey string) string {
	return "quiz:session:" + sessionKey
}

func sittingField(quizSlug string) string {
	return "sitting:" + quizSlug
}
