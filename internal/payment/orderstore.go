package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"drawwin/internal/apperr"
)

// Enrollment is the client-declared form captured when the order is
// created. It is stashed until the processor confirms the capture.
type Enrollment struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	ReferralCode  string `json:"referral_code,omitempty"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// orderTTL covers the window between order creation and webhook delivery.
const orderTTL = 24 * time.Hour

// OrderStore keeps pending enrollments in redis keyed by processor order
// id, bridging the gap between order creation and the capture webhook.
type OrderStore struct {
	rdb *redis.Client
}

func NewOrderStore(rdb *redis.Client) *OrderStore {
	return &OrderStore{rdb: rdb}
}

func (s *OrderStore) key(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}

func (s *OrderStore) Stash(ctx context.Context, orderID string, form Enrollment) error {
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal enrollment: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(orderID), data, orderTTL).Err(); err != nil {
		return apperr.Wrap(apperr.KindPersistence, "order_store_error", "failed to stash enrollment", err)
	}
	return nil
}

func (s *OrderStore) Load(ctx context.Context, orderID string) (*Enrollment, error) {
	data, err := s.rdb.Get(ctx, s.key(orderID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.New(apperr.KindNotFound, "order_not_found", "no pending enrollment for this order")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "order_store_error", "failed to load enrollment", err)
	}

	var form Enrollment
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal enrollment: %w", err)
	}
	return &form, nil
}

func (s *OrderStore) Delete(ctx context.Context, orderID string) error {
	return s.rdb.Del(ctx, s.key(orderID)).Err()
}
