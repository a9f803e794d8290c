package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type OrderStore interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
	ConfirmPaid(ctx context.Context, id int64) (bool, error)
}

// StockCache drops cached product records whose stock changed.
type StockCache interface {
	Invalidate(ctx context.Context, productID int64) error
}

type Service struct {
	Orders OrderStore
	Cache  StockCache
	Redis  *redis.Client
	Events *orders.Events
	Log    *zap.Logger
}

// HandleOrderPaid is the consumer handler for order.payment.paid. It confirms
// the order and draws stock down once per event; redeliveries are dropped.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, "x-event-type"); t != "" && t != orders.EventOrderPaid {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
	claimed, err := redisx.Claim(ctx, s.Redis, key, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !claimed {
		return nil
	}

	confirmed, err := s.Orders.ConfirmPaid(ctx, p.OrderID)
	if err != nil {
		_ = redisx.Release(ctx, s.Redis, key)
		return fmt.Errorf("confirm order %d: %w", p.OrderID, err)
	}
	log := s.Log.With(zap.String("order_number", p.OrderNumber), zap.String("trace_id", env.TraceID))
	if !confirmed {
		log.Info("order not awaiting confirmation")
		return nil
	}

	o, err := s.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("reload order %d: %w", p.OrderID, err)
	}
	for _, it := range o.Items {
		id, perr := strconv.ParseInt(it.ProductID, 10, 64)
		if perr != nil {
			continue
		}
		if err := s.Cache.Invalidate(ctx, id); err != nil {
			log.Warn("product cache invalidate", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	s.Events.StatusChange(env.TraceID, o)
	log.Info("order confirmed", zap.Int("items", o.ItemsCount()))
	return nil
}
