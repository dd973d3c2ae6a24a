package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
)

const workerQueueGroup = "sitemapper-workers"

type Options struct {
	InventorySubject string
	SiteSubject      string

	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *zap.Logger
}

// Bus publishes site data notifications and delivers inventory updates to
// the worker queue group.
type Bus struct {
	conn             *nats.Conn
	inventorySubject string
	siteSubject      string
	executor         *resilience.Executor
	logger           *zap.Logger
}

func New(url string, options Options) (*Bus, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("site-mapper"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:             conn,
		inventorySubject: options.InventorySubject,
		siteSubject:      options.SiteSubject,
		executor:         options.ResilienceExecutor,
		logger:           logger,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishSiteDataUpdated(ctx context.Context, evt domain.SiteDataUpdated) error {
	return b.publish(ctx, b.siteSubject, evt)
}

// PublishInventoryUpdated asks the workers to regenerate site data.
func (b *Bus) PublishInventoryUpdated(ctx context.Context, evt domain.InventoryUpdated) error {
	return b.publish(ctx, b.inventorySubject, evt)
}

func (b *Bus) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode nats payload: %w", err)
	}
	call := func(context.Context) error {
		if err := b.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeInventoryUpdated blocks until ctx is done, then drains the
// subscription. Malformed messages are logged and dropped.
func (b *Bus) SubscribeInventoryUpdated(ctx context.Context, handler func(context.Context, domain.InventoryUpdated) error) error {
	sub, err := b.conn.QueueSubscribe(b.inventorySubject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		evt, err := decodeInventoryUpdated(msg.Data)
		if err != nil {
			b.logger.Warn("drop malformed inventory update", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, evt); err != nil {
			b.logger.Error("inventory update handler failed", zap.Strings("sites", evt.Sites), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// decodeInventoryUpdated accepts a JSON event or an empty body meaning every site.
func decodeInventoryUpdated(data []byte) (domain.InventoryUpdated, error) {
	var evt domain.InventoryUpdated
	if len(data) == 0 {
		return evt, nil
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		return domain.InventoryUpdated{}, fmt.Errorf("decode inventory update: %w", err)
	}
	return evt, nil
}
