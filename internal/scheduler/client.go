package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadfunnel_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues engagement tasks. It satisfies the Enqueuer interfaces of
// the call-cycle and marketing packages.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCallAttempt queues the next regular call attempt for the lead.
func (c *Client) EnqueueCallAttempt(ctx context.Context, leadID uuid.UUID) error {
	task, err := NewCallAttemptTask(CallAttemptPayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// ScheduleRedial queues a delayed redial along the 5/10/20 minute ladder.
func (c *Client) ScheduleRedial(ctx context.Context, leadID uuid.UUID, redialCount int, delay time.Duration) error {
	task, err := NewCallAttemptTask(CallAttemptPayload{
		LeadID:      leadID.String(),
		RedialCount: redialCount,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.ProcessIn(delay))
}

// EnqueueWhatsAppTrigger queues a WhatsApp hand-off for an engaged lead.
func (c *Client) EnqueueWhatsAppTrigger(ctx context.Context, leadID uuid.UUID, source string) error {
	task, err := NewWhatsAppTriggerTask(WhatsAppTriggerPayload{
		LeadID: leadID.String(),
		Source: source,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueMarketingDispatch queues one outreach send on the given channel.
func (c *Client) EnqueueMarketingDispatch(ctx context.Context, leadID uuid.UUID, channel string) error {
	task, err := NewMarketingDispatchTask(MarketingDispatchPayload{
		LeadID:  leadID.String(),
		Channel: channel,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueuePaidCongrats queues the congratulations email after payment.
func (c *Client) EnqueuePaidCongrats(ctx context.Context, leadID uuid.UUID) error {
	task, err := NewPaidCongratsTask(PaidCongratsPayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if c == nil || c.client == nil {
		return nil
	}

	opts = append(opts, asynq.Queue(c.queue), asynq.MaxRetry(3))
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
