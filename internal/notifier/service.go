package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"tubewatch/internal/eventbus"
	"tubewatch/internal/feed"
	"tubewatch/internal/storage"
	logx "tubewatch/pkg/logx"

	"golang.org/x/time/rate"
)

const (
	defaultRatePerSec   = 2
	defaultTimeout      = 10 * time.Second
	defaultVideoBaseURL = "https://youtu.be"
	historyCap          = 300
)

// Service sends one notification per call. It is safe for concurrent use,
// although the watch loop only calls it sequentially.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender Sender
	bus    eventbus.Bus
	store  storage.Store

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds a Service. bus and store may be nil.
func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sender == nil {
		sender = NewWebhook(nil)
	}
	s := &Service{
		log:    log,
		sender: sender,
		bus:    bus,
		store:  store,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.VideoBaseURL == "" {
		cfg.VideoBaseURL = defaultVideoBaseURL
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
}

// Notify posts the canonical link of item to the channel's webhook. It makes
// exactly one attempt and reports the outcome; it never retries.
func (s *Service) Notify(ctx context.Context, ch feed.Channel, item feed.Item) feed.Delivery {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	link := feed.VideoURL(cfg.VideoBaseURL, item.ID)
	d := feed.Delivery{URL: link}
	start := time.Now()

	if err := lim.Wait(ctx); err != nil {
		d.Err = err
	} else {
		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		d.Status, d.Err = s.sender.Send(callCtx, ch.WebhookURL, link)
		cancel()
		d.OK = d.Err == nil
	}
	took := time.Since(start)

	log := s.log.With(logx.String("channel", ch.Name), logx.String("item_id", item.ID), logx.String("url", link))
	ev := eventbus.DeliveryEvent{Channel: ch.Name, ItemID: item.ID, URL: link, Status: d.Status, Took: took}
	if d.OK {
		log.Info("notification sent", logx.Int("status", d.Status), logx.Duration("took", took))
		eventbus.Publish(s.bus, eventbus.TypeNotifierSent, ev)
	} else {
		if errors.Is(d.Err, ErrUnexpectedStatus) {
			log.Error("notification rejected", logx.Int("status", d.Status))
		} else {
			log.Error("notification failed", logx.Err(d.Err))
		}
		ev.Error = d.Err.Error()
		eventbus.Publish(s.bus, eventbus.TypeNotifierFailed, ev)
	}

	s.record(ch, item, d)
	return d
}

func (s *Service) record(ch feed.Channel, item feed.Item, d feed.Delivery) {
	h := HistoryItem{
		At:      time.Now(),
		Channel: ch.Name,
		ItemID:  item.ID,
		URL:     d.URL,
		OK:      d.OK,
		Status:  d.Status,
	}
	if d.Err != nil {
		h.Error = d.Err.Error()
	}

	s.hmu.Lock()
	s.history = append(s.history, h)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()

	if s.store == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.store.AppendAudit(actx, storage.AuditEntry{
		At:      h.At,
		Channel: h.Channel,
		ItemID:  h.ItemID,
		Title:   item.Title,
		URL:     h.URL,
		OK:      h.OK,
		Status:  h.Status,
		Error:   h.Error,
	})
	if err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}

// History returns the most recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}
