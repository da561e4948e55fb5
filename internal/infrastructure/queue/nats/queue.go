package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

const (
	DefaultCompletedSubject = "shopping.search.completed"
	DefaultRequestSubject   = "shopping.search.requests"

	workerQueueGroup = "search-workers"
)

type Queue struct {
	conn        *nats.Conn
	subjects    Subjects
	executor    *resilience.Executor
	maxInFlight int
}

type Subjects struct {
	Completed string
	Requests  string
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	MaxInFlight          int
	ResilienceExecutor   *resilience.Executor
}

func New(url string, subjects Subjects) (*Queue, error) {
	return NewWithOptions(url, subjects, Options{})
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Queue, error) {
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
	maxInFlight := options.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 4
	}

	conn, err := nats.Connect(
		url,
		nats.Name("shopping-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:        conn,
		subjects:    subjects.withDefaults(),
		executor:    options.ResilienceExecutor,
		maxInFlight: maxInFlight,
	}, nil
}

func (s Subjects) withDefaults() Subjects {
	if s.Completed == "" {
		s.Completed = DefaultCompletedSubject
	}
	if s.Requests == "" {
		s.Requests = DefaultRequestSubject
	}
	return s
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishSearchCompleted(ctx context.Context, event domain.SearchCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal search completed: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subjects.Completed, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var publishErr error
	if q.executor != nil {
		publishErr = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		publishErr = call(ctx)
	}
	if publishErr != nil {
		return wrapTemporaryIfNeeded("nats publish", publishErr)
	}
	return nil
}

// SearchHandler serves one search request received over NATS.
type SearchHandler func(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)

// ServeSearchRequests answers request/reply searches until ctx is done. Up to
// maxInFlight requests run concurrently; the subscription is drained and
// running handlers are awaited before returning.
func (q *Queue) ServeSearchRequests(ctx context.Context, handler SearchHandler) error {
	sem := make(chan struct{}, q.maxInFlight)
	var wg sync.WaitGroup

	sub, err := q.conn.QueueSubscribe(q.subjects.Requests, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			q.handleSearchRequest(ctx, msg, handler)
		}()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	drainErr := sub.Drain()
	wg.Wait()
	if drainErr != nil {
		return fmt.Errorf("nats drain subscription: %w", drainErr)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handleSearchRequest(ctx context.Context, msg *nats.Msg, handler SearchHandler) {
	req, err := DecodeSearchRequest(msg.Data)
	var reply []byte
	if err != nil {
		reply = EncodeSearchReply(nil, err)
	} else {
		handlerCtx, cancel := context.WithCancel(ctx)
		resp, handlerErr := handler(handlerCtx, req)
		cancel()
		if handlerErr != nil {
			slog.Warn("search_request_failed", "user_id", req.UserID, "error", handlerErr)
		}
		reply = EncodeSearchReply(resp, handlerErr)
	}

	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		slog.Warn("search_reply_failed", "subject", msg.Subject, "error", err)
	}
}

// RequestSearch sends a search over request/reply and decodes the answer.
func (q *Queue) RequestSearch(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	msg, err := q.conn.RequestWithContext(ctx, q.subjects.Requests, payload)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("nats request", fmt.Errorf("nats request: %w", err))
	}
	return DecodeSearchReply(msg.Data)
}
