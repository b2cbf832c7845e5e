package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/observability"
)

const (
	eventBufferSize  = 16
	eventPublishPool = 256
)

// EventsService receives run progress events from the assessment pipeline
// and fans them out to stream subscribers on this node, mirroring them to
// Redis and NATS so subscribers on other nodes see the same run.
type EventsService interface {
	// ObserveRun satisfies assessment.RunObserver. It never blocks; events
	// that cannot be queued for cross-node publishing are dropped locally
	// after in-process delivery.
	ObserveRun(event assessment.Event)
	// Subscribe returns a channel of events for one student's runs plus a
	// cleanup func that must be called when the subscriber disconnects.
	Subscribe(studentID string) (<-chan assessment.Event, func())
	Start(ctx context.Context)
}

type eventsService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *runEventBroker
	publishCh   chan runEventEnvelope
	nodeID      string
}

type runEventEnvelope struct {
	Source string           `json:"source"`
	Event  assessment.Event `json:"event"`
	SentAt time.Time        `json:"sent_at"`
}

type runEventBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan assessment.Event]struct{}
}

// NewEventsService constructs the run progress fan-out. channelBase names
// the shared transport channels, e.g. "kompas:assessment" publishes to the
// Redis channel "kompas:assessment:events" and the NATS subject
// "kompas.assessment.events". Redis and NATS are both optional.
func NewEventsService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventsService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &eventsService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "events_service").Logger(),
		broker: &runEventBroker{
			subscribers: make(map[string]map[chan assessment.Event]struct{}),
		},
		publishCh: make(chan runEventEnvelope, eventPublishPool),
		nodeID:    uuid.NewString(),
	}
}

func (s *eventsService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
	if (s.redis != nil && s.redisStream != "") || (s.nats != nil && s.natsSubject != "") {
		go s.publishLoop(ctx)
	}
}

// ObserveRun is called from pipeline worker goroutines mid-run, so local
// delivery and the publish handoff are both non-blocking.
func (s *eventsService) ObserveRun(event assessment.Event) {
	observability.RunEventsFanout().WithLabelValues(string(event.Kind)).Inc()
	s.broker.broadcast(event.SubjectID, event)

	envelope := runEventEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}
	select {
	case s.publishCh <- envelope:
	default:
		s.logger.Warn().Str("run_id", event.RunID).Msg("event publish queue full, dropping cross-node event")
	}
}

func (s *eventsService) Subscribe(studentID string) (<-chan assessment.Event, func()) {
	channel := make(chan assessment.Event, eventBufferSize)

	s.broker.subscribe(studentID, channel)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(studentID, channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

// publishLoop serializes cross-node publishing on one goroutine so remote
// subscribers observe events in emission order.
func (s *eventsService) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope := <-s.publishCh:
			payload, err := json.Marshal(envelope)
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to marshal run event")
				continue
			}
			if s.redis != nil && s.redisStream != "" {
				if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
					s.logger.Warn().Err(err).Msg("failed to publish run event to redis")
				}
			}
			if s.nats != nil && s.natsSubject != "" {
				if err := s.nats.Publish(s.natsSubject, payload); err != nil {
					s.logger.Warn().Err(err).Msg("failed to publish run event to nats")
				}
			}
		}
	}
}

func (s *eventsService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("run event redis subscription closed")
			return
		}
		s.handleRemote([]byte(msg.Payload))
	}
}

func (s *eventsService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "kompas-run-events", func(msg *nats.Msg) {
		s.handleRemote(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats run events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain run event nats subscription")
		}
	}()
}

func (s *eventsService) handleRemote(payload []byte) {
	var envelope runEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid run event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event.SubjectID, envelope.Event)
}

func (b *runEventBroker) subscribe(studentID string, ch chan assessment.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[studentID]; !exists {
		b.subscribers[studentID] = make(map[chan assessment.Event]struct{})
	}
	b.subscribers[studentID][ch] = struct{}{}
}

func (b *runEventBroker) unsubscribe(studentID string, ch chan assessment.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[studentID]
	if !ok {
		return
	}
	if _, present := subscribers[ch]; present {
		delete(subscribers, ch)
		close(ch)
	}
	if len(subscribers) == 0 {
		delete(b.subscribers, studentID)
	}
}

// broadcast drops events for subscribers whose buffers are full; run
// progress is advisory and the terminal result always comes from the API.
func (b *runEventBroker) broadcast(studentID string, event assessment.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[studentID] {
		select {
		case ch <- event:
		default:
		}
	}
}
