package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/provider"
)

type publishedMessage struct {
	RoutingKey string
	Message    interface{}
}

// fakePublisher records publishes and can fail selected calls by index
// (counting Publish calls only, zero-based).
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	queued    []publishedMessage
	failOn    map[int]error
	calls     int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failOn: map[int]error{}}
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := p.calls
	p.calls++
	if err, ok := p.failOn[call]; ok {
		return err
	}
	p.published = append(p.published, publishedMessage{RoutingKey: routingKey, Message: message})
	return nil
}

func (p *fakePublisher) PublishToQueue(_ context.Context, queue string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queued = append(p.queued, publishedMessage{RoutingKey: queue, Message: message})
	return nil
}

func (p *fakePublisher) envelopes() []*entity.NotificationEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var envelopes []*entity.NotificationEnvelope
	for _, msg := range p.published {
		if envelope, ok := msg.Message.(*entity.NotificationEnvelope); ok {
			envelopes = append(envelopes, envelope)
		}
	}
	return envelopes
}

type fakeIdempotencyRepo struct {
	single map[string]string
	bulk   map[string][]string
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{single: map[string]string{}, bulk: map[string][]string{}}
}

func (r *fakeIdempotencyRepo) GetNotificationID(_ context.Context, requestID string) (string, error) {
	return r.single[requestID], nil
}

func (r *fakeIdempotencyRepo) SaveNotificationID(_ context.Context, requestID, notificationID string) error {
	r.single[requestID] = notificationID
	return nil
}

func (r *fakeIdempotencyRepo) GetBulkResult(_ context.Context, requestID string) ([]string, error) {
	return r.bulk[requestID], nil
}

func (r *fakeIdempotencyRepo) SaveBulkResult(_ context.Context, requestID string, ids []string) error {
	r.bulk[requestID] = ids
	return nil
}

type fakeStatusRepo struct {
	statuses map[string]*entity.NotificationStatus
	failSet  error
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{statuses: map[string]*entity.NotificationStatus{}}
}

func (r *fakeStatusRepo) Get(_ context.Context, notificationID string) (*entity.NotificationStatus, error) {
	status, ok := r.statuses[notificationID]
	if !ok {
		return nil, entity.ErrStatusNotFound
	}
	return status, nil
}

func (r *fakeStatusRepo) SetInitial(_ context.Context, notificationID string, channel entity.Channel) error {
	if r.failSet != nil {
		return r.failSet
	}
	now := time.Now().UTC()
	r.statuses[notificationID] = &entity.NotificationStatus{
		NotificationID: notificationID,
		Status:         entity.StatusPending,
		Channel:        channel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (r *fakeStatusRepo) Upsert(_ context.Context, event *entity.StatusEvent) error {
	createdAt := event.Timestamp
	if existing, ok := r.statuses[event.NotificationID]; ok {
		createdAt = existing.CreatedAt
	}
	r.statuses[event.NotificationID] = &entity.NotificationStatus{
		NotificationID: event.NotificationID,
		Status:         event.Status,
		Channel:        event.Channel,
		Error:          event.Error,
		CreatedAt:      createdAt,
		UpdatedAt:      time.Now().UTC(),
	}
	return nil
}

type fakeUserClient struct {
	users   map[string]*entity.User
	userIDs []string
	userErr error
	listErr error
}

func (c *fakeUserClient) GetUser(_ context.Context, userID string) (*entity.User, error) {
	if c.userErr != nil {
		return nil, c.userErr
	}
	user, ok := c.users[userID]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	return user, nil
}

func (c *fakeUserClient) GetUsersByPreference(_ context.Context, _ entity.Channel) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.userIDs, nil
}

type fakeRetryRepo struct {
	meta      map[string]*entity.RetryMetadata
	processed map[string]bool
	getErr    error
	markErr   error
}

func newFakeRetryRepo() *fakeRetryRepo {
	return &fakeRetryRepo{meta: map[string]*entity.RetryMetadata{}, processed: map[string]bool{}}
}

func (r *fakeRetryRepo) Get(_ context.Context, notificationID string) (*entity.RetryMetadata, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if meta, ok := r.meta[notificationID]; ok {
		return meta, nil
	}
	return &entity.RetryMetadata{RetryCount: 0, FirstAttempt: time.Now().UnixMilli()}, nil
}

func (r *fakeRetryRepo) Save(_ context.Context, notificationID string, meta *entity.RetryMetadata) error {
	r.meta[notificationID] = meta
	return nil
}

func (r *fakeRetryRepo) Clear(_ context.Context, notificationID string) error {
	delete(r.meta, notificationID)
	return nil
}

func (r *fakeRetryRepo) IsProcessed(_ context.Context, notificationID string) (bool, error) {
	return r.processed[notificationID], nil
}

func (r *fakeRetryRepo) MarkProcessed(_ context.Context, notificationID string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.processed[notificationID] = true
	return nil
}

type fakeTemplateCache struct {
	invalidated []string
	entries     map[string]*entity.RenderedTemplate
}

func newFakeTemplateCache() *fakeTemplateCache {
	return &fakeTemplateCache{entries: map[string]*entity.RenderedTemplate{}}
}

func (c *fakeTemplateCache) Get(_ context.Context, code, language, hash string) (*entity.RenderedTemplate, error) {
	return c.entries[code+":"+language+":"+hash], nil
}

func (c *fakeTemplateCache) Set(_ context.Context, code, language, hash string, tpl *entity.RenderedTemplate) error {
	c.entries[code+":"+language+":"+hash] = tpl
	return nil
}

func (c *fakeTemplateCache) Invalidate(_ context.Context, code, language string) (int, error) {
	c.invalidated = append(c.invalidated, code+":"+language)
	var dropped int
	for key := range c.entries {
		if len(key) >= len(code+":"+language) && key[:len(code+":"+language)] == code+":"+language {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped, nil
}

type fakeRenderer struct {
	calls     int
	languages []string
	err       error
}

func (r *fakeRenderer) Render(_ context.Context, code, language string, _ map[string]interface{}) (*entity.RenderedTemplate, error) {
	r.calls++
	r.languages = append(r.languages, language)
	if r.err != nil {
		return nil, r.err
	}
	return &entity.RenderedTemplate{
		TemplateCode:    code,
		Language:        language,
		Version:         1,
		RenderedSubject: "Hello",
		RenderedBody:    "<p>Hello</p>",
	}, nil
}

type fakeProvider struct {
	dispatches []*provider.Dispatch
	errs       []error
	calls      int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Send(_ context.Context, dispatch *provider.Dispatch) error {
	call := p.calls
	p.calls++
	if call < len(p.errs) && p.errs[call] != nil {
		return p.errs[call]
	}
	p.dispatches = append(p.dispatches, dispatch)
	return nil
}

type notifiedStatus struct {
	NotificationID string
	Status         string
	Reason         string
}

type recordingNotifier struct {
	events []notifiedStatus
}

func (n *recordingNotifier) Pending(_ context.Context, id string) {
	n.events = append(n.events, notifiedStatus{NotificationID: id, Status: entity.StatusPending})
}

func (n *recordingNotifier) Delivered(_ context.Context, id string) {
	n.events = append(n.events, notifiedStatus{NotificationID: id, Status: entity.StatusDelivered})
}

func (n *recordingNotifier) Failed(_ context.Context, id, reason string) {
	n.events = append(n.events, notifiedStatus{NotificationID: id, Status: entity.StatusFailed, Reason: reason})
}

func (n *recordingNotifier) last() notifiedStatus {
	if len(n.events) == 0 {
		return notifiedStatus{}
	}
	return n.events[len(n.events)-1]
}

func boolPtr(v bool) *bool { return &v }

var errBoom = fmt.Errorf("downstream unavailable")
