package automation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminix/crm/internal/crm"
)

// =============================================================================
// TEST FAKES
// =============================================================================

// fakeLeadStore is an in-memory LeadStore with just enough filtering to
// drive the evaluator and the engine.
type fakeLeadStore struct {
	mu           sync.Mutex
	leads        map[uuid.UUID]*crm.Lead
	interactions []crm.Interaction
	lastInbound  map[uuid.UUID]time.Time
	listErr      error
}

func newFakeLeadStore(leads ...*crm.Lead) *fakeLeadStore {
	s := &fakeLeadStore{
		leads:       make(map[uuid.UUID]*crm.Lead),
		lastInbound: make(map[uuid.UUID]time.Time),
	}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeLeadStore) GetLead(ctx context.Context, id uuid.UUID) (*crm.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *fakeLeadStore) ListLeads(ctx context.Context, f crm.LeadFilter) ([]crm.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []crm.Lead
	for _, l := range s.leads {
		if f.CreatedAfter != nil && !l.CreatedAt.After(*f.CreatedAfter) {
			continue
		}
		if f.LastContactBefore != nil {
			if l.LastContactAt != nil && !l.LastContactAt.Before(*f.LastContactBefore) {
				continue
			}
			if l.LastContactAt == nil && !l.CreatedAt.Before(*f.LastContactBefore) {
				continue
			}
		}
		if f.MinScore != nil && l.Score < *f.MinScore {
			continue
		}
		if len(f.Statuses) > 0 && !containsFold(f.Statuses, l.Status) {
			continue
		}
		out = append(out, *l)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *fakeLeadStore) AdjustScore(ctx context.Context, id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok {
		l.Score += delta
		if l.Score < 0 {
			l.Score = 0
		}
	}
	return nil
}

func (s *fakeLeadStore) SetScore(ctx context.Context, id uuid.UUID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok {
		l.Score = score
	}
	return nil
}

func (s *fakeLeadStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok {
		l.Status = status
	}
	return nil
}

func (s *fakeLeadStore) AddTag(ctx context.Context, id uuid.UUID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok && !l.HasTag(tag) {
		l.Tags = append(l.Tags, tag)
	}
	return nil
}

func (s *fakeLeadStore) AddInteraction(ctx context.Context, in *crm.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, *in)
	if in.Direction == crm.DirectionInbound {
		s.lastInbound[in.LeadID] = time.Now()
	}
	return nil
}

func (s *fakeLeadStore) LastInboundAt(ctx context.Context, leadID uuid.UUID, channel string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts, ok := s.lastInbound[leadID]; ok {
		cp := ts
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeLeadStore) outboundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.interactions {
		if in.Direction == crm.DirectionOutbound {
			n++
		}
	}
	return n
}

// fakeTaskStore records created tasks and notifications.
type fakeTaskStore struct {
	mu            sync.Mutex
	tasks         []crm.Task
	notifications []crm.Notification
}

func (s *fakeTaskStore) CreateTask(ctx context.Context, t *crm.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, *t)
	return nil
}

func (s *fakeTaskStore) CreateNotification(ctx context.Context, n *crm.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

// fakeSender captures sends; set err to simulate delivery failure.
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	subjects []string
	err      error
}

func (s *fakeSender) Send(ctx context.Context, destination, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, text)
	return "msg-" + destination, nil
}

func (s *fakeSender) SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, htmlBody)
	s.subjects = append(s.subjects, subject)
	return "email-" + to, nil
}

// fakeCache is a map-backed ResponseCache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := value.(string); ok {
		c.data[key] = s
	}
	return nil
}

// recordingAction counts executions for engine tests.
type recordingAction struct {
	name   string
	mu     sync.Mutex
	count  int
	result ActionResult
}

func (a *recordingAction) Type() string { return a.name }

func (a *recordingAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	if a.result.Message == "" && !a.result.Success {
		return ActionResult{Success: true, Message: "ok"}
	}
	return a.result
}

func (a *recordingAction) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func testLead(opts ...func(*crm.Lead)) *crm.Lead {
	l := &crm.Lead{
		ID:        uuid.New(),
		FullName:  "Dana Cohen",
		FirstName: "Dana",
		Email:     "dana@example.com",
		Phone:     "+972501234567",
		Source:    "facebook",
		Status:    crm.StatusNew,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}
