package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/crm-dispatch/internal/delivery"
	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/repository"
)

// MockCampaignRepo keeps campaigns in memory with the same guarded status
// transitions as the SQL repository.
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int64]*model.Campaign
	nextID    int64

	MarkSentErr error
	Claims      int
}

func NewMockCampaignRepo(cs ...*model.Campaign) *MockCampaignRepo {
	r := &MockCampaignRepo{campaigns: map[int64]*model.Campaign{}, nextID: 1}
	for _, c := range cs {
		cp := *c
		r.campaigns[c.ID] = &cp
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (m *MockCampaignRepo) Get(id int64) model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) ListCampaigns(_ context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range m.campaigns {
		if status == "" || string(c.Status) == status {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	if !cur.Status.Dispatchable() {
		return appErrors.NewConflict("only draft or scheduled campaigns can be edited")
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MockCampaignRepo) CountByStatus(context.Context) (map[model.CampaignStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.CampaignStatus]int{}
	for _, c := range m.campaigns {
		out[c.Status]++
	}
	return out, nil
}

func (m *MockCampaignRepo) ClaimForDispatch(_ context.Context, id int64, from model.CampaignStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || !from.Dispatchable() || c.Status != from {
		return false, nil
	}
	c.Status = model.CampaignSending
	m.Claims++
	return true, nil
}

func (m *MockCampaignRepo) ReleaseClaim(_ context.Context, id int64, restore model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok && c.Status == model.CampaignSending {
		c.Status = restore
	}
	return nil
}

func (m *MockCampaignRepo) MarkSent(_ context.Context, id int64, sentAt time.Time) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkSentErr != nil {
		return nil, m.MarkSentErr
	}
	c, ok := m.campaigns[id]
	if !ok || c.Status != model.CampaignSending {
		return nil, errors.New("campaign is no longer claimed for dispatch")
	}
	c.Status = model.CampaignSent
	c.SentAt = &sentAt
	cp := *c
	return &cp, nil
}

var _ repository.CampaignRepositoryInterface = (*MockCampaignRepo)(nil)

type MockClientRepo struct {
	mu      sync.Mutex
	clients []model.Client
	ListErr error
}

func (m *MockClientRepo) Create(_ context.Context, c *model.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.clients {
		if existing.Email == c.Email {
			return appErrors.NewConflict("a client with this email already exists")
		}
	}
	c.ID = int64(len(m.clients) + 1)
	m.clients = append(m.clients, *c)
	return nil
}

func (m *MockClientRepo) GetByID(_ context.Context, id int64) (*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, appErrors.NewClientNotFound(id)
}

func (m *MockClientRepo) ListAll(context.Context) ([]model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]model.Client(nil), m.clients...), nil
}

func (m *MockClientRepo) ListClients(_ context.Context, offset, limit int) ([]*model.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Client{}
	for i := offset; i < len(m.clients) && i < offset+limit; i++ {
		cp := m.clients[i]
		out = append(out, &cp)
	}
	return out, len(m.clients), nil
}

func (m *MockClientRepo) Update(_ context.Context, c *model.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.clients {
		if m.clients[i].ID == c.ID {
			m.clients[i] = *c
			return nil
		}
	}
	return appErrors.NewClientNotFound(c.ID)
}

func (m *MockClientRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.clients {
		if m.clients[i].ID == id {
			m.clients = append(m.clients[:i], m.clients[i+1:]...)
			return nil
		}
	}
	return appErrors.NewClientNotFound(id)
}

func (m *MockClientRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients), nil
}

var _ repository.ClientRepositoryInterface = (*MockClientRepo)(nil)

type MockCommRepo struct {
	mu        sync.Mutex
	Rows      []model.Communication
	AppendErr error
}

func (m *MockCommRepo) Append(_ context.Context, c *model.Communication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	c.ID = int64(len(m.Rows) + 1)
	m.Rows = append(m.Rows, *c)
	return nil
}

func (m *MockCommRepo) ListByClient(_ context.Context, clientID int64, limit int) ([]model.Communication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Communication{}
	for _, r := range m.Rows {
		if r.ClientID == clientID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockCommRepo) StatsByCampaign(_ context.Context, campaignID int64) ([]model.ChannelStats, error) {
	return m.stats(func(r model.Communication) bool { return r.CampaignID == campaignID }), nil
}

func (m *MockCommRepo) TotalsByChannel(context.Context) ([]model.ChannelStats, error) {
	return m.stats(func(model.Communication) bool { return true }), nil
}

func (m *MockCommRepo) stats(keep func(model.Communication) bool) []model.ChannelStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	byChannel := map[model.ChannelName]*model.ChannelStats{}
	for _, r := range m.Rows {
		if !keep(r) {
			continue
		}
		s, ok := byChannel[r.Channel]
		if !ok {
			s = &model.ChannelStats{Channel: r.Channel}
			byChannel[r.Channel] = s
		}
		if r.Success {
			s.Delivered++
		} else {
			s.Failed++
		}
	}
	out := []model.ChannelStats{}
	for _, s := range byChannel {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

var _ repository.CommunicationRepositoryInterface = (*MockCommRepo)(nil)

// recordingChannel records every destination it delivers to. Like the real
// adapters it rejects an empty destination without contacting anyone.
type recordingChannel struct {
	name  model.ChannelName
	scope delivery.Scope
	dest  func(*model.Client) string

	mu       sync.Mutex
	sent     []string
	messages []delivery.Message
	inFlight int
	maxSeen  int

	deliver func(ctx context.Context, to string) error
}

func newEmail() *recordingChannel {
	return &recordingChannel{name: model.ChannelEmail, scope: delivery.ScopeRecipient,
		dest: func(c *model.Client) string { return c.Email }}
}

func newSMS() *recordingChannel {
	return &recordingChannel{name: model.ChannelSMS, scope: delivery.ScopeRecipient,
		dest: func(c *model.Client) string { return c.Phone }}
}

func newBroadcast() *recordingChannel {
	return &recordingChannel{name: model.ChannelBroadcast, scope: delivery.ScopeBroadcast,
		dest: func(*model.Client) string { return "-100" }}
}

func (r *recordingChannel) Name() model.ChannelName { return r.name }
func (r *recordingChannel) Scope() delivery.Scope { return r.scope }

func (r *recordingChannel) Destination(c *model.Client) string { return r.dest(c) }

func (r *recordingChannel) Deliver(ctx context.Context, to string, msg delivery.Message) error {
	if to == "" {
		return delivery.ErrMissingDestination
	}
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.mu.Unlock()

	var err error
	if r.deliver != nil {
		err = r.deliver(ctx, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	r.sent = append(r.sent, to)
	r.messages = append(r.messages, msg)
	return err
}

func (r *recordingChannel) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.sent...)
	sort.Strings(out)
	return out
}

var _ delivery.Channel = (*recordingChannel)(nil)
