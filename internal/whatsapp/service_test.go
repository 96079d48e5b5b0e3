package whatsapp

import (
	"context"
	"testing"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeConnStore struct {
	conns  map[string]*Connection
	claims int
}

func newFakeConnStore(conns ...*Connection) *fakeConnStore {
	s := &fakeConnStore{conns: map[string]*Connection{}}
	for _, c := range conns {
		s.conns[c.ID] = c
	}
	return s
}

func (s *fakeConnStore) Get(_ context.Context, id string) (*Connection, error) {
	c, ok := s.conns[id]
	if !ok {
		return nil, apperr.NotFound("connection not found")
	}
	copied := *c
	return &copied, nil
}

func (s *fakeConnStore) List(context.Context) ([]Connection, error) { return nil, nil }

func (s *fakeConnStore) ClaimLeastLoaded(context.Context) (*Connection, error) {
	s.claims++
	var best *Connection
	for _, c := range s.conns {
		if !c.AcceptsNewConversation() {
			continue
		}
		if best == nil || c.ConversationsToday < best.ConversationsToday {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNoAvailableConnection
	}
	best.ConversationsToday++
	copied := *best
	return &copied, nil
}

func (s *fakeConnStore) TouchLastMessage(_ context.Context, id string) error {
	if c, ok := s.conns[id]; ok {
		c.LastMessageAt = time.Now().UTC()
	}
	return nil
}

func (s *fakeConnStore) UpdateStatus(_ context.Context, id string, status domain.ConnectionStatus) (*Connection, error) {
	c, ok := s.conns[id]
	if !ok {
		return nil, apperr.NotFound("connection not found")
	}
	c.Status = status
	copied := *c
	return &copied, nil
}

func (s *fakeConnStore) ResetDailyCounters(context.Context) (int, error) {
	n := 0
	for _, c := range s.conns {
		if c.ConversationsToday > 0 {
			c.ConversationsToday = 0
			n++
		}
	}
	return n, nil
}

func (s *fakeConnStore) SeedPool(context.Context, int, int) error { return nil }

type fakeLeadStore struct {
	leads map[uuid.UUID]*domain.Lead
}

func newFakeLeadStore(leads ...*domain.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: map[uuid.UUID]*domain.Lead{}}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}
	copied := *l
	return &copied, nil
}

func (s *fakeLeadStore) GetByCPF(context.Context, string) (*domain.Lead, error) { return nil, nil }
func (s *fakeLeadStore) Create(_ context.Context, l *domain.Lead) error {
	s.leads[l.ID] = l
	return nil
}
func (s *fakeLeadStore) Update(_ context.Context, l *domain.Lead) error {
	copied := *l
	s.leads[l.ID] = &copied
	return nil
}
func (s *fakeLeadStore) List(context.Context, leadstore.ListFilter) ([]domain.Lead, int, error) {
	return nil, 0, nil
}
func (s *fakeLeadStore) ListNonTerminal(context.Context) ([]domain.Lead, error) { return nil, nil }
func (s *fakeLeadStore) ListBoundToConnection(_ context.Context, connectionID string) ([]domain.Lead, error) {
	out := make([]domain.Lead, 0)
	for _, l := range s.leads {
		if l.WhatsApp != nil && l.WhatsApp.ConnectionID == connectionID {
			out = append(out, *l)
		}
	}
	return out, nil
}
func (s *fakeLeadStore) StatusStats(context.Context) ([]leadstore.StatusStat, error) {
	return nil, nil
}
func (s *fakeLeadStore) ListHumanRequired(context.Context, int) ([]domain.Lead, error) {
	return nil, nil
}

type fakeSender struct {
	sent []string
}

func (s *fakeSender) SendMessage(_ context.Context, connectionID, _, _ string) error {
	s.sent = append(s.sent, connectionID)
	return nil
}

type fakeTemplateStore struct{}

func (fakeTemplateStore) ListActive(_ context.Context, templateContext string) ([]templates.Template, error) {
	return []templates.Template{{
		ID:      uuid.New(),
		Context: templateContext,
		Name:    "default",
		Body:    "Oi {{full_name}}, seu link: {{signing_link}}",
		Weight:  1,
		Active:  true,
	}}, nil
}
func (fakeTemplateStore) List(context.Context) ([]templates.Template, error) { return nil, nil }
func (fakeTemplateStore) GetByID(context.Context, uuid.UUID) (*templates.Template, error) {
	return nil, nil
}
func (fakeTemplateStore) Create(context.Context, *templates.Template) error { return nil }
func (fakeTemplateStore) Update(context.Context, *templates.Template) error { return nil }
func (fakeTemplateStore) Delete(context.Context, uuid.UUID) error           { return nil }

type fakeCfg struct{}

func (fakeCfg) GetCostWhatsAppMessage() int64 { return 30 }
func (fakeCfg) GetLinkRenewalDays() int       { return 3 }

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:       uuid.New(),
		CPF:      "12345678901",
		FullName: "Maria Silva",
		Status:   domain.StatusOrange,
		Phones:   []domain.Phone{{Number: "+5511999990000", Priority: 1}},
		Proposal: domain.Proposal{
			SigningLink:     "https://sign.example/abc",
			LinkGeneratedAt: time.Now().UTC(),
		},
	}
}

func newTestService(conns *fakeConnStore, leads *fakeLeadStore, sender *fakeSender) *Service {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	selector := templates.NewSelector(fakeTemplateStore{})
	return NewService(conns, leads, sender, selector, bus, fakeCfg{}, log)
}

func TestDecide(t *testing.T) {
	active := &Connection{ID: "conn-01", Status: domain.ConnectionActive}
	banned := &Connection{ID: "conn-01", Status: domain.ConnectionBanned}
	bound := &domain.Attribution{ConnectionID: "conn-01"}

	cases := []struct {
		name        string
		attribution *domain.Attribution
		current     *Connection
		want        Decision
	}{
		{"no binding", nil, nil, Decision{Reassign: true}},
		{"bound to active", bound, active, Decision{Retained: true}},
		{"bound to banned", bound, banned, Decision{Reassign: true, Failover: true}},
		{"bound to missing", bound, nil, Decision{Reassign: true, Failover: true}},
	}
	for _, tc := range cases {
		if got := Decide(tc.attribution, tc.current); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestAssignRetentionKeepsQuota(t *testing.T) {
	conn := &Connection{ID: "conn-01", Number: "+5511000000001", Status: domain.ConnectionActive, ConversationsToday: 7, DailyLimit: 25}
	conns := newFakeConnStore(conn)

	lead := testLead()
	lead.WhatsApp = &domain.Attribution{ConnectionID: "conn-01", Number: conn.Number}
	svc := newTestService(conns, newFakeLeadStore(lead), &fakeSender{})

	got, kind, err := svc.Assign(context.Background(), lead, time.Now().UTC())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if kind != domain.AllocationRetention {
		t.Fatalf("expected retention, got %s", kind)
	}
	if got.ID != "conn-01" {
		t.Fatalf("expected retained connection, got %s", got.ID)
	}
	if conns.claims != 0 {
		t.Fatalf("retention must not claim from the pool")
	}
	if conns.conns["conn-01"].ConversationsToday != 7 {
		t.Fatalf("retention must not consume quota, counter now %d", conns.conns["conn-01"].ConversationsToday)
	}
}

func TestAssignFailoverOnUnhealthyConnection(t *testing.T) {
	dead := &Connection{ID: "conn-01", Status: domain.ConnectionBanned, DailyLimit: 25}
	spare := &Connection{ID: "conn-02", Number: "+5511000000002", Status: domain.ConnectionActive, ConversationsToday: 3, DailyLimit: 25}
	conns := newFakeConnStore(dead, spare)

	lead := testLead()
	lead.WhatsApp = &domain.Attribution{ConnectionID: "conn-01"}
	svc := newTestService(conns, newFakeLeadStore(lead), &fakeSender{})

	got, kind, err := svc.Assign(context.Background(), lead, time.Now().UTC())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if kind != domain.AllocationFailover {
		t.Fatalf("expected failover, got %s", kind)
	}
	if got.ID != "conn-02" {
		t.Fatalf("expected rebinding to conn-02, got %s", got.ID)
	}
	if lead.WhatsApp.ConnectionID != "conn-02" || lead.WhatsApp.Number != "+5511000000002" {
		t.Fatalf("attribution not rewritten: %+v", lead.WhatsApp)
	}
	if conns.conns["conn-02"].ConversationsToday != 4 {
		t.Fatalf("reassignment must consume quota, counter now %d", conns.conns["conn-02"].ConversationsToday)
	}
}

func TestAssignNewLeadPicksLeastLoaded(t *testing.T) {
	busy := &Connection{ID: "conn-01", Status: domain.ConnectionActive, ConversationsToday: 20, DailyLimit: 25}
	idle := &Connection{ID: "conn-02", Status: domain.ConnectionActive, ConversationsToday: 2, DailyLimit: 25}
	conns := newFakeConnStore(busy, idle)

	lead := testLead()
	svc := newTestService(conns, newFakeLeadStore(lead), &fakeSender{})

	got, kind, err := svc.Assign(context.Background(), lead, time.Now().UTC())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if kind != domain.AllocationNew {
		t.Fatalf("expected new allocation, got %s", kind)
	}
	if got.ID != "conn-02" {
		t.Fatalf("expected least loaded conn-02, got %s", got.ID)
	}
}

func TestAssignFailsWhenPoolExhausted(t *testing.T) {
	full := &Connection{ID: "conn-01", Status: domain.ConnectionActive, ConversationsToday: 25, DailyLimit: 25}
	conns := newFakeConnStore(full)

	lead := testLead()
	svc := newTestService(conns, newFakeLeadStore(lead), &fakeSender{})

	_, _, err := svc.Assign(context.Background(), lead, time.Now().UTC())
	if err == nil {
		t.Fatal("expected allocation failure")
	}
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable kind, got %v", err)
	}
}

func TestProcessTriggerBindsAndSends(t *testing.T) {
	conn := &Connection{ID: "conn-01", Number: "+5511000000001", Status: domain.ConnectionActive, DailyLimit: 25}
	conns := newFakeConnStore(conn)
	lead := testLead()
	store := newFakeLeadStore(lead)
	sender := &fakeSender{}
	svc := newTestService(conns, store, sender)

	if err := svc.ProcessTrigger(context.Background(), lead.ID, "rcs_clicked"); err != nil {
		t.Fatalf("process trigger: %v", err)
	}

	saved := store.leads[lead.ID]
	// Promotion belongs to the site that raised the trigger; the nudge flow
	// leaves the status alone.
	if saved.Status != domain.StatusOrange {
		t.Fatalf("trigger must not change status, got %s", saved.Status)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "conn-01" {
		t.Fatalf("expected one nudge via conn-01, got %v", sender.sent)
	}
	if saved.WhatsApp == nil || saved.WhatsApp.ConnectionID != "conn-01" {
		t.Fatalf("attribution not persisted: %+v", saved.WhatsApp)
	}
	if saved.Costs.Engines != 30 {
		t.Fatalf("expected message cost 30, got %d", saved.Costs.Engines)
	}
	if saved.WhatsApp.LastSentAt.IsZero() {
		t.Fatal("expected last_sent_at to be stamped")
	}
}

func TestProcessTriggerSendsToPausedLead(t *testing.T) {
	conn := &Connection{ID: "conn-01", Number: "+5511000000001", Status: domain.ConnectionActive, DailyLimit: 25}
	// A lead that pressed 1 arrives here already paused; the nudge is the
	// follow-up to that very event and must still go out.
	lead := testLead()
	lead.AutomationPaused = true
	lead.Status = domain.StatusGreen
	sender := &fakeSender{}
	svc := newTestService(newFakeConnStore(conn), newFakeLeadStore(lead), sender)

	if err := svc.ProcessTrigger(context.Background(), lead.ID, "voice_pressed_1"); err != nil {
		t.Fatalf("process trigger: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one nudge, got %d", len(sender.sent))
	}
}

func TestUpdateConnectionStatusReallocatesBoundLeads(t *testing.T) {
	dying := &Connection{ID: "conn-01", Number: "+5511000000001", Status: domain.ConnectionActive, DailyLimit: 25}
	spare := &Connection{ID: "conn-02", Number: "+5511000000002", Status: domain.ConnectionActive, DailyLimit: 25}
	conns := newFakeConnStore(dying, spare)

	lead := testLead()
	lead.WhatsApp = &domain.Attribution{ConnectionID: "conn-01", Number: dying.Number}
	store := newFakeLeadStore(lead)
	svc := newTestService(conns, store, &fakeSender{})

	if _, err := svc.UpdateConnectionStatus(context.Background(), "conn-01", domain.ConnectionBanned); err != nil {
		t.Fatalf("update status: %v", err)
	}

	saved := store.leads[lead.ID]
	if saved.WhatsApp.ConnectionID != "conn-02" {
		t.Fatalf("expected lead rebound to conn-02, got %s", saved.WhatsApp.ConnectionID)
	}
}

func TestUpdateConnectionStatusReallocatesPausedLeads(t *testing.T) {
	dying := &Connection{ID: "conn-01", Number: "+5511000000001", Status: domain.ConnectionActive, DailyLimit: 25}
	spare := &Connection{ID: "conn-02", Number: "+5511000000002", Status: domain.ConnectionActive, DailyLimit: 25}
	conns := newFakeConnStore(dying, spare)

	// Paused leads hold the live conversations and must not stay stranded on
	// a banned connection.
	lead := testLead()
	lead.AutomationPaused = true
	lead.WhatsApp = &domain.Attribution{ConnectionID: "conn-01", Number: dying.Number}
	store := newFakeLeadStore(lead)
	svc := newTestService(conns, store, &fakeSender{})

	if _, err := svc.UpdateConnectionStatus(context.Background(), "conn-01", domain.ConnectionBanned); err != nil {
		t.Fatalf("update status: %v", err)
	}

	saved := store.leads[lead.ID]
	if saved.WhatsApp.ConnectionID != "conn-02" {
		t.Fatalf("paused lead must be rebound, still on %s", saved.WhatsApp.ConnectionID)
	}
}
