package callcycle

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
func (s *fakeLeadStore) ListBoundToConnection(context.Context, string) ([]domain.Lead, error) {
	return nil, nil
}
func (s *fakeLeadStore) StatusStats(context.Context) ([]leadstore.StatusStat, error) {
	return nil, nil
}
func (s *fakeLeadStore) ListHumanRequired(context.Context, int) ([]domain.Lead, error) {
	return nil, nil
}

type fakeDialer struct {
	outcome domain.CallOutcome
	dialed  []string
}

func (d *fakeDialer) PlaceCall(_ context.Context, number, _ string) (domain.CallOutcome, error) {
	d.dialed = append(d.dialed, number)
	return d.outcome, nil
}

type fakeEnqueuer struct {
	redials  []time.Duration
	triggers []string
}

func (e *fakeEnqueuer) ScheduleRedial(_ context.Context, _ uuid.UUID, _ int, delay time.Duration) error {
	e.redials = append(e.redials, delay)
	return nil
}

func (e *fakeEnqueuer) EnqueueWhatsAppTrigger(_ context.Context, _ uuid.UUID, source string) error {
	e.triggers = append(e.triggers, source)
	return nil
}

type fakeTemplateStore struct{}

func (fakeTemplateStore) ListActive(_ context.Context, templateContext string) ([]templates.Template, error) {
	return []templates.Template{{
		ID:      uuid.New(),
		Context: templateContext,
		Name:    "default",
		Body:    "Hello {{full_name}}",
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

func (fakeCfg) GetCostVoiceCall() int64 { return 50 }

func testLead(phones ...domain.Phone) *domain.Lead {
	return &domain.Lead{
		ID:       uuid.New(),
		CPF:      "12345678901",
		FullName: "Maria Silva",
		Phones:   phones,
		Proposal: domain.Proposal{
			SigningLink:     "https://sign.example/abc",
			LinkGeneratedAt: time.Now().UTC(),
		},
		Status: domain.StatusOrange,
	}
}

func newTestService(store *fakeLeadStore, dialer *fakeDialer, enq *fakeEnqueuer) *Service {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	selector := templates.NewSelector(fakeTemplateStore{})
	return NewService(store, dialer, selector, enq, bus, fakeCfg{}, log)
}

func TestRunAttemptPressed1(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomePressed1}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	saved := store.leads[lead.ID]
	if saved.Status != domain.StatusGreen {
		t.Fatalf("expected GREEN after pressed 1, got %s", saved.Status)
	}
	if !saved.AutomationPaused {
		t.Fatal("pressed 1 must pause automation")
	}
	if saved.VoiceAttempts() != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", saved.VoiceAttempts())
	}
	if saved.Costs.Engines != 50 || saved.Costs.Total != 50 {
		t.Fatalf("expected call cost 50 recorded, got %+v", saved.Costs)
	}
	if len(enq.triggers) != 1 || enq.triggers[0] != "voice_pressed_1" {
		t.Fatalf("expected whatsapp hand-off, got %v", enq.triggers)
	}
	if len(enq.redials) != 0 {
		t.Fatalf("pressed 1 must not schedule a redial")
	}

	// Re-invoking the cycle after the hand-off must not dial again.
	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if store.leads[lead.ID].VoiceAttempts() != 1 {
		t.Fatalf("finished cycle must not dial again")
	}
}

func TestRunAttemptNoAnswerSchedulesRedial(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeNoAnswer}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	if len(enq.redials) != 1 || enq.redials[0] != 5*time.Minute {
		t.Fatalf("expected one 5m redial, got %v", enq.redials)
	}
}

func TestRunAttemptRedialRetriesSameNumber(t *testing.T) {
	lead := testLead(
		domain.Phone{Number: "+5511999990000", Priority: 1},
		domain.Phone{Number: "+5511888880000", Priority: 2},
	)
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeNoAnswer}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := svc.RunAttempt(context.Background(), lead.ID, 1); err != nil {
		t.Fatalf("redial: %v", err)
	}

	want := []string{"+5511999990000", "+5511999990000"}
	if len(dialer.dialed) != 2 || dialer.dialed[0] != want[0] || dialer.dialed[1] != want[1] {
		t.Fatalf("redial must retry the missed number, dialed %v", dialer.dialed)
	}
}

func TestRunAttemptRedialLadderEnds(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeNoAnswer}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	// Third redial in the chain has no further rung.
	if err := svc.RunAttempt(context.Background(), lead.ID, 3); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	if len(enq.redials) != 0 {
		t.Fatalf("expected no redial past the ladder, got %v", enq.redials)
	}
}

func TestRunAttemptVoicemailMarksInapt(t *testing.T) {
	lead := testLead(
		domain.Phone{Number: "+5511999990000", Priority: 1},
		domain.Phone{Number: "+5511888880000", Priority: 2},
	)
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeVoicemail}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	saved := store.leads[lead.ID]
	if !saved.Phones[0].Inapt {
		t.Fatalf("dialed number should be inapt: %+v", saved.Phones[0])
	}
	if saved.Phones[1].Inapt {
		t.Fatalf("other number must stay dialable")
	}
	if got := saved.DialablePhones(); len(got) != 1 || got[0].Number != "+5511888880000" {
		t.Fatalf("expected only the second number dialable, got %v", got)
	}
}

func TestRunAttemptAskedOperator(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeAskedOperator}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	saved := store.leads[lead.ID]
	if !saved.HumanRequired {
		t.Fatalf("expected human_required after operator request")
	}
	if !saved.AutomationPaused {
		t.Fatalf("operator request must pause automation")
	}

	// The stop outcome must block further attempts.
	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if store.leads[lead.ID].VoiceAttempts() != 1 {
		t.Fatalf("stopped cycle must not dial again")
	}
}

func TestRunAttemptSkipsAtCap(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	for i := 0; i < MaxAttempts; i++ {
		lead.AddInteraction(domain.InteractionVoiceCall,
			map[string]interface{}{"outcome": string(domain.OutcomeAnsweredNoAction)}, 50, time.Now().UTC())
	}
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomePressed1}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}

	if len(dialer.dialed) != 0 {
		t.Fatalf("exhausted cycle must not dial, dialed %v", dialer.dialed)
	}
}

func TestRunAttemptSkipsPaused(t *testing.T) {
	lead := testLead(domain.Phone{Number: "+5511999990000", Priority: 1})
	lead.AutomationPaused = true
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomePressed1}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
		t.Fatalf("run attempt: %v", err)
	}
	if len(dialer.dialed) != 0 {
		t.Fatalf("paused lead must not be dialed")
	}
}

func TestRunAttemptRotatesPhones(t *testing.T) {
	lead := testLead(
		domain.Phone{Number: "+5511999990000", Priority: 1},
		domain.Phone{Number: "+5511888880000", Priority: 2},
	)
	store := newFakeLeadStore(lead)
	dialer := &fakeDialer{outcome: domain.OutcomeAnsweredNoAction}
	enq := &fakeEnqueuer{}
	svc := newTestService(store, dialer, enq)

	for i := 0; i < 4; i++ {
		if err := svc.RunAttempt(context.Background(), lead.ID, 0); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	want := []string{"+5511999990000", "+5511888880000", "+5511999990000", "+5511888880000"}
	if len(dialer.dialed) != len(want) {
		t.Fatalf("expected %d dials, got %v", len(want), dialer.dialed)
	}
	for i, number := range want {
		if dialer.dialed[i] != number {
			t.Fatalf("dial %d: got %s, want %s", i, dialer.dialed[i], number)
		}
	}
}
