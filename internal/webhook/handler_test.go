package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/marketing"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
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

type fakeEnqueuer struct {
	triggers []string
	congrats int
}

func (e *fakeEnqueuer) EnqueueWhatsAppTrigger(_ context.Context, _ uuid.UUID, source string) error {
	e.triggers = append(e.triggers, source)
	return nil
}

func (e *fakeEnqueuer) EnqueuePaidCongrats(context.Context, uuid.UUID) error {
	e.congrats++
	return nil
}

type fakeTemplateStore struct{}

func (fakeTemplateStore) ListActive(_ context.Context, templateContext string) ([]templates.Template, error) {
	return []templates.Template{{
		ID:      uuid.New(),
		Context: templateContext,
		Name:    "default",
		Body:    "Oi {{full_name}}",
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

type fakeEmailSender struct{}

func (fakeEmailSender) Send(context.Context, string, string, string) error { return nil }

type fakeMarketingCfg struct{}

func (fakeMarketingCfg) GetCostRCS() int64   { return 15 }
func (fakeMarketingCfg) GetCostSMS() int64   { return 10 }
func (fakeMarketingCfg) GetCostEmail() int64 { return 5 }

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:       uuid.New(),
		CPF:      "12345678901",
		FullName: "Maria Silva",
		Status:   domain.StatusOrange,
		Phones:   []domain.Phone{{Number: "+5511999990000", Priority: 1}},
		Emails:   []domain.Email{{Address: "maria@example.com"}},
		Proposal: domain.Proposal{
			SigningLink:     "https://sign.example/abc",
			LinkGeneratedAt: time.Now().UTC(),
		},
	}
}

func newTestRouter(store *fakeLeadStore) (*gin.Engine, *fakeEnqueuer) {
	gin.SetMode(gin.TestMode)
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	selector := templates.NewSelector(fakeTemplateStore{})
	enq := &fakeEnqueuer{}

	mkt := marketing.NewService(store, nil, nil, fakeEmailSender{}, selector, enq, bus, fakeMarketingCfg{}, log)
	h := New(nil, mkt, nil, enq, validator.New(), log)

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/webhooks"))
	return engine, enq
}

func postJSON(t *testing.T, engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChannelEventAcceptsOpened(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	engine, enq := newTestRouter(store)

	body := `{"lead_id":"` + lead.ID.String() + `","channel":"email","event":"OPENED"}`
	w := postJSON(t, engine, "/webhooks/channel-events", body)

	if w.Code != http.StatusOK {
		t.Fatalf("OPENED must be accepted, got %d: %s", w.Code, w.Body.String())
	}

	saved := store.leads[lead.ID]
	last := saved.Interactions[len(saved.Interactions)-1]
	if last.Kind != domain.InteractionEmailEvent || last.Payload["event"] != marketing.EventOpened {
		t.Fatalf("open not recorded: %+v", last)
	}
	if saved.Status != domain.StatusOrange {
		t.Fatalf("open must not engage, got %s", saved.Status)
	}
	if len(enq.triggers) != 0 {
		t.Fatal("open must not hand off to whatsapp")
	}
}

func TestChannelEventRejectsUnknownEvent(t *testing.T) {
	lead := testLead()
	engine, _ := newTestRouter(newFakeLeadStore(lead))

	body := `{"lead_id":"` + lead.ID.String() + `","channel":"sms","event":"BOUNCED"}`
	w := postJSON(t, engine, "/webhooks/channel-events", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event must be rejected, got %d", w.Code)
	}
}

func TestChannelEventClickHandsOff(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	engine, enq := newTestRouter(store)

	body := `{"lead_id":"` + lead.ID.String() + `","channel":"rcs","event":"CLICKED"}`
	w := postJSON(t, engine, "/webhooks/channel-events", body)

	if w.Code != http.StatusOK {
		t.Fatalf("click must be accepted, got %d: %s", w.Code, w.Body.String())
	}
	if store.leads[lead.ID].Status != domain.StatusGreen {
		t.Fatalf("click must turn the lead GREEN, got %s", store.leads[lead.ID].Status)
	}
	if len(enq.triggers) != 1 || enq.triggers[0] != "rcs_clicked" {
		t.Fatalf("expected whatsapp hand-off, got %v", enq.triggers)
	}
}
