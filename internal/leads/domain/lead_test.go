package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLead() *Lead {
	return &Lead{
		ID:       uuid.New(),
		CPF:      "12345678901",
		FullName: "Maria Souza",
		Status:   StatusOrange,
		Phones: []Phone{
			{Number: "+5511999990001", Priority: 1, Origin: "landing_page"},
			{Number: "+5511999990002", Priority: 2, Origin: "enrichment"},
			{Number: "+5511999990003", Priority: 2, Origin: "enrichment"},
		},
		Proposal: Proposal{
			Amount:          1234567,
			Installment:     45678,
			TermMonths:      48,
			Bank:            "Banco Azul",
			SigningLink:     "https://sign.example.com/abc",
			LinkGeneratedAt: time.Now().Add(-24 * time.Hour),
		},
		Costs: Costs{Acquisition: 500, Total: 500},
	}
}

func TestChangeStatusRecordsOutgoingStatus(t *testing.T) {
	lead := testLead()
	now := time.Now()

	change := lead.ChangeStatus(StatusGreen, "pressed 1 on voice call", now)

	if change.Status != StatusOrange {
		t.Fatalf("expected history entry to hold old status ORANGE, got %s", change.Status)
	}
	if lead.Status != StatusGreen {
		t.Fatalf("expected lead status GREEN, got %s", lead.Status)
	}
	if !strings.Contains(change.Reason, "transition from ORANGE to GREEN") {
		t.Fatalf("unexpected reason: %q", change.Reason)
	}
	if len(lead.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(lead.StatusHistory))
	}
	if lead.AutomationPaused {
		t.Fatal("GREEN must not pause automation")
	}
}

func TestChangeStatusPausesAutomation(t *testing.T) {
	for _, status := range []Status{StatusPurple, StatusWhite, StatusRed} {
		lead := testLead()
		lead.ChangeStatus(status, "terminal event", time.Now())
		if !lead.AutomationPaused {
			t.Fatalf("%s must pause automation", status)
		}
	}

	for _, status := range []Status{StatusGreen, StatusBlue, StatusRejected} {
		lead := testLead()
		lead.ChangeStatus(status, "event", time.Now())
		if lead.AutomationPaused {
			t.Fatalf("%s must not pause automation", status)
		}
	}
}

func TestAddInteractionKeepsCostInvariant(t *testing.T) {
	lead := testLead()
	now := time.Now()

	lead.AddInteraction(InteractionVoiceCall, map[string]interface{}{"outcome": "NO_ANSWER"}, 50, now)
	lead.AddInteraction(InteractionWhatsAppMessage, nil, 30, now)
	lead.AddInteraction(InteractionHumanRequired, nil, 0, now)

	if lead.Costs.Engines != 80 {
		t.Fatalf("expected engine spend 80, got %d", lead.Costs.Engines)
	}
	if lead.Costs.Total != lead.Costs.Acquisition+lead.Costs.Engines {
		t.Fatalf("total %d != acquisition %d + engines %d",
			lead.Costs.Total, lead.Costs.Acquisition, lead.Costs.Engines)
	}
	if len(lead.Costs.Breakdown) != 2 {
		t.Fatalf("zero-cost interactions must not enter the breakdown, got %d entries", len(lead.Costs.Breakdown))
	}
	if got := lead.Costs.Breakdown[0].Engine; got != "voice" {
		t.Fatalf("expected engine voice, got %q", got)
	}
	if len(lead.Interactions) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(lead.Interactions))
	}
}

func TestMarkPhoneInapt(t *testing.T) {
	lead := testLead()

	if ok := lead.MarkPhoneInapt("+5511999990002", "VOICEMAIL", time.Now()); !ok {
		t.Fatal("expected known number to be marked")
	}
	if ok := lead.MarkPhoneInapt("+5511000000000", "VOICEMAIL", time.Now()); ok {
		t.Fatal("unknown number must not be marked")
	}

	dialable := lead.DialablePhones()
	if len(dialable) != 2 {
		t.Fatalf("expected 2 dialable numbers, got %d", len(dialable))
	}
	for _, p := range dialable {
		if p.Number == "+5511999990002" {
			t.Fatal("inapt number still dialable")
		}
	}
	if lead.Interactions[len(lead.Interactions)-1].Kind != InteractionPhoneMarkedInapt {
		t.Fatal("expected inapt marking to be logged")
	}
}

func TestListAListBOrdering(t *testing.T) {
	lead := testLead()

	listA := lead.ListA()
	if len(listA) != 1 || listA[0].Number != "+5511999990001" {
		t.Fatalf("unexpected list A: %+v", listA)
	}

	listB := lead.ListB()
	if len(listB) != 2 {
		t.Fatalf("expected 2 list B numbers, got %d", len(listB))
	}

	dialable := lead.DialablePhones()
	if dialable[0].Number != "+5511999990001" {
		t.Fatal("list A must come first in the dial order")
	}
}

func TestEligibleForCalls(t *testing.T) {
	lead := testLead()
	if !lead.EligibleForCalls() {
		t.Fatal("expected fresh lead to be eligible")
	}

	paused := testLead()
	paused.AutomationPaused = true
	if paused.EligibleForCalls() {
		t.Fatal("paused lead must not be eligible")
	}

	noLink := testLead()
	noLink.Proposal.SigningLink = ""
	if noLink.EligibleForCalls() {
		t.Fatal("lead without signing link must not be eligible")
	}

	noPhones := testLead()
	for i := range noPhones.Phones {
		noPhones.Phones[i].Inapt = true
	}
	if noPhones.EligibleForCalls() {
		t.Fatal("lead with only inapt phones must not be eligible")
	}
}

func TestVoiceAttemptsCountsOnlyCalls(t *testing.T) {
	lead := testLead()
	now := time.Now()
	lead.AddInteraction(InteractionVoiceCall, nil, 50, now)
	lead.AddInteraction(InteractionWhatsAppMessage, nil, 30, now)
	lead.AddInteraction(InteractionVoiceCall, nil, 50, now)

	if got := lead.VoiceAttempts(); got != 2 {
		t.Fatalf("expected 2 voice attempts, got %d", got)
	}
}

func TestLinkAge(t *testing.T) {
	lead := testLead()
	generated := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lead.Proposal.LinkGeneratedAt = generated

	now := generated.Add(4*24*time.Hour + time.Hour)
	if got := lead.LinkAgeDays(now); got != 4 {
		t.Fatalf("expected link age 4 days, got %d", got)
	}
	if !lead.NeedsLinkRenewal(now, 3) {
		t.Fatal("4-day-old link must need renewal at a 3-day threshold")
	}
	if lead.LinkExpired(now, 30) {
		t.Fatal("4-day-old link must not be expired at 30 days")
	}
	if !lead.LinkExpired(generated.Add(31*24*time.Hour), 30) {
		t.Fatal("31-day-old link must be expired at 30 days")
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{99, "R$ 0,99"},
		{150, "R$ 1,50"},
		{1234567, "R$ 12.345,67"},
		{100000000, "R$ 1.000.000,00"},
		{-45678, "-R$ 456,78"},
	}
	for _, tc := range cases {
		if got := FormatBRL(tc.cents); got != tc.want {
			t.Fatalf("FormatBRL(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestTemplateVars(t *testing.T) {
	lead := testLead()
	vars := lead.TemplateVars()

	if vars["full_name"] != "Maria Souza" {
		t.Fatalf("unexpected full_name: %q", vars["full_name"])
	}
	if vars["amount"] != "R$ 12.345,67" {
		t.Fatalf("unexpected amount: %q", vars["amount"])
	}
	if vars["term_months"] != "48" {
		t.Fatalf("unexpected term_months: %q", vars["term_months"])
	}
	if vars["signing_link"] != "https://sign.example.com/abc" {
		t.Fatalf("unexpected signing_link: %q", vars["signing_link"])
	}
}
