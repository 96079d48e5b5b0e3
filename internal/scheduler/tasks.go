package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCallAttempt = "calls.attempt"

const TaskWhatsAppTrigger = "whatsapp.trigger"

const TaskMarketingDispatch = "marketing.dispatch"

const TaskPaidCongrats = "marketing.paid_congrats"

type CallAttemptPayload struct {
	LeadID      string `json:"leadId"`
	RedialCount int    `json:"redialCount"`
}

type WhatsAppTriggerPayload struct {
	LeadID string `json:"leadId"`
	Source string `json:"source"`
}

type MarketingDispatchPayload struct {
	LeadID  string `json:"leadId"`
	Channel string `json:"channel"`
}

type PaidCongratsPayload struct {
	LeadID string `json:"leadId"`
}

func NewCallAttemptTask(payload CallAttemptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallAttempt, data), nil
}

func ParseCallAttemptPayload(task *asynq.Task) (CallAttemptPayload, error) {
	var payload CallAttemptPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallAttemptPayload{}, err
	}
	return payload, nil
}

func NewWhatsAppTriggerTask(payload WhatsAppTriggerPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWhatsAppTrigger, data), nil
}

func ParseWhatsAppTriggerPayload(task *asynq.Task) (WhatsAppTriggerPayload, error) {
	var payload WhatsAppTriggerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WhatsAppTriggerPayload{}, err
	}
	return payload, nil
}

func NewMarketingDispatchTask(payload MarketingDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarketingDispatch, data), nil
}

func ParseMarketingDispatchPayload(task *asynq.Task) (MarketingDispatchPayload, error) {
	var payload MarketingDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MarketingDispatchPayload{}, err
	}
	return payload, nil
}

func NewPaidCongratsTask(payload PaidCongratsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaidCongrats, data), nil
}

func ParsePaidCongratsPayload(task *asynq.Task) (PaidCongratsPayload, error) {
	var payload PaidCongratsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaidCongratsPayload{}, err
	}
	return payload, nil
}
