// Package transport defines the HTTP request and response shapes of the
// leads module.
package transport

import (
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
)

// UpdateStatusRequest performs a manual status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ORANGE GREEN BLUE RED PURPLE WHITE REJECTED"`
	Reason string `json:"reason" validate:"required"`
}

// MarkHumanRequiredRequest flags a lead for an operator.
type MarkHumanRequiredRequest struct {
	Source string `json:"source" validate:"required"`
}

// ListResponse is one page of leads.
type ListResponse struct {
	Items []domain.Lead `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// StatusStatResponse is one per-status dashboard row.
type StatusStatResponse struct {
	Status    domain.Status `json:"status"`
	Total     int           `json:"total"`
	TotalCost int64         `json:"total_cost"`
}

// StatsResponse is the funnel dashboard aggregate.
type StatsResponse struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Statuses    []StatusStatResponse `json:"statuses"`
}

// NewStatsResponse converts repository aggregates into the response shape.
func NewStatsResponse(stats []repository.StatusStat, now time.Time) StatsResponse {
	out := StatsResponse{GeneratedAt: now, Statuses: make([]StatusStatResponse, 0, len(stats))}
	for _, s := range stats {
		out.Statuses = append(out.Statuses, StatusStatResponse{
			Status:    s.Status,
			Total:     s.Total,
			TotalCost: s.TotalCost,
		})
	}
	return out
}
