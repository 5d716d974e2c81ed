package models

// DefaultServiceDurationMinutes is assumed when a service record is missing
// or carries no configured duration.
const DefaultServiceDurationMinutes = 15

// Service is a bookable service offered at a branch.
type Service struct {
	ID                       string `json:"service_id"`
	OrgID                    string `json:"org_id"`
	BranchID                 string `json:"branch_id"`
	Name                     string `json:"name"`
	EstimatedDurationMinutes int    `json:"estimated_duration_minutes"`
}

// Duration returns the configured duration, falling back to the default.
func (s *Service) Duration() int {
	if s == nil || s.EstimatedDurationMinutes <= 0 {
		return DefaultServiceDurationMinutes
	}
	return s.EstimatedDurationMinutes
}
