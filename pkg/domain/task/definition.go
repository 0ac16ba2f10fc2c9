// Package task holds the field-work task model: immutable definitions,
// per-day instances, the completion lifecycle, and the effective-status
// hierarchy rule.
package task

// Definition is an immutable task template owned by the external admin
// console. RequiresValidation and RequiresScan jointly determine whether an
// instance's own status is authoritative or whether a parent derives its
// status from children.
type Definition struct {
	ID                 string `json:"id" yaml:"id"`
	Name               string `json:"name" yaml:"name"`
	DurationMinutes    int    `json:"duration_minutes" yaml:"duration_minutes"`
	RequiresValidation bool   `json:"requires_validation" yaml:"requires_validation"`
	RequiresScan       bool   `json:"requires_scan" yaml:"requires_scan"`
	IsMainTask         bool   `json:"is_main_task" yaml:"is_main_task"`
}

// SelfGoverned reports whether an instance of this definition drives its own
// visible status through explicit start/complete transitions. Instances of
// definitions without either requirement are completed directly or derived
// from children.
func (d Definition) SelfGoverned() bool {
	return d.RequiresValidation || d.RequiresScan
}
