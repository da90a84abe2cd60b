package domain

import "encoding/json"

// RuleType discriminates the rule union.
type RuleType string

const (
	RuleCoRun              RuleType = "coRun"
	RuleSlotRestriction    RuleType = "slotRestriction"
	RuleLoadLimit          RuleType = "loadLimit"
	RulePhaseWindow        RuleType = "phaseWindow"
	RulePatternMatch       RuleType = "patternMatch"
	RulePrecedenceOverride RuleType = "precedenceOverride"
)

// RuleTypes lists every valid rule type in declaration order.
func RuleTypes() []RuleType {
	return []RuleType{
		RuleCoRun,
		RuleSlotRestriction,
		RuleLoadLimit,
		RulePhaseWindow,
		RulePatternMatch,
		RulePrecedenceOverride,
	}
}

// Valid reports whether t is one of the six rule types.
func (t RuleType) Valid() bool {
	switch t {
	case RuleCoRun, RuleSlotRestriction, RuleLoadLimit, RulePhaseWindow, RulePatternMatch, RulePrecedenceOverride:
		return true
	}
	return false
}

type RuleMetadata struct {
	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Per-variant payloads.

type CoRunRule struct {
	Tasks []string `json:"tasks"`
}

type SlotRestrictionRule struct {
	TargetGroup    string `json:"targetGroup"`
	MinCommonSlots int    `json:"minCommonSlots"`
}

type LoadLimitRule struct {
	WorkerGroup      string `json:"workerGroup"`
	MaxSlotsPerPhase int    `json:"maxSlotsPerPhase"`
}

type PhaseWindowRule struct {
	Task          string `json:"task"`
	AllowedPhases []int  `json:"allowedPhases"`
}

type PatternMatchRule struct {
	Regex        string         `json:"regex"`
	RuleTemplate string         `json:"ruleTemplate"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

type PrecedenceOverrideRule struct {
	PriorityOrder []string `json:"priorityOrder"`
}

// Rule is the tagged union. Exactly one payload pointer is set for a rule with
// a recognized Type; all are nil for an unrecognized type, which the validator
// rejects. The wire form is flat: payload fields sit next to the envelope
// fields, discriminated by "type".
type Rule struct {
	ID       string
	Type     RuleType
	IsActive bool
	Priority int
	Metadata RuleMetadata

	CoRun              *CoRunRule
	SlotRestriction    *SlotRestrictionRule
	LoadLimit          *LoadLimitRule
	PhaseWindow        *PhaseWindowRule
	PatternMatch       *PatternMatchRule
	PrecedenceOverride *PrecedenceOverrideRule
}

// ruleWire is the flat JSON shape shared by all variants.
type ruleWire struct {
	ID       string        `json:"id,omitempty"`
	Type     RuleType      `json:"type"`
	IsActive *bool         `json:"isActive,omitempty"`
	Priority int           `json:"priority,omitempty"`
	Metadata *RuleMetadata `json:"metadata,omitempty"`

	Tasks            []string       `json:"tasks,omitempty"`
	TargetGroup      string         `json:"targetGroup,omitempty"`
	MinCommonSlots   int            `json:"minCommonSlots,omitempty"`
	WorkerGroup      string         `json:"workerGroup,omitempty"`
	MaxSlotsPerPhase int            `json:"maxSlotsPerPhase,omitempty"`
	Task             string         `json:"task,omitempty"`
	AllowedPhases    []int          `json:"allowedPhases,omitempty"`
	Regex            string         `json:"regex,omitempty"`
	RuleTemplate     string         `json:"ruleTemplate,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	PriorityOrder    []string       `json:"priorityOrder,omitempty"`
}

// UnmarshalJSON decodes the flat wire form. A missing isActive defaults to
// true. For a recognized type the matching payload is always allocated, even
// when its fields are absent, so the validator can report what is missing.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.Type = w.Type
	r.IsActive = w.IsActive == nil || *w.IsActive
	r.Priority = w.Priority
	if w.Metadata != nil {
		r.Metadata = *w.Metadata
	} else {
		r.Metadata = RuleMetadata{}
	}
	r.CoRun, r.SlotRestriction, r.LoadLimit = nil, nil, nil
	r.PhaseWindow, r.PatternMatch, r.PrecedenceOverride = nil, nil, nil
	switch w.Type {
	case RuleCoRun:
		r.CoRun = &CoRunRule{Tasks: w.Tasks}
	case RuleSlotRestriction:
		r.SlotRestriction = &SlotRestrictionRule{TargetGroup: w.TargetGroup, MinCommonSlots: w.MinCommonSlots}
	case RuleLoadLimit:
		r.LoadLimit = &LoadLimitRule{WorkerGroup: w.WorkerGroup, MaxSlotsPerPhase: w.MaxSlotsPerPhase}
	case RulePhaseWindow:
		r.PhaseWindow = &PhaseWindowRule{Task: w.Task, AllowedPhases: w.AllowedPhases}
	case RulePatternMatch:
		r.PatternMatch = &PatternMatchRule{Regex: w.Regex, RuleTemplate: w.RuleTemplate, Parameters: w.Parameters}
	case RulePrecedenceOverride:
		r.PrecedenceOverride = &PrecedenceOverrideRule{PriorityOrder: w.PriorityOrder}
	}
	return nil
}

// MarshalJSON encodes the flat wire form.
func (r Rule) MarshalJSON() ([]byte, error) {
	active := r.IsActive
	w := ruleWire{
		ID:       r.ID,
		Type:     r.Type,
		IsActive: &active,
		Priority: r.Priority,
	}
	if r.Metadata != (RuleMetadata{}) {
		md := r.Metadata
		w.Metadata = &md
	}
	switch {
	case r.CoRun != nil:
		w.Tasks = r.CoRun.Tasks
	case r.SlotRestriction != nil:
		w.TargetGroup = r.SlotRestriction.TargetGroup
		w.MinCommonSlots = r.SlotRestriction.MinCommonSlots
	case r.LoadLimit != nil:
		w.WorkerGroup = r.LoadLimit.WorkerGroup
		w.MaxSlotsPerPhase = r.LoadLimit.MaxSlotsPerPhase
	case r.PhaseWindow != nil:
		w.Task = r.PhaseWindow.Task
		w.AllowedPhases = r.PhaseWindow.AllowedPhases
	case r.PatternMatch != nil:
		w.Regex = r.PatternMatch.Regex
		w.RuleTemplate = r.PatternMatch.RuleTemplate
		w.Parameters = r.PatternMatch.Parameters
	case r.PrecedenceOverride != nil:
		w.PriorityOrder = r.PrecedenceOverride.PriorityOrder
	}
	return json.Marshal(w)
}
