package domain_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"crewplan/internal/domain"
)

func TestRuleUnmarshalFlatWire(t *testing.T) {
	raw := `{"id":"r1","type":"coRun","tasks":["T1","T2"],"priority":3}`
	var r domain.Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "r1" || r.Type != domain.RuleCoRun || r.Priority != 3 {
		t.Fatalf("rule = %+v", r)
	}
	if !r.IsActive {
		t.Fatalf("missing isActive must default to true")
	}
	if r.CoRun == nil || !reflect.DeepEqual(r.CoRun.Tasks, []string{"T1", "T2"}) {
		t.Fatalf("payload = %+v", r.CoRun)
	}
	if r.SlotRestriction != nil || r.LoadLimit != nil || r.PhaseWindow != nil ||
		r.PatternMatch != nil || r.PrecedenceOverride != nil {
		t.Fatalf("other payloads set: %+v", r)
	}
}

func TestRuleUnmarshalExplicitInactive(t *testing.T) {
	raw := `{"type":"loadLimit","workerGroup":"backend","maxSlotsPerPhase":2,"isActive":false}`
	var r domain.Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.IsActive {
		t.Fatalf("isActive=false not honored")
	}
	if r.LoadLimit == nil || r.LoadLimit.WorkerGroup != "backend" || r.LoadLimit.MaxSlotsPerPhase != 2 {
		t.Fatalf("payload = %+v", r.LoadLimit)
	}
}

func TestRuleUnmarshalAllocatesEmptyPayload(t *testing.T) {
	// A recognized type with absent payload fields still gets its payload
	// struct, so the validator can report exactly what is missing.
	var r domain.Rule
	if err := json.Unmarshal([]byte(`{"type":"phaseWindow"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.PhaseWindow == nil {
		t.Fatalf("payload not allocated")
	}
	if r.PhaseWindow.Task != "" || len(r.PhaseWindow.AllowedPhases) != 0 {
		t.Fatalf("payload = %+v", r.PhaseWindow)
	}
}

func TestRuleUnmarshalUnknownType(t *testing.T) {
	var r domain.Rule
	if err := json.Unmarshal([]byte(`{"type":"banana","tasks":["T1"]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.CoRun != nil {
		t.Fatalf("unknown type must not bind a payload")
	}
	if r.Type.Valid() {
		t.Fatalf("type %q reported valid", r.Type)
	}
}

func TestRuleRoundTrip(t *testing.T) {
	rules := []domain.Rule{
		{ID: "r1", Type: domain.RuleCoRun, IsActive: true, Priority: 1,
			CoRun: &domain.CoRunRule{Tasks: []string{"T1", "T2"}}},
		{ID: "r2", Type: domain.RuleSlotRestriction, IsActive: false,
			SlotRestriction: &domain.SlotRestrictionRule{TargetGroup: "backend", MinCommonSlots: 2}},
		{ID: "r3", Type: domain.RulePatternMatch, IsActive: true,
			PatternMatch: &domain.PatternMatchRule{Regex: "^T", RuleTemplate: "coRun",
				Parameters: map[string]any{"k": "v"}}},
		{ID: "r4", Type: domain.RulePrecedenceOverride, IsActive: true,
			Metadata: domain.RuleMetadata{CreatedBy: "tester", CreatedAt: "2026-01-01T00:00:00Z"},
			PrecedenceOverride: &domain.PrecedenceOverrideRule{PriorityOrder: []string{"coRun"}}},
	}
	for _, in := range rules {
		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal %s: %v", in.ID, err)
		}
		var out domain.Rule
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", in.ID, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("rule %s round trip:\n in  %+v\n out %+v\n wire %s", in.ID, in, out, raw)
		}
	}
}

func TestRuleMarshalIsFlat(t *testing.T) {
	r := domain.Rule{ID: "r1", Type: domain.RulePhaseWindow, IsActive: true,
		PhaseWindow: &domain.PhaseWindowRule{Task: "T1", AllowedPhases: []int{1, 2}}}
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, nested := m["phaseWindow"]; nested {
		t.Fatalf("payload nested in wire form: %s", raw)
	}
	if m["task"] != "T1" {
		t.Fatalf("wire = %s", raw)
	}
}

func TestIDField(t *testing.T) {
	cases := map[string]string{
		domain.EntityClient: domain.ClientIDField,
		domain.EntityWorker: domain.WorkerIDField,
		domain.EntityTask:   domain.TaskIDField,
	}
	for entity, want := range cases {
		if got := domain.IDField(entity); got != want {
			t.Fatalf("IDField(%s) = %s, want %s", entity, got, want)
		}
	}
}
