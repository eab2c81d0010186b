// Package rules provides the CEL-Go based custom venue rule engine.
// Venues attach boolean expressions over live POS events; a true result
// counts as one triggered rule in the real-time monitor.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/open-hospitality/kestrel/internal/domain"
)

// Engine compiles and evaluates custom venue rules.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules map[string]map[string]*CompiledRule // venueID -> ruleID
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a rule engine with the live-event variable set.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("venue_id", cel.StringType),
		cel.Variable("employee_id", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("tender", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("is_void", cel.BoolType),
		cel.Variable("void_after_payment", cel.BoolType),
		cel.Variable("minutes_since_order", cel.DoubleType),
		cel.Variable("is_discount", cel.BoolType),
		cel.Variable("discount_pct", cel.DoubleType),
		cel.Variable("discount_approved", cel.BoolType),
		cel.Variable("no_sale", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:   env,
		rules: make(map[string]map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule for its venue.
func (e *Engine) LoadRule(venueID string, cfg *domain.RuleConfig) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rules[venueID] == nil {
		e.rules[venueID] = make(map[string]*CompiledRule)
	}
	e.rules[venueID][cfg.ID] = compiled

	return nil
}

// ReloadRules replaces a venue's rule set wholesale. This enables
// hot-reloading of rules from the database.
func (e *Engine) ReloadRules(venueID string, configs []*domain.RuleConfig) error {
	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[venueID] = newRules

	return nil
}

// EvaluateEvent runs a venue's rules against a live event and returns the
// flags of the rules that triggered. A rule that fails to evaluate is
// skipped rather than failing the event.
func (e *Engine) EvaluateEvent(ctx context.Context, event *domain.RealTimeEvent) []string {
	e.mu.RLock()
	venueRules := make([]*CompiledRule, 0, len(e.rules[event.VenueID]))
	for _, rule := range e.rules[event.VenueID] {
		venueRules = append(venueRules, rule)
	}
	e.mu.RUnlock()

	if len(venueRules) == 0 {
		return nil
	}

	activation := eventActivation(event)

	var flags []string
	for _, rule := range venueRules {
		out, _, err := rule.Program.ContextEval(ctx, activation)
		if err != nil {
			continue
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			flags = append(flags, ruleFlag(rule.Config))
		}
	}
	return flags
}

// RulesCount returns the number of loaded rules for a venue.
func (e *Engine) RulesCount(venueID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules[venueID])
}

// GetLoadedRules returns a venue's currently loaded rule configurations.
func (e *Engine) GetLoadedRules(venueID string) []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.RuleConfig, 0, len(e.rules[venueID]))
	for _, compiled := range e.rules[venueID] {
		configs = append(configs, compiled.Config)
	}
	return configs
}

// Close clears all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

// eventActivation flattens a live event into the CEL variable set.
// Missing attachments default to inert values so expressions never error
// on absent fields.
func eventActivation(event *domain.RealTimeEvent) map[string]any {
	activation := map[string]any{
		"venue_id":            event.VenueID,
		"employee_id":         event.EmployeeID,
		"amount":              0.0,
		"tx_type":             "",
		"tender":              "",
		"hour":                int64(event.Timestamp.Hour()),
		"is_void":             event.Void != nil,
		"void_after_payment":  false,
		"minutes_since_order": 0.0,
		"is_discount":         event.Discount != nil,
		"discount_pct":        0.0,
		"discount_approved":   false,
		"no_sale":             event.NoSale,
	}

	if tx := event.Transaction; tx != nil {
		activation["amount"] = tx.Amount
		activation["tx_type"] = tx.Type
		activation["tender"] = tx.TenderType
	}
	if v := event.Void; v != nil {
		activation["amount"] = v.Amount
		activation["void_after_payment"] = v.AfterPayment
		activation["minutes_since_order"] = v.MinutesSinceOrder
	}
	if d := event.Discount; d != nil {
		activation["discount_pct"] = d.Percent
		activation["discount_approved"] = d.Approved
	}

	return activation
}

func ruleFlag(cfg *domain.RuleConfig) string {
	if cfg.Flag != "" {
		return cfg.Flag
	}
	return cfg.Name
}
