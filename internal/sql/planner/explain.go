package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a plan for EXPLAIN output. The rendering is
// derived from the plan alone, with no remote access, and is
// reproducible for a given statement and catalog state.
func FormatText(plan *ExecutionPlan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Federated Query Plan\n")
	fmt.Fprintf(&sb, "  strategy: %s\n", plan.Strategy)
	fmt.Fprintf(&sb, "  sources:  %s\n", strings.Join(plan.Sources, ", "))
	fmt.Fprintf(&sb, "  cost:     %.0f\n", plan.TotalCost())

	for _, s := range plan.Steps {
		fmt.Fprintf(&sb, "  %d: %s %s(rows=%d cost=%.0f)\n", s.ID, s.Kind, stepDetail(s), s.EstimatedRows, s.EstimatedCost)
		for _, extra := range stepAnnotations(s) {
			fmt.Fprintf(&sb, "       %s\n", extra)
		}
	}
	return sb.String()
}

func stepDetail(s *ExecutionStep) string {
	switch s.Kind {
	case StepFetch:
		name := s.Source + "." + s.Table
		if s.Alias != s.Table {
			name += " " + s.Alias
		}
		return name + " "
	case StepJoin:
		return fmt.Sprintf("[%s, %s] on %s deps=%v ", s.Strategy, s.JoinType, s.Condition, s.DependsOn)
	case StepSort:
		keys := make([]string, len(s.Keys))
		for i, k := range s.Keys {
			keys[i] = k.Expr.String()
			if k.Desc {
				keys[i] += " DESC"
			}
		}
		return fmt.Sprintf("by %s deps=%v ", strings.Join(keys, ", "), s.DependsOn)
	case StepAggregate:
		groups := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			groups[i] = g.String()
		}
		aggs := make([]string, len(s.Aggregates))
		for i, a := range s.Aggregates {
			aggs[i] = a.String()
		}
		detail := strings.Join(aggs, ", ")
		if len(groups) > 0 {
			detail += " group by " + strings.Join(groups, ", ")
		}
		return detail + fmt.Sprintf(" deps=%v ", s.DependsOn)
	case StepLimit:
		detail := ""
		if s.Limit >= 0 {
			detail = fmt.Sprintf("limit %d ", s.Limit)
		}
		if s.Offset > 0 {
			detail += fmt.Sprintf("offset %d ", s.Offset)
		}
		return detail + fmt.Sprintf("deps=%v ", s.DependsOn)
	}
	return ""
}

func stepAnnotations(s *ExecutionStep) []string {
	var out []string
	if s.Kind == StepFetch && s.Remote != nil {
		if len(s.Remote.Columns) > 0 {
			out = append(out, "columns: "+strings.Join(s.Remote.Columns, ", "))
		}
		if len(s.Remote.Filters) > 0 {
			filters := make([]string, len(s.Remote.Filters))
			for i, f := range s.Remote.Filters {
				switch {
				case f.Op.String() == "IS NULL" || f.Op.String() == "IS NOT NULL":
					filters[i] = f.Column + " " + f.Op.String()
				default:
					filters[i] = fmt.Sprintf("%s %s %s", f.Column, f.Op, f.Value)
				}
			}
			out = append(out, "remote filter: "+strings.Join(filters, " AND "))
		}
		if s.Remote.Limit > 0 {
			out = append(out, fmt.Sprintf("remote limit: %d", s.Remote.Limit))
		}
	}
	if s.LocalFilter != nil {
		out = append(out, "local filter: "+s.LocalFilter.String())
	}
	if s.Residual != nil {
		out = append(out, "residual filter: "+s.Residual.String())
	}
	return out
}

// explainStep is the JSON shape of one step.
type explainStep struct {
	ID            int     `json:"id"`
	Kind          string  `json:"kind"`
	DependsOn     []int   `json:"depends_on,omitempty"`
	EstimatedRows int64   `json:"estimated_rows"`
	EstimatedCost float64 `json:"estimated_cost"`
	Source        string  `json:"source,omitempty"`
	Table         string  `json:"table,omitempty"`
	Alias         string  `json:"alias,omitempty"`
	Strategy      string  `json:"strategy,omitempty"`
	JoinType      string  `json:"join_type,omitempty"`
	Condition     string  `json:"condition,omitempty"`
	LocalFilter   string  `json:"local_filter,omitempty"`
	Residual      string  `json:"residual_filter,omitempty"`
	RemoteFilters int     `json:"remote_filters,omitempty"`
}

type explainPlan struct {
	Strategy string        `json:"strategy"`
	Sources  []string      `json:"sources"`
	Cost     float64       `json:"total_cost"`
	Steps    []explainStep `json:"steps"`
}

// FormatJSON renders a plan as indented JSON for structured consumers.
func FormatJSON(plan *ExecutionPlan) (string, error) {
	out := explainPlan{
		Strategy: plan.Strategy.String(),
		Sources:  plan.Sources,
		Cost:     plan.TotalCost(),
	}
	for _, s := range plan.Steps {
		es := explainStep{
			ID:            s.ID,
			Kind:          s.Kind.String(),
			DependsOn:     s.DependsOn,
			EstimatedRows: s.EstimatedRows,
			EstimatedCost: s.EstimatedCost,
			Source:        s.Source,
			Table:         s.Table,
			Alias:         s.Alias,
		}
		if s.Kind == StepJoin {
			es.Strategy = s.Strategy.String()
			es.JoinType = s.JoinType.String()
			es.Condition = s.Condition.String()
		}
		if s.LocalFilter != nil {
			es.LocalFilter = s.LocalFilter.String()
		}
		if s.Residual != nil {
			es.Residual = s.Residual.String()
		}
		if s.Remote != nil {
			es.RemoteFilters = len(s.Remote.Filters)
		}
		out.Steps = append(out.Steps, es)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
