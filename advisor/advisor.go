package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
)

// ErrUnavailable is returned when the model was required but could not answer
var ErrUnavailable = errors.New("advisor unavailable")

// Severity levels
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Draft is an invoice under review
type Draft struct {
	ClientName   string            `json:"client_name"`
	Email        string            `json:"email"`
	IssueDate    string            `json:"issue_date"`
	DueDate      string            `json:"due_date"`
	Notes        string            `json:"notes"`
	Items        []domain.LineItem `json:"items"`
	RequireModel bool              `json:"require_model"`
}

// Issue is a single finding
type Issue struct {
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
}

// Report is the result of a review
type Report struct {
	Issues           []Issue       `json:"issues"`
	Totals           domain.Totals `json:"totals"`
	AdvisorAvailable bool          `json:"advisor_available"`
}

// Completer answers chat prompts
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Advisor reviews invoice drafts. It never changes invoice state.
type Advisor struct {
	llm     Completer
	timeout time.Duration
}

// New creates an Advisor. The model is only consulted when an endpoint is configured.
func New(cfg config.AdvisorConfig) *Advisor {
	a := &Advisor{timeout: cfg.Timeout}
	if cfg.Endpoint != "" {
		a.llm = NewLLMClient(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Timeout)
	}
	return a
}

// NewWithCompleter creates an Advisor around an existing model client
func NewWithCompleter(llm Completer, timeout time.Duration) *Advisor {
	return &Advisor{llm: llm, timeout: timeout}
}

// Review runs the rule checks and, if available, the model
func (a *Advisor) Review(ctx context.Context, draft Draft) (*Report, error) {
	report := &Report{
		Issues: CheckRules(draft),
		Totals: domain.ComputeTotals(draft.Items),
	}

	if a.llm == nil {
		if draft.RequireModel {
			return nil, ErrUnavailable
		}
		return report, nil
	}

	issues, err := a.askModel(ctx, draft)
	if err != nil {
		log.Warn().Err(err).Msg("Advisor model unavailable, returning rule checks only")
		if draft.RequireModel {
			return nil, ErrUnavailable
		}
		return report, nil
	}

	report.Issues = append(report.Issues, issues...)
	report.AdvisorAvailable = true
	return report, nil
}

// CheckRules applies the deterministic invoice checks
func CheckRules(draft Draft) []Issue {
	issues := []Issue{}
	add := func(field, severity, message string) {
		issues = append(issues, Issue{Field: field, Message: message, Severity: severity, Source: "rules"})
	}

	if strings.TrimSpace(draft.ClientName) == "" {
		add("client_name", SeverityError, "client name is missing")
	}

	email := strings.TrimSpace(draft.Email)
	if email == "" {
		add("email", SeverityWarning, "no email address, the invoice cannot be sent")
	} else if _, err := mail.ParseAddress(email); err != nil {
		add("email", SeverityError, "email address looks invalid")
	}

	if verr := domain.ValidateItems(draft.Items); verr.HasErrors() {
		for field, msg := range verr.Fields {
			add(field, SeverityError, msg)
		}
	}

	issue, issueErr := domain.ParseDate("issue_date", draft.IssueDate)
	due, dueErr := domain.ParseDate("due_date", draft.DueDate)
	if issueErr != nil {
		add("issue_date", SeverityError, issueErr.Fields["issue_date"])
	}
	if dueErr != nil {
		add("due_date", SeverityError, dueErr.Fields["due_date"])
	}
	if issueErr == nil && dueErr == nil {
		if verr := domain.ValidateDates(issue, due); verr.HasErrors() {
			add("due_date", SeverityError, verr.Fields["due_date"])
		}
	}

	return issues
}

func (a *Advisor) askModel(ctx context.Context, draft Draft) ([]Issue, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}

	content, err := a.llm.Complete(ctx, []ChatMessage{
		{Role: "system", Content: "You review invoices for mistakes. Reply with a JSON array of objects with fields \"field\" and \"message\". Reply [] when nothing is wrong."},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return nil, err
	}

	var found []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &found); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}

	issues := make([]Issue, 0, len(found))
	for _, f := range found {
		if strings.TrimSpace(f.Message) == "" {
			continue
		}
		issues = append(issues, Issue{Field: f.Field, Message: f.Message, Severity: SeverityWarning, Source: "model"})
	}
	return issues, nil
}

// extractJSON strips markdown fences around a JSON answer
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
