// Package assistant manages the catalog of AI assistants.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

const DefaultBulkReason = "Bulk state change"

// Auditor records activity entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (*models.AdminActivityLog, error)
}

// Result wraps a mutated assistant. Warning carries an audit failure.
type Result struct {
	Assistant *models.Assistant `json:"assistant"`
	Warning   error             `json:"-"`
}

// BulkResult reports a bulk state change.
type BulkResult struct {
	Updated  int64              `json:"updated"`
	Missing  []uint             `json:"missing,omitempty"`
	Warnings []error            `json:"-"`
	Items    []models.Assistant `json:"assistants"`
}

// Service manages assistants.
type Service struct {
	repo    Repository
	auditor Auditor
}

// NewService creates an assistant service. auditor may be nil.
func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// NewServiceFromDB creates an assistant service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, auditor Auditor) *Service {
	return NewService(NewRepository(db), auditor)
}

// List returns assistants matching filter ordered by name, plus the total.
func (s *Service) List(ctx context.Context, filter Filter) ([]models.Assistant, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.DomainCode != "" {
		filter.DomainCode = NormalizeDomainCode(filter.DomainCode)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.FromStore("list assistants", err)
	}
	return items, total, nil
}

// Get returns one assistant.
func (s *Service) Get(ctx context.Context, id uint) (*models.Assistant, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get assistant", err)
	}
	return a, nil
}

// KnowledgeBanks lists the knowledge banks assistants can be bound to.
func (s *Service) KnowledgeBanks(ctx context.Context) ([]models.KnowledgeBank, error) {
	banks, err := s.repo.KnowledgeBanks(ctx)
	if err != nil {
		return nil, apperr.FromStore("list knowledge banks", err)
	}
	return banks, nil
}

// Create validates in and inserts a new assistant. Invalid input never reaches the store.
func (s *Service) Create(ctx context.Context, caller usercontext.UserContext, in Input) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}

	a := &models.Assistant{}
	in.apply(a)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, storeError("create assistant", err)
	}
	log.Infof("[Assistant] %q (%s) created by %d", a.Name, a.DomainCode, caller.UserID)

	res := &Result{Assistant: a}
	res.Warning = s.audit(ctx, caller, a, models.ActivityAssistantCreated,
		fmt.Sprintf("Assistant %s created", a.Name), map[string]any{"domain_code": a.DomainCode, "knowledge_bank": a.KnowledgeBank, "state": a.State})
	return res, nil
}

// Update replaces the editable fields of assistant id.
func (s *Service) Update(ctx context.Context, caller usercontext.UserContext, id uint, in Input) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get assistant", err)
	}

	before := *a
	in.apply(a)
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, storeError("update assistant", err)
	}

	res := &Result{Assistant: a}
	res.Warning = s.audit(ctx, caller, a, models.ActivityAssistantUpdated,
		fmt.Sprintf("Assistant %s updated", a.Name), map[string]any{"changes": diff(before, *a)})
	return res, nil
}

// SetState activates or deactivates assistant id. reason is mandatory and
// only kept in the activity log.
func (s *Service) SetState(ctx context.Context, caller usercontext.UserContext, id uint, state, reason string) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	state = strings.TrimSpace(state)
	if !models.IsValidAssistantState(state) {
		return nil, apperr.Validation("state", "Valid state is required (Active or Inactive)")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason", "Reason is required")
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get assistant", err)
	}
	previous := a.State
	if _, err := s.repo.SetState(ctx, []uint{id}, state); err != nil {
		return nil, storeError("set assistant state", err)
	}
	a.State = state
	log.Infof("[Assistant] %q %s -> %s by %d", a.Name, previous, state, caller.UserID)

	res := &Result{Assistant: a}
	res.Warning = s.audit(ctx, caller, a, models.ActivityAssistantState,
		fmt.Sprintf("Assistant %s set to %s: %s", a.Name, state, reason),
		map[string]any{"from_state": previous, "to_state": state, "reason": reason})
	return res, nil
}

// BulkSetState sets state on every assistant in ids. Unknown ids are reported in Missing.
func (s *Service) BulkSetState(ctx context.Context, caller usercontext.UserContext, ids []uint, state, reason string) (*BulkResult, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	state = strings.TrimSpace(state)
	if !models.IsValidAssistantState(state) {
		return nil, apperr.Validation("state", "Valid state is required (Active or Inactive)")
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("ids", "at least one assistant is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBulkReason
	}

	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore("load assistants", err)
	}
	res := &BulkResult{Missing: missingIDs(ids, found)}
	if len(found) == 0 {
		return res, nil
	}

	foundIDs := make([]uint, 0, len(found))
	for _, a := range found {
		foundIDs = append(foundIDs, a.ID)
	}
	res.Updated, err = s.repo.SetState(ctx, foundIDs, state)
	if err != nil {
		return nil, storeError("bulk set assistant state", err)
	}

	for i := range found {
		previous := found[i].State
		found[i].State = state
		if err := s.audit(ctx, caller, &found[i], models.ActivityAssistantState,
			fmt.Sprintf("Assistant %s set to %s: %s", found[i].Name, state, reason),
			map[string]any{"from_state": previous, "to_state": state, "reason": reason, "bulk": true}); err != nil {
			res.Warnings = append(res.Warnings, err)
		}
	}
	res.Items = found
	return res, nil
}

// Delete removes assistant id.
func (s *Service) Delete(ctx context.Context, caller usercontext.UserContext, id uint) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get assistant", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, storeError("delete assistant", err)
	}
	res := &Result{Assistant: a}
	res.Warning = s.audit(ctx, caller, a, models.ActivityAssistantDeleted,
		fmt.Sprintf("Assistant %s deleted", a.Name), map[string]any{"domain_code": a.DomainCode})
	return res, nil
}

func (s *Service) check(ctx context.Context, in *Input) error {
	if err := in.Validate(); err != nil {
		return err
	}
	ok, err := s.repo.KnowledgeBankExists(ctx, in.KnowledgeBank)
	if err != nil {
		return apperr.FromStore("lookup knowledge bank", err)
	}
	if !ok {
		return apperr.Validation("knowledge_bank", "Knowledge bank assignment failed. Please select a valid knowledge bank.")
	}
	return nil
}

func (s *Service) audit(ctx context.Context, caller usercontext.UserContext, a *models.Assistant, activity, description string, meta map[string]any) error {
	if s.auditor == nil {
		return nil
	}
	_, err := s.auditor.Record(ctx, audit.Entry{
		AdminUserID:  caller.UserID,
		EntityType:   models.EntityAssistant,
		EntityID:     audit.EntityIDFor(a.ID),
		ActivityType: activity,
		Description:  description,
		Metadata:     meta,
	})
	return err
}

func missingIDs(want []uint, found []models.Assistant) []uint {
	have := make(map[uint]struct{}, len(found))
	for _, a := range found {
		have[a.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func diff(before, after models.Assistant) map[string][2]any {
	changes := map[string][2]any{}
	add := func(field string, a, b any) {
		if a != b {
			changes[field] = [2]any{a, b}
		}
	}
	add("name", before.Name, after.Name)
	add("description", before.Description, after.Description)
	add("domain_code", before.DomainCode, after.DomainCode)
	add("knowledge_bank", before.KnowledgeBank, after.KnowledgeBank)
	add("state", before.State, after.State)
	add("credits_per_message", before.CreditsPerMessage, after.CreditsPerMessage)
	add("openai_assistant_id", derefString(before.OpenAIAssistantID), derefString(after.OpenAIAssistantID))
	return changes
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
