// Package accounts administers user accounts, their roles and API keys.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

const MinPasswordLength = 8

// Auditor records activity entries and resolves admin names.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (*models.AdminActivityLog, error)
	AdminName(ctx context.Context, adminID uint) string
}

// CreditAccounts opens the credit account of a new user.
type CreditAccounts interface {
	EnsureAccount(ctx context.Context, userID uint) (*models.UserCredit, error)
}

// Summary is a user with the figures shown in admin listings.
type Summary struct {
	models.User
	Balance      int64                    `json:"balance"`
	Subscription *models.UserSubscription `json:"subscription"`
}

// Result wraps a mutated user. Warning carries an audit failure.
type Result struct {
	User    *models.User `json:"user"`
	Warning error        `json:"-"`
}

// CreateInput is the payload for Create.
type CreateInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ProfileInput changes profile fields. Nil fields are left untouched.
type ProfileInput struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

// BulkInput applies the same active flag and/or role to many users.
type BulkInput struct {
	IDs    []uint  `json:"ids"`
	Active *bool   `json:"is_active"`
	Role   *string `json:"role"`
}

// BulkResult reports a bulk update.
type BulkResult struct {
	Updated  int64   `json:"updated"`
	Missing  []uint  `json:"missing,omitempty"`
	Warnings []error `json:"-"`
}

// Service administers users.
type Service struct {
	repo    Repository
	auditor Auditor
	credits CreditAccounts
	now     func() time.Time
}

// NewService creates an accounts service. auditor and credits may be nil.
func NewService(repo Repository, auditor Auditor, credits CreditAccounts) *Service {
	return &Service{repo: repo, auditor: auditor, credits: credits, now: time.Now}
}

// NewServiceFromDB creates an accounts service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, auditor Auditor, credits CreditAccounts) *Service {
	return NewService(NewRepository(db), auditor, credits)
}

// List returns users matching filter with their balance and active subscription.
func (s *Service) List(ctx context.Context, filter Filter) ([]Summary, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.FromStore("list users", err)
	}
	out, err := s.summarize(ctx, users)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Search is List restricted to a free-text query on email and name.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	out, _, err := s.List(ctx, Filter{Search: query, Limit: limit})
	return out, err
}

// Get returns one user with balance and subscription.
func (s *Service) Get(ctx context.Context, id uint) (*Summary, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}
	out, err := s.summarize(ctx, []models.User{*u})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *Service) summarize(ctx context.Context, users []models.User) ([]Summary, error) {
	out := make([]Summary, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	balances, err := s.repo.Balances(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore("load balances", err)
	}
	subs, err := s.repo.Subscriptions(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore("load subscriptions", err)
	}
	for i, u := range users {
		out[i] = Summary{User: u, Balance: balances[u.ID]}
		if sub, ok := subs[u.ID]; ok {
			sub := sub
			out[i].Subscription = &sub
		}
	}
	return out, nil
}

// Create registers a user with a bcrypt password hash and opens a credit account.
func (s *Service) Create(ctx context.Context, caller usercontext.UserContext, in CreateInput) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Validation("password", "Password must be at least %d characters long", MinPasswordLength)
	}
	role := strings.TrimSpace(in.Role)
	if role != "" && !models.IsValidRole(role) {
		return nil, apperr.Validation("role", "Role must be standard or admin")
	}

	u, err := models.CreateUser(in.FullName, in.Email, in.Password, role)
	if err != nil {
		return nil, validationFrom(err)
	}
	if err := s.ensureEmailFree(ctx, u.Email, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, userStoreError("create user", err)
	}
	log.Infof("[Accounts] user %d (%s) created by %d", u.ID, u.Email, caller.UserID)

	if s.credits != nil {
		if _, err := s.credits.EnsureAccount(ctx, u.ID); err != nil {
			log.Errorf("[Accounts] credit account for user %d not created: %v", u.ID, err)
		}
	}

	res := &Result{User: u}
	res.Warning = s.audit(ctx, caller, u.ID, models.ActivityUserCreated,
		fmt.Sprintf("User %s created by %s", u.Email, s.adminName(ctx, caller)),
		map[string]any{"email": u.Email, "role": u.Role})
	return res, nil
}

// UpdateProfile changes name and/or email of user id.
func (s *Service) UpdateProfile(ctx context.Context, caller usercontext.UserContext, id uint, in ProfileInput) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}

	updates := map[string]interface{}{}
	changes := map[string][2]string{}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if len(name) > 150 {
			return nil, apperr.Validation("full_name", "Full name must be at most 150 characters long")
		}
		if name != u.FullName {
			updates["full_name"] = name
			changes["full_name"] = [2]string{u.FullName, name}
			u.FullName = name
		}
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validator.New().Var(email, "required,email,max=200"); err != nil {
			return nil, apperr.Validation("email", "A valid email address is required")
		}
		if email != u.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			updates["email"] = email
			changes["email"] = [2]string{u.Email, email}
			u.Email = email
		}
	}
	if len(updates) == 0 {
		return &Result{User: u}, nil
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, userStoreError("update user", err)
	}

	res := &Result{User: u}
	res.Warning = s.audit(ctx, caller, id, models.ActivityProfileUpdate,
		fmt.Sprintf("Profile of %s updated by %s", u.Email, s.adminName(ctx, caller)),
		map[string]any{"changes": changes})
	return res, nil
}

// SetActive enables or disables login for user id.
func (s *Service) SetActive(ctx context.Context, caller usercontext.UserContext, id uint, active bool) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if !active && id == caller.UserID {
		return nil, apperr.Validation("is_active", "You cannot deactivate your own account")
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}
	if u.IsActive == active {
		return &Result{User: u}, nil
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"is_active": active}); err != nil {
		return nil, apperr.FromStore("update user status", err)
	}
	u.IsActive = active

	res := &Result{User: u}
	res.Warning = s.audit(ctx, caller, id, models.ActivityStatusChange,
		fmt.Sprintf("User %s %s by %s", u.Email, statusWord(active), s.adminName(ctx, caller)),
		map[string]any{"is_active": active})
	return res, nil
}

// ChangeRole sets the role of user id. Admins cannot demote themselves.
func (s *Service) ChangeRole(ctx context.Context, caller usercontext.UserContext, id uint, role string) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	role = strings.TrimSpace(role)
	if !models.IsValidRole(role) {
		return nil, apperr.Validation("role", "Role must be standard or admin")
	}
	if id == caller.UserID && role != models.ROLE_ADMIN {
		return nil, apperr.Validation("role", "You cannot remove your own admin role")
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}
	if u.Role == role {
		return &Result{User: u}, nil
	}
	previous := u.Role
	if err := s.repo.Update(ctx, id, map[string]interface{}{"role": role}); err != nil {
		return nil, apperr.FromStore("update user role", err)
	}
	u.Role = role

	res := &Result{User: u}
	res.Warning = s.audit(ctx, caller, id, models.ActivityRoleChange,
		fmt.Sprintf("Role of %s changed from %s to %s by %s", u.Email, previous, role, s.adminName(ctx, caller)),
		map[string]any{"from_role": previous, "to_role": role})
	return res, nil
}

// Deactivate soft-deletes user id: login is disabled and API keys are revoked.
func (s *Service) Deactivate(ctx context.Context, caller usercontext.UserContext, id uint) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if id == caller.UserID {
		return nil, apperr.Validation("id", "You cannot delete your own account")
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return nil, apperr.FromStore("deactivate user", err)
	}
	u.IsActive = false
	revoked, err := s.repo.RevokeAPIKeys(ctx, id, 0, s.now())
	if err != nil {
		log.Warnf("[Accounts] revoking API keys of user %d failed: %v", id, err)
	}

	res := &Result{User: u}
	res.Warning = s.audit(ctx, caller, id, models.ActivityUserDeactivated,
		fmt.Sprintf("User %s deactivated by %s", u.Email, s.adminName(ctx, caller)),
		map[string]any{"revoked_api_keys": revoked})
	return res, nil
}

// BulkUpdate applies in to every listed user, writing one audit entry per user.
func (s *Service) BulkUpdate(ctx context.Context, caller usercontext.UserContext, in BulkInput) (*BulkResult, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if len(in.IDs) == 0 {
		return nil, apperr.Validation("ids", "at least one user is required")
	}
	if in.Active == nil && in.Role == nil {
		return nil, apperr.Validation("is_active", "nothing to update")
	}
	updates := map[string]interface{}{}
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if !models.IsValidRole(role) {
			return nil, apperr.Validation("role", "Role must be standard or admin")
		}
		updates["role"] = role
	}
	if in.Active != nil {
		updates["is_active"] = *in.Active
	}
	for _, id := range in.IDs {
		if id != caller.UserID {
			continue
		}
		if (in.Active != nil && !*in.Active) || (in.Role != nil && updates["role"] != models.ROLE_ADMIN) {
			return nil, apperr.Validation("ids", "You cannot change your own status or role in a bulk update")
		}
	}

	users, err := s.repo.GetMany(ctx, in.IDs)
	if err != nil {
		return nil, apperr.FromStore("load users", err)
	}
	res := &BulkResult{Missing: missingIDs(in.IDs, users)}
	if len(users) == 0 {
		return res, nil
	}
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	if res.Updated, err = s.repo.UpdateMany(ctx, ids, updates); err != nil {
		return nil, apperr.FromStore("bulk update users", err)
	}

	admin := s.adminName(ctx, caller)
	for _, u := range users {
		meta := map[string]any{"bulk": true}
		for k, v := range updates {
			meta[k] = v
		}
		activity := models.ActivityStatusChange
		if in.Active == nil {
			activity = models.ActivityRoleChange
			meta["from_role"] = u.Role
		}
		if err := s.audit(ctx, caller, u.ID, activity,
			fmt.Sprintf("Bulk update of %s by %s", u.Email, admin), meta); err != nil {
			res.Warnings = append(res.Warnings, err)
		}
	}
	return res, nil
}

// Authenticate checks email and password for a session login and stamps last_login_at.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotAuthenticated
		}
		return nil, apperr.FromStore("find user", err)
	}
	if !u.IsActive || !u.CheckPassword(password) {
		return nil, apperr.ErrNotAuthenticated
	}
	now := s.now()
	if err := s.repo.Update(ctx, u.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		log.Warnf("[Accounts] last login of user %d not stored: %v", u.ID, err)
	}
	u.LastLoginAt = &now
	return u, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, self uint) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperr.FromStore("find user", err)
	}
	if existing.ID != self {
		return apperr.Validation("email", "Email address is already registered")
	}
	return nil
}

func (s *Service) adminName(ctx context.Context, caller usercontext.UserContext) string {
	if s.auditor == nil {
		return models.UnknownAdminName
	}
	return s.auditor.AdminName(ctx, caller.UserID)
}

func (s *Service) audit(ctx context.Context, caller usercontext.UserContext, userID uint, activity, description string, meta map[string]any) error {
	if s.auditor == nil {
		return nil
	}
	_, err := s.auditor.Record(ctx, audit.Entry{
		AdminUserID:  caller.UserID,
		UserID:       &userID,
		EntityType:   models.EntityUser,
		EntityID:     audit.EntityIDFor(userID),
		ActivityType: activity,
		Description:  description,
		Metadata:     meta,
	})
	return err
}

// validationFrom converts validator errors from models.CreateUser.
func validationFrom(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	ve := &apperr.ValidationError{Fields: map[string]string{}}
	for _, fe := range fieldErrs {
		field := jsonField(fe.Field())
		msg := fmt.Sprintf("%s is invalid", field)
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "email":
			msg = "A valid email address is required"
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		ve.Fields[field] = msg
		if ve.Field == "" {
			ve.Field, ve.Message = field, msg
		}
	}
	return ve
}

func jsonField(name string) string {
	switch name {
	case "FullName":
		return "full_name"
	case "Email":
		return "email"
	case "Role":
		return "role"
	}
	return strings.ToLower(name)
}

func userStoreError(op string, err error) error {
	err = apperr.FromStore(op, err)
	var remote *apperr.RemoteError
	if errors.As(err, &remote) && remote.Constraint == apperr.ConstraintUnique {
		remote.Message = "Email address is already registered"
	}
	return err
}

func statusWord(active bool) string {
	if active {
		return "activated"
	}
	return "deactivated"
}

func missingIDs(want []uint, found []models.User) []uint {
	have := make(map[uint]struct{}, len(found))
	for _, u := range found {
		have[u.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
