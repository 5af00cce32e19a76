package assistant

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
)

var domainCodePattern = regexp.MustCompile(`^(USM[X0-9]{3}|ITIL|IT4IT)$`)

// Input is the editable part of an assistant.
type Input struct {
	Name              string  `json:"name" validate:"required,min=2,max=100"`
	Description       string  `json:"description" validate:"required,min=10,max=500"`
	DomainCode        string  `json:"domain_code" validate:"required,domaincode"`
	KnowledgeBank     string  `json:"knowledge_bank" validate:"required,max=100"`
	State             string  `json:"state" validate:"required,oneof=Active Inactive"`
	OpenAIAssistantID *string `json:"openai_assistant_id" validate:"omitempty,max=100"`
	CreditsPerMessage int     `json:"credits_per_message" validate:"min=1,max=1000"`
}

var fieldMessages = map[string]map[string]string{
	"name": {
		"required": "Name is required",
		"min":      "Name must be at least 2 characters long",
		"max":      "Name must be at most 100 characters long",
	},
	"description": {
		"required": "Description is required",
		"min":      "Description must be at least 10 characters long",
		"max":      "Description must be at most 500 characters long",
	},
	"domain_code": {
		"required":   "Domain is required",
		"domaincode": "Invalid USM code format. Use USMXXX, USM1XX-USM9XX, ITIL, or IT4IT",
	},
	"knowledge_bank": {
		"required": "Knowledge bank is required",
		"max":      "Knowledge bank name is too long",
	},
	"state": {
		"*": "Valid state is required (Active or Inactive)",
	},
	"openai_assistant_id": {
		"*": "OpenAI assistant ID must be at most 100 characters long",
	},
	"credits_per_message": {
		"*": "Credits per message must be between 1 and 1000",
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("domaincode", func(fl validator.FieldLevel) bool {
		return IsValidDomainCode(fl.Field().String())
	})
	return v
}

// NormalizeDomainCode trims and upper-cases a domain code.
func NormalizeDomainCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidDomainCode reports whether code, compared case-insensitively, is
// USM followed by three of X or 0-9, ITIL or IT4IT.
func IsValidDomainCode(code string) bool {
	return domainCodePattern.MatchString(NormalizeDomainCode(code))
}

// Normalize trims the input, upper-cases the domain code and fills defaults.
func (in *Input) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.DomainCode = NormalizeDomainCode(in.DomainCode)
	in.KnowledgeBank = strings.TrimSpace(in.KnowledgeBank)
	in.State = strings.TrimSpace(in.State)
	if in.State == "" {
		in.State = models.AssistantStateActive
	}
	if in.CreditsPerMessage == 0 {
		in.CreditsPerMessage = models.DefaultCreditsPerMessage
	}
	if in.OpenAIAssistantID != nil {
		id := strings.TrimSpace(*in.OpenAIAssistantID)
		if id == "" {
			in.OpenAIAssistantID = nil
		} else {
			in.OpenAIAssistantID = &id
		}
	}
}

// Validate normalizes in and returns an *apperr.ValidationError listing
// every failing field.
func (in *Input) Validate() error {
	in.Normalize()
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &apperr.ValidationError{Fields: map[string]string{}}
	for _, fe := range fieldErrs {
		field := fe.Field()
		msg := messageFor(field, fe.Tag())
		if _, seen := ve.Fields[field]; !seen {
			ve.Fields[field] = msg
		}
		if ve.Field == "" {
			ve.Field, ve.Message = field, msg
		}
	}
	return ve
}

func messageFor(field, tag string) string {
	if m, ok := fieldMessages[field]; ok {
		if msg, ok := m[tag]; ok {
			return msg
		}
		if msg, ok := m["*"]; ok {
			return msg
		}
	}
	return field + " is invalid"
}

func (in Input) apply(a *models.Assistant) {
	a.Name = in.Name
	a.Description = in.Description
	a.DomainCode = in.DomainCode
	a.KnowledgeBank = in.KnowledgeBank
	a.State = in.State
	a.OpenAIAssistantID = in.OpenAIAssistantID
	a.CreditsPerMessage = in.CreditsPerMessage
}

// storeError maps constraint failures to messages an editor can show.
func storeError(op string, err error) error {
	err = apperr.FromStore(op, err)
	var remote *apperr.RemoteError
	if !errors.As(err, &remote) {
		return err
	}
	switch remote.Constraint {
	case apperr.ConstraintCheck:
		if strings.Contains(remote.Name, "credits") {
			remote.Message = "Credits per message must be between 1 and 1000."
		} else {
			remote.Message = "Assistant state validation failed. Please ensure the state is set to Active or Inactive."
		}
	case apperr.ConstraintUnique:
		remote.Message = "An assistant with this name or OpenAI ID already exists. Please use different values."
	case apperr.ConstraintForeignKey:
		remote.Message = "Knowledge bank assignment failed. Please select a valid knowledge bank."
	case apperr.ConstraintNotNull:
		remote.Message = "Required fields are missing. Please fill in all mandatory information."
	}
	return remote
}
