package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := Validation("amount", "must be greater than zero, got %d", -5)

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "amount: must be greater than zero, got -5", err.Error())

	wrapped := fmt.Errorf("add credits: %w", err)
	var ve *ValidationError
	require.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, "amount", ve.Field)
}

func TestFromStore(t *testing.T) {
	tests := []struct {
		name       string
		in         error
		notFound   bool
		constraint Constraint
		keyName    string
	}{
		{name: "record not found", in: gorm.ErrRecordNotFound, notFound: true},
		{name: "duplicate entry", in: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Helper' for key 'assistants.name'"}, constraint: ConstraintUnique, keyName: "assistants.name"},
		{name: "check violated", in: &mysql.MySQLError{Number: 3819, Message: "Check constraint 'chk_user_credits_balance' is violated."}, constraint: ConstraintCheck, keyName: "chk_user_credits_balance"},
		{name: "foreign key", in: &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails (CONSTRAINT `fk_assistants_knowledge_bank` FOREIGN KEY)"}, constraint: ConstraintForeignKey, keyName: "fk_assistants_knowledge_bank"},
		{name: "not null", in: &mysql.MySQLError{Number: 1048, Message: "Column 'name' cannot be null"}, constraint: ConstraintNotNull},
		{name: "gorm duplicated key", in: gorm.ErrDuplicatedKey, constraint: ConstraintUnique},
		{name: "generic", in: errors.New("connection reset"), constraint: ConstraintNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStore("op", tt.in)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, errors.Is(err, ErrNotFound))
				return
			}
			var remote *RemoteError
			require.True(t, errors.As(err, &remote))
			assert.Equal(t, tt.constraint, remote.Constraint)
			assert.Equal(t, tt.keyName, remote.Name)
			assert.True(t, errors.Is(err, tt.in))
		})
	}
}

func TestFromStorePassesThroughTranslatedErrors(t *testing.T) {
	assert.Nil(t, FromStore("op", nil))

	insufficient := fmt.Errorf("deduct: %w", ErrInsufficientBalance)
	assert.Same(t, insufficient, FromStore("op", insufficient))

	remote := &RemoteError{Op: "inner", Constraint: ConstraintUnique, Err: errors.New("dup")}
	assert.Same(t, remote, FromStore("outer", remote))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(&mysql.MySQLError{Number: 3819}))
	assert.True(t, IsCheckViolation(&mysql.MySQLError{Number: 1690}))
	assert.True(t, IsCheckViolation(&RemoteError{Constraint: ConstraintCheck}))
	assert.False(t, IsCheckViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsCheckViolation(errors.New("boom")))
}

func TestAuditWarningUnwraps(t *testing.T) {
	cause := errors.New("db down")
	w := &AuditWarning{ActivityType: "credit_adjustment", Err: cause}

	assert.True(t, errors.Is(w, cause))
	assert.Contains(t, w.Error(), "credit_adjustment")
}
