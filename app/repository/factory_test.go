package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestFactoryReturnsSingletons(t *testing.T) {
	f := NewFactory(&gorm.DB{})
	first := f.GetRepositories()
	assert.Same(t, first, f.GetRepositories())
	assert.NotNil(t, f.GetUserRepository())
	assert.NotNil(t, f.GetCreditRepository())
	assert.NotNil(t, f.GetSubscriptionRepository())
	assert.NotNil(t, f.GetActivityRepository())
	assert.NotNil(t, f.GetAssistantRepository())
	assert.NotNil(t, f.GetStatisticsRepository())
}
