package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePortablePlan(t *testing.T) {
	result := Validate(plan(t, "find where username = :u order by createdAt", "u"))

	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)
}

func TestValidateRightJoin(t *testing.T) {
	result := Validate(plan(t, "from UserEntity u right join u.profile p"))

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "RIGHT join")
}

func TestValidateCaseFolding(t *testing.T) {
	result := Validate(plan(t, "find where lower(username) = lower(:u)", "u"))

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "case folding")
}

func TestValidateLikeOnNonText(t *testing.T) {
	result := Validate(plan(t, "find where age like :a", "a"))

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "cast to text")
}

func TestValidateNilPlan(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsPortable)
}
