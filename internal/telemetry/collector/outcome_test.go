package collector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   Outcome
	}{
		{200, nil, Success},
		{204, nil, Success},
		{299, nil, Success},
		{400, nil, BadRequest},
		{403, nil, AuthRejected},
		{409, nil, DuplicateReject},
		{300, nil, Transient},
		{401, nil, Transient},
		{404, nil, Transient},
		{429, nil, Transient},
		{500, nil, Transient},
		{599, nil, Transient},
		{0, nil, WeirdStatus},
		{199, nil, WeirdStatus},
		{600, nil, WeirdStatus},
		{-1, nil, WeirdStatus},
		{200, errors.New("connection reset"), Transient},
		{0, errors.New("timeout"), Transient},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, tt.err), "status %d err %v", tt.status, tt.err)
	}
}

func TestOutcome_Effects(t *testing.T) {
	tests := []struct {
		outcome Outcome
		drops   bool
		reports bool
		name    string
	}{
		{Success, true, false, "success"},
		{BadRequest, true, true, "bad_request"},
		{AuthRejected, true, true, "auth_rejected"},
		{DuplicateReject, true, false, "duplicate_reject"},
		{Transient, false, false, "transient"},
		{WeirdStatus, false, false, "weird_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.drops, tt.outcome.Drops())
			assert.Equal(t, tt.drops, tt.outcome.ResetsBackoff())
			assert.Equal(t, tt.reports, tt.outcome.Reports())
			assert.Equal(t, tt.name, tt.outcome.String())
		})
	}
	assert.Equal(t, "unknown", Outcome(42).String())
}
