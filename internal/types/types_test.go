package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskSpec(t *testing.T) {
	cases := []struct {
		name    string
		desc    string
		wantErr bool
	}{
		{"valid", "do the thing", false},
		{"empty", "", true},
		{"oversize", strings.Repeat("a", MaxTaskDescriptionLen+1), true},
		{"exactly max", strings.Repeat("a", MaxTaskDescriptionLen), false},
		{"exactly min", "x", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spec, err := NewTaskSpec(c.desc)
			if c.wantErr {
				require.Error(t, err)
				var ie *InvalidInputError
				assert.ErrorAs(t, err, &ie)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.desc, spec.Description())
		})
	}
}

func TestNewAgentSpec(t *testing.T) {
	parent := NewEntityID()

	cases := []struct {
		name    string
		agent   string
		wantErr bool
	}{
		{"valid", "worker", false},
		{"empty", "", true},
		{"oversize", strings.Repeat("a", MaxAgentNameLen+1), true},
		{"embedded nul", "bad\x00name", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spec, err := NewAgentSpec(c.agent, parent)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.agent, spec.Name)
			assert.Equal(t, parent, spec.Parent)
		})
	}
}

func TestMessageValidate(t *testing.T) {
	agent := NewEntityID()
	task, err := NewTaskSpec("x")
	require.NoError(t, err)

	t.Run("empty capability", func(t *testing.T) {
		msg := Message{Origin: agent, Capability: "", Op: NewScheduleAgentTask(agent, task)}
		assert.Error(t, msg.Validate())
	})

	t.Run("oversize capability", func(t *testing.T) {
		msg := Message{
			Origin:     agent,
			Capability: strings.Repeat("a", MaxCapabilityTokenLen+1),
			Op:         NewScheduleAgentTask(agent, task),
		}
		assert.Error(t, msg.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		msg := Message{Origin: agent, Capability: "tok", Op: NewScheduleAgentTask(agent, task)}
		assert.NoError(t, msg.Validate())
	})
}

func TestOperationValidateObservationBounds(t *testing.T) {
	agent := NewEntityID()

	t.Run("zero length is valid", func(t *testing.T) {
		op := NewEmitObservation(agent, nil)
		assert.NoError(t, op.Validate())
	})

	t.Run("oversize is invalid", func(t *testing.T) {
		op := NewEmitObservation(agent, make([]byte, MaxObservationDataLen+1))
		assert.Error(t, op.Validate())
	})

	t.Run("exactly max is valid", func(t *testing.T) {
		op := NewEmitObservation(agent, make([]byte, MaxObservationDataLen))
		assert.NoError(t, op.Validate())
	})
}

func TestEntityIDRoundTrip(t *testing.T) {
	id := NewEntityID()
	parsed, err := ParseEntityID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.True(t, RootEntityID.IsRoot())
	assert.False(t, id.IsRoot())
}

func TestEntityIDCompareTotalOrder(t *testing.T) {
	a := EntityID{0x01}
	b := EntityID{0x02}
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}
