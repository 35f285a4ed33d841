package cmd

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toka-os/toka-core/internal/auth"
	"github.com/toka-os/toka-core/internal/kernel"
	"github.com/toka-os/toka-core/internal/runtime"
	"github.com/toka-os/toka-core/internal/types"
)

// submitRequest is the wire shape of a POST /v1/messages body. Kind
// selects which of the operation-specific fields are meaningful,
// mirroring types.Operation's own tagged-sum shape.
type submitRequest struct {
	Origin     string `json:"origin" binding:"required"`
	Capability string `json:"capability" binding:"required"`
	Operation  struct {
		Kind            string `json:"kind" binding:"required"`
		Agent           string `json:"agent"`
		TaskDescription string `json:"task_description"`
		Parent          string `json:"parent"`
		AgentName       string `json:"agent_name"`
		ObservationData []byte `json:"observation_data"`
	} `json:"operation" binding:"required"`
}

func (r submitRequest) toMessage() (types.Message, error) {
	origin, err := types.ParseEntityID(r.Origin)
	if err != nil {
		return types.Message{}, err
	}

	var op types.Operation
	switch r.Operation.Kind {
	case "schedule_task":
		agent, err := types.ParseEntityID(r.Operation.Agent)
		if err != nil {
			return types.Message{}, err
		}
		task, err := types.NewTaskSpec(r.Operation.TaskDescription)
		if err != nil {
			return types.Message{}, err
		}
		op = types.NewScheduleAgentTask(agent, task)
	case "spawn_agent":
		parent, err := types.ParseEntityID(r.Operation.Parent)
		if err != nil {
			return types.Message{}, err
		}
		spec, err := types.NewAgentSpec(r.Operation.AgentName, parent)
		if err != nil {
			return types.Message{}, err
		}
		op = types.NewSpawnSubAgent(parent, spec)
	case "emit_observation":
		agent, err := types.ParseEntityID(r.Operation.Agent)
		if err != nil {
			return types.Message{}, err
		}
		op = types.NewEmitObservation(agent, r.Operation.ObservationData)
	default:
		return types.Message{}, &kernel.Error{Kind: kernel.InvalidInput, Reason: "unknown operation kind " + r.Operation.Kind}
	}

	return types.Message{Origin: origin, Capability: r.Capability, Op: op}, nil
}

// eventResponse is the wire shape of an emitted KernelEvent, with only
// the fields relevant to its Kind populated.
type eventResponse struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`

	TaskAgent string `json:"task_agent,omitempty"`
	TaskDesc  string `json:"task_description,omitempty"`

	SpawnParent string `json:"spawn_parent,omitempty"`
	SpawnChild  string `json:"spawn_child,omitempty"`
	SpawnName   string `json:"spawn_name,omitempty"`

	ObsAgent string `json:"observation_agent,omitempty"`
	ObsData  []byte `json:"observation_data,omitempty"`
}

func toEventResponse(id string, event types.KernelEvent) eventResponse {
	resp := eventResponse{EventID: id, Timestamp: event.Timestamp}
	switch event.Kind {
	case types.EventTaskScheduled:
		resp.Kind = "task_scheduled"
		resp.TaskAgent = event.TaskAgent.String()
		resp.TaskDesc = event.TaskDesc
	case types.EventAgentSpawned:
		resp.Kind = "agent_spawned"
		resp.SpawnParent = event.SpawnParent.String()
		resp.SpawnChild = event.SpawnChild.String()
		resp.SpawnName = event.SpawnName
	case types.EventObservation:
		resp.Kind = "observation_emitted"
		resp.ObsAgent = event.ObsAgent.String()
		resp.ObsData = event.ObsData
	default:
		resp.Kind = "unknown"
	}
	return resp
}

// submitHandler decodes a submitRequest, forwards it to rt.Submit, and
// maps the typed kernel/auth/runtime errors this package can return to
// HTTP status codes without leaking an auth oracle (every authentication
// failure, whether a kernel Unauthorized or a raw auth.Error, surfaces
// identically as 401, per spec.md's "auth failures are not
// distinguished to the caller").
func submitHandler(rt *runtime.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg, err := req.toMessage()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id, event, err := rt.Submit(c.Request.Context(), msg)
		if err != nil {
			status, body := classifySubmitError(err)
			c.JSON(status, body)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"event": toEventResponse(id.String(), event)})
	}
}

func classifySubmitError(err error) (int, gin.H) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, gin.H{"error": "capability rejected"}
	}

	var kernelErr *kernel.Error
	if errors.As(err, &kernelErr) {
		switch kernelErr.Kind {
		case kernel.InvalidInput:
			return http.StatusBadRequest, gin.H{"error": kernelErr.Error()}
		case kernel.Unauthorized:
			return http.StatusUnauthorized, gin.H{"error": "capability rejected"}
		case kernel.CapabilityDenied:
			return http.StatusForbidden, gin.H{"error": kernelErr.Error()}
		case kernel.UnknownAgent:
			return http.StatusNotFound, gin.H{"error": kernelErr.Error()}
		case kernel.QueueFull:
			return http.StatusTooManyRequests, gin.H{"error": kernelErr.Error()}
		default:
			return http.StatusInternalServerError, gin.H{"error": kernelErr.Error()}
		}
	}

	var runtimeErr *runtime.Error
	if errors.As(err, &runtimeErr) {
		if runtimeErr.Kind == runtime.ShuttingDown {
			return http.StatusServiceUnavailable, gin.H{"error": runtimeErr.Error()}
		}
		return http.StatusInternalServerError, gin.H{"error": runtimeErr.Error()}
	}

	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}

// healthHandler reports rt.Health() as JSON, answering 503 once the
// drain task has gone fatal.
func healthHandler(rt *runtime.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := rt.Health()
		status := http.StatusOK
		if !h.Healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}
