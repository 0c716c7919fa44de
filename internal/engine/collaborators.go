package engine

import (
	"context"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// TaskMailbox is the downstream task dispatcher consumed by the IMMEDIATE
// executor (spec.md §6). It is an external collaborator: the core never
// inspects the handle's eventual outcome.
type TaskMailbox interface {
	CreateTask(ctx context.Context, req TaskRequest) (TaskHandle, error)
}

// TaskRequest mirrors the mailbox contract in spec.md §6.
type TaskRequest struct {
	RefundCollector models.Principal
	AVSFee          uint64
	OperatorSetID   string
	Payload         []byte
}

// TaskHandle is the opaque value returned by the mailbox.
type TaskHandle []byte

// OperatorRegistry is the external lookup consumed by the COORDINATION
// executor to size a quorum.
type OperatorRegistry interface {
	OperatorCount(ctx context.Context, operatorSetID string) (int, error)
}

// FeeSink is the external custody sink that registration and execution-start
// fees are forwarded to.
type FeeSink interface {
	Transfer(ctx context.Context, amount uint64) error
}

// coordinationFallbackOperatorCount is the documented reference-parity
// fallback from spec.md §4.4 when the operator registry is unavailable.
const coordinationFallbackOperatorCount = 5
