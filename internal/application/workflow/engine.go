package workflow

import (
	"context"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
	domainwf "github.com/garyjia/voucher-desk/internal/domain/workflow"
)

// LifecycleEngine applies lifecycle transitions to issuances and offline
// intents, persists the new status and emits the matching domain event
type LifecycleEngine interface {
	// VoidIssuance moves an ISSUED or FAILED issuance to VOIDED
	VoidIssuance(ctx context.Context, id int64, reason, actor string) (*entity.Issuance, error)

	// AdvanceIntent fires trigger on the intent, applies mutate to it and
	// persists the result. mutate may be nil.
	AdvanceIntent(ctx context.Context, intent *entity.IssuanceIntent, trigger domainwf.Trigger, mutate func(*entity.IssuanceIntent)) error

	// CanFire reports whether trigger is permitted from the intent's status
	CanFire(intent *entity.IssuanceIntent, trigger domainwf.Trigger) bool
}
