package mutations

import (
	"context"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
)

// Kind names a mutating action
type Kind string

const (
	KindConnectNodes Kind = "connect_nodes"
	KindUpdateClaim  Kind = "update_claim"
	KindDeleteLink   Kind = "delete_link"
)

// Result is the outcome of an optimistic mutation. Err is set when the
// mutation was rolled back.
type Result struct {
	Link  *entities.GraphLink
	Claim *entities.Claim
	Err   error
}

// Operation tracks one optimistic mutation from local apply to reconcile
// or rollback
type Operation struct {
	kind          Kind
	key           string
	provisionalID string
	done          chan struct{}
	result        Result
}

func newOperation(kind Kind, key, provisionalID string) *Operation {
	return &Operation{
		kind:          kind,
		key:           key,
		provisionalID: provisionalID,
		done:          make(chan struct{}),
	}
}

// Kind returns the mutation kind
func (o *Operation) Kind() Kind { return o.kind }

// Key returns the in-flight guard key
func (o *Operation) Key() string { return o.key }

// ProvisionalID returns the local id of an optimistically created entity,
// or the id of the entity being changed
func (o *Operation) ProvisionalID() string { return o.provisionalID }

// Done is closed once the store has been reconciled or rolled back
func (o *Operation) Done() <-chan struct{} { return o.done }

// Result returns the outcome. Only meaningful after Done is closed.
func (o *Operation) Result() Result {
	select {
	case <-o.done:
		return o.result
	default:
		return Result{}
	}
}

// Wait blocks until the operation settles or ctx ends
func (o *Operation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-o.done:
		return o.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (o *Operation) complete(r Result) {
	o.result = r
	close(o.done)
}
