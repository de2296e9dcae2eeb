package shipping

import (
	"errors"
	"fmt"
)

var ErrNoInvoice = errors.New("order has no invoice")

type Step int

const (
	StepCounterparty Step = iota + 1
	StepContact
	StepDeliveryCost
	StepInvoice
	StepPersist
)

func (s Step) String() string {
	switch s {
	case StepCounterparty:
		return "create counterparty"
	case StepContact:
		return "create contact"
	case StepDeliveryCost:
		return "calculate delivery cost"
	case StepInvoice:
		return "generate invoice"
	case StepPersist:
		return "persist invoice"
	}
	return fmt.Sprintf("step %d", int(s))
}

// PartialFailureError reports a workflow that stopped after the carrier had
// already created records. Those records are not rolled back; the refs are
// kept so an operator can find them.
type PartialFailureError struct {
	OrderID         int64
	Step            Step
	CounterpartyRef string
	ContactRef      string
	TrackingNumber  string
	Err             error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("invoice for order %d failed at %s (counterparty %s", e.OrderID, e.Step, e.CounterpartyRef)
	if e.ContactRef != "" {
		msg += ", contact " + e.ContactRef
	}
	if e.TrackingNumber != "" {
		msg += ", document " + e.TrackingNumber
	}
	return msg + "): " + e.Err.Error()
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
