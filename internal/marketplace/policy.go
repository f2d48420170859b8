package marketplace

import (
	"fmt"
	"slices"

	"github.com/meujardineiro/backend/internal/session"
)

type Action string

const (
	ActionCreate          Action = "create"
	ActionAccept          Action = "accept"
	ActionProviderCounter Action = "provider_counter"
	ActionCustomerCounter Action = "customer_counter"
	ActionAcceptCounter   Action = "accept_counter"
	ActionStartTravel     Action = "start_travel"
	ActionStartWork       Action = "start_work"
	ActionComplete        Action = "complete"
	ActionCancel          Action = "cancel"
	ActionRate            Action = "rate"
)

// rule describes who may run an action against which orders. An empty
// to means the status is left alone.
type rule struct {
	roles []session.Role
	from  []Status
	to    Status
	// owns reports whether who may act on o. A nil owns means anyone
	// holding one of the roles.
	owns func(o *ServiceOrder, who session.Identity) bool
	// denied is the error returned when owns fails.
	denied error
}

var nonTerminal = []Status{
	StatusAwaitingAcceptance,
	StatusNegotiating,
	StatusAccepted,
	StatusEnRoute,
	StatusInProgress,
}

var rules = map[Action]rule{
	ActionCreate: {
		roles: []session.Role{session.RoleCustomer},
		to:    StatusAwaitingAcceptance,
	},
	ActionAccept: {
		roles:  []session.Role{session.RoleProvider},
		from:   []Status{StatusAwaitingAcceptance, StatusNegotiating},
		to:     StatusAccepted,
		owns:   unassigned,
		denied: errTaken,
	},
	ActionProviderCounter: {
		roles:  []session.Role{session.RoleProvider},
		from:   []Status{StatusAwaitingAcceptance, StatusNegotiating},
		to:     StatusNegotiating,
		owns:   unassigned,
		denied: errTaken,
	},
	ActionCustomerCounter: {
		roles:  []session.Role{session.RoleCustomer},
		from:   []Status{StatusNegotiating},
		owns:   customerOwns,
		denied: ErrUnauthorized,
	},
	ActionAcceptCounter: {
		roles:  []session.Role{session.RoleCustomer},
		from:   []Status{StatusNegotiating},
		to:     StatusAccepted,
		owns:   customerOwns,
		denied: ErrUnauthorized,
	},
	ActionStartTravel: {
		roles:  []session.Role{session.RoleProvider},
		from:   []Status{StatusAccepted},
		to:     StatusEnRoute,
		owns:   boundProvider,
		denied: ErrUnauthorized,
	},
	ActionStartWork: {
		roles:  []session.Role{session.RoleProvider},
		from:   []Status{StatusEnRoute},
		to:     StatusInProgress,
		owns:   boundProvider,
		denied: ErrUnauthorized,
	},
	ActionComplete: {
		roles:  []session.Role{session.RoleProvider},
		from:   []Status{StatusInProgress},
		to:     StatusCompleted,
		owns:   boundProvider,
		denied: ErrUnauthorized,
	},
	ActionCancel: {
		roles:  []session.Role{session.RoleCustomer, session.RoleProvider},
		from:   nonTerminal,
		to:     StatusCancelled,
		owns:   func(o *ServiceOrder, who session.Identity) bool { return customerOwns(o, who) || boundProvider(o, who) },
		denied: ErrUnauthorized,
	},
	ActionRate: {
		roles:  []session.Role{session.RoleCustomer},
		from:   []Status{StatusCompleted},
		owns:   customerOwns,
		denied: ErrUnauthorized,
	},
}

// advanceActions maps the target of a provider status advance to its action.
var advanceActions = map[Status]Action{
	StatusEnRoute:    ActionStartTravel,
	StatusInProgress: ActionStartWork,
	StatusCompleted:  ActionComplete,
}

func unassigned(o *ServiceOrder, _ session.Identity) bool {
	return o.ProviderID == nil
}

func customerOwns(o *ServiceOrder, who session.Identity) bool {
	return who.Role == session.RoleCustomer && o.CustomerID == who.UserID
}

func boundProvider(o *ServiceOrder, who session.Identity) bool {
	return who.Role == session.RoleProvider && o.ProviderID != nil && *o.ProviderID == who.UserID
}

// authorize checks role, ownership and source status, in that order. o may
// be nil for actions that do not target an existing order.
func authorize(a Action, o *ServiceOrder, who session.Identity) (rule, error) {
	r, ok := rules[a]
	if !ok {
		return rule{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, a)
	}
	if !slices.Contains(r.roles, who.Role) {
		return rule{}, fmt.Errorf("%w: role %q cannot %s", ErrUnauthorized, who.Role, a)
	}
	if o == nil {
		return r, nil
	}
	if r.owns != nil && !r.owns(o, who) {
		return rule{}, r.denied
	}
	if !slices.Contains(r.from, o.Status) {
		return rule{}, fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, a, o.Status)
	}
	return r, nil
}

// Allowed lists the actions who may currently run on o. Used to drive the
// dashboard buttons.
func Allowed(o *ServiceOrder, who session.Identity) []Action {
	var out []Action
	for _, a := range []Action{
		ActionAccept, ActionProviderCounter, ActionCustomerCounter, ActionAcceptCounter,
		ActionStartTravel, ActionStartWork, ActionComplete, ActionCancel, ActionRate,
	} {
		if _, err := authorize(a, o, who); err != nil {
			continue
		}
		switch a {
		case ActionAccept:
			if o.CustomerProposedValue == nil && o.ProviderProposedValue == nil {
				continue
			}
		case ActionAcceptCounter:
			if o.ProviderProposedValue == nil || o.CounterProviderID == nil {
				continue
			}
		case ActionRate:
			if o.Rating != nil {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
