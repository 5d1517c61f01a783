package booking

// Authorize decides whether actor may move b to target. It does not check the lifecycle graph.
func Authorize(actor Actor, b *Booking, target Status) error {
	if allowed(actor, b, target) {
		return nil
	}
	return ErrNotAllowed
}

func allowed(actor Actor, b *Booking, target Status) bool {
	provider := actor.Role == RoleProvider && b.IsProvider(actor.ID)
	owner := actor.Role == RoleCustomer && b.IsOwner(actor.ID)

	switch target {
	case StatusConfirmed:
		// Gateway payments are confirmed by settlement, cash bookings by the provider.
		return actor.Role == RoleSystem || actor.Role == RoleAdmin ||
			(provider && b.PaymentMethod == PaymentMethodCash)
	case StatusProviderAssigned:
		return actor.Role == RoleAdmin || provider
	case StatusEnRoute, StatusInProgress:
		return provider
	case StatusCompleted:
		return actor.Role == RoleSystem
	case StatusCanceled:
		return owner || provider || actor.Role == RoleAdmin || actor.Role == RoleSystem
	case StatusDisputed:
		return owner || provider || actor.Role == RoleAdmin
	}
	return false
}

// AuthorizeCompletion decides whether actor may ask settlement to complete b.
func AuthorizeCompletion(actor Actor, b *Booking) error {
	if actor.Role == RoleAdmin || (actor.Role == RoleProvider && b.IsProvider(actor.ID)) {
		return nil
	}
	return ErrNotAllowed
}

// CanView reports whether actor may read b and its history.
func CanView(actor Actor, b *Booking) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleCustomer:
		return b.IsOwner(actor.ID)
	case RoleProvider:
		return b.IsProvider(actor.ID)
	}
	return false
}
