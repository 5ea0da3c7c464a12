package model

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&Backend{},
		&Job{},
		&Workspace{},
		&Project{},
		&Session{},
		&ChatMessage{},
		&Score{},
		&PricingPlan{},
	}
}
