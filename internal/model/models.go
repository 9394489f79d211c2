package model

// Models lists every persisted type in migration order
func Models() []interface{} {
	return []interface{}{
		&Template{},
		&PlatformSettings{},
		&Tenant{},
		&User{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&TraceEvent{},
	}
}
