package valves

// RegisterDefaults installs the gateway's default valve catalogue.
func RegisterDefaults(m *Manager) {
	m.RegisterCategory(Category{Name: "core", Title: "Core Features", Description: "Essential gateway functionality", Icon: "gear", Order: 1})
	m.RegisterCategory(Category{Name: "routing", Title: "Routing", Description: "Agent selection behavior", Icon: "route", Order: 2})
	m.RegisterCategory(Category{Name: "agents", Title: "Agent Configuration", Description: "Agent execution budgets", Icon: "robot", Order: 3})
	m.RegisterCategory(Category{Name: "backend", Title: "Backend", Description: "Knowledge backend connection", Icon: "server", Order: 4})
	m.RegisterCategory(Category{Name: "shadow", Title: "Shadow Observer", Description: "Background conversation mining", Icon: "eye", Order: 5})
	m.RegisterCategory(Category{Name: "logging", Title: "Logging", Description: "Log retention and exposure", Icon: "scroll", Order: 6})
	m.RegisterCategory(Category{Name: "server", Title: "Server", Description: "HTTP listener behavior", Icon: "plug", Order: 7})

	m.Register(Spec{
		Name: "debug_mode", Type: TypeBool, Default: false, Category: "core",
		Title: "Debug Mode", Description: "Informational flag; the log level is set from startup configuration and this value does not change it.",
	})
	m.Register(Spec{
		Name: "max_concurrent_tools", Type: TypeInt, Default: 4, Category: "core",
		Title: "Max Concurrent Tools", Description: "Upper bound on tool calls executed in parallel within one iteration.",
		Validators: []Validator{IntRange(1, 16)},
	})
	m.Register(Spec{
		Name: "request_timeout_seconds", Type: TypeInt, Default: 30, Category: "core",
		Title: "Request Timeout", Description: "Overall per-request timeout in seconds.",
		Validators: []Validator{IntRange(5, 120)},
	})

	m.Register(Spec{
		Name: "routing_confidence_threshold", Type: TypeFloat, Default: 0.5, Category: "routing",
		Title: "Routing Confidence Threshold", Description: "Informational threshold surfaced to callers; does not gate selection.",
		Validators: []Validator{FloatRange(0.0, 1.0)},
	})
	m.Register(Spec{
		Name: "enable_collaboration", Type: TypeBool, Default: true, Category: "routing",
		Title: "Enable Collaboration", Description: "Informational flag; routing decisions always list collaborator agents regardless of this value.",
	})

	m.Register(Spec{
		Name: "max_iterations", Type: TypeInt, Default: 10, Category: "agents",
		Title: "Max Iterations", Description: "Maximum LLM calls per turn before the loop stops.",
		Validators: []Validator{IntRange(1, 20)}, RestartRequired: true,
	})
	m.Register(Spec{
		Name: "max_wall_time_seconds", Type: TypeInt, Default: 60, Category: "agents",
		Title: "Max Wall Time", Description: "Maximum wall-clock seconds an agent run may take.",
		Validators: []Validator{IntRange(5, 300)}, RestartRequired: true,
	})

	m.Register(Spec{
		Name: "backend_base_url", Type: TypeURL, Default: "http://localhost:8420", Category: "backend",
		Title: "Backend Base URL", Description: "Base URL of the knowledge backend's /api/v1 surface.",
		Required: true, Validators: []Validator{NonEmpty()},
	})
	m.Register(Spec{
		Name: "backend_api_key", Type: TypeString, Default: "", Category: "backend",
		Title: "Backend API Key", Description: "Bearer token presented to the knowledge backend.",
		Required: true, Advanced: true,
	})
	m.Register(Spec{
		Name: "backend_timeout_seconds", Type: TypeInt, Default: 30, Category: "backend",
		Title: "Backend Timeout", Description: "Per-operation HTTP timeout for backend calls.",
		Validators: []Validator{IntRange(1, 120)},
	})

	m.Register(Spec{
		Name: "shadow_enabled", Type: TypeBool, Default: true, Category: "shadow",
		Title: "Shadow Observer Enabled", Description: "Run the background observation pipeline after each turn.",
	})
	m.Register(Spec{
		Name: "shadow_deadline_seconds", Type: TypeInt, Default: 30, Category: "shadow",
		Title: "Shadow Deadline", Description: "Independent deadline for one shadow observation task.",
		Validators: []Validator{IntRange(1, 120)},
	})
	m.Register(Spec{
		Name: "shadow_max_concurrency", Type: TypeInt, Default: 8, Category: "shadow",
		Title: "Shadow Max Concurrency", Description: "Maximum shadow tasks running concurrently across turns.",
		Validators: []Validator{IntRange(1, 64)},
	})

	m.Register(Spec{
		Name: "log_level", Type: TypeEnum, Default: "info", Category: "logging",
		Title: "Log Level", Description: "Minimum level surfaced by the admin logs endpoint.",
		EnumOptions: []string{"debug", "info", "warn", "error"},
	})
	m.Register(Spec{
		Name: "log_retention", Type: TypeInt, Default: 2000, Category: "logging",
		Title: "Log Retention", Description: "Number of log lines kept in the ring buffer.",
		Validators: []Validator{IntRange(100, 50000)},
	})
	m.Register(Spec{
		Name: "expose_logs_ui", Type: TypeBool, Default: false, Category: "logging",
		Title: "Expose Logs In Admin UI", Description: "When disabled, the admin logs endpoint refuses requests (403) instead of returning raw log records.",
	})

	m.Register(Spec{
		Name: "port", Type: TypeInt, Default: 8080, Category: "server",
		Title: "Port", Description: "HTTP listen port.",
		Validators: []Validator{IntRange(1, 65535)}, RestartRequired: true,
	})
	m.Register(Spec{
		Name: "port_recovery", Type: TypeBool, Default: false, Category: "server",
		Title: "Port Recovery", Description: "On bind failure, attempt to terminate a prior instance holding the port before retrying. Off by default; enable explicitly.",
	})
}
