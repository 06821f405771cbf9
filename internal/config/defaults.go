package config

import "time"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Port:         12345,
			MaxFrameSize: 16384,
			IdleTimeout:  Duration(30 * time.Second),
			Pipelining:   true,
		},
		Dispatch: DispatchConfig{
			MinSlots:        4,
			MaxSlots:        32,
			MaxJobsPerSlot:  10000,
			AllocateTimeout: Duration(5 * time.Second),
		},
		Admin: AdminConfig{
			Enabled:     true,
			Address:     "0.0.0.0:8081",
			MetricsPath: "/metrics",
			HTTP3:       false,
			Dashboard: DashboardConfig{
				Enabled:      false,
				StaticRoot:   "dashboard",
				StaticPrefix: "/dashboard/",
				CacheControl: "public, max-age=3600",
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Record: RecordConfig{
			Enabled:    false,
			Path:       "",
			BufferSize: 1024,
		},
		Handlers: HandlersConfig{
			RoutesFile: "",
		},
	}
}
