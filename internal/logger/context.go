package logger

// Component-specific logger functions

// CLI returns a logger for CLI operations
func CLI() Logger {
	return WithField("component", "cli")
}

// DB returns a logger for database operations
func DB() Logger {
	return WithField("component", "db")
}

// HTTP returns a logger for the HTTP server
func HTTP() Logger {
	return WithField("component", "http")
}

// Schema returns a logger for schema plan and apply
func Schema() Logger {
	return WithField("component", "schema")
}

// Goals returns a logger for the goal service
func Goals() Logger {
	return WithField("component", "goals")
}
