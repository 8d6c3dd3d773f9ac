package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (bad config file, missing database)
	ExitDataError   = 3 // Data error (unreadable input, paper not found)
	ExitAPIError    = 4 // Semantic Scholar API error (auth, rate limit, network)
)
