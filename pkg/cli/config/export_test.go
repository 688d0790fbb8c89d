package config

// NewCredentialsForTest creates credentials for testing purposes
func NewCredentialsForTest(directoryPassword, identityUsername, identityPassword, slackWebhookURL string) *Credentials {
	return &Credentials{
		directoryPassword: directoryPassword,
		identityUsername:  identityUsername,
		identityPassword:  identityPassword,
		slackWebhookURL:   slackWebhookURL,
	}
}

// NewLoggerForTest creates a logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
