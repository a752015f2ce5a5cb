package utils

import "go.uber.org/zap"

// NewProductionLogger returns a production zap logger, or the error from building it.
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewLogger returns a development logger when debug is set, production otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
