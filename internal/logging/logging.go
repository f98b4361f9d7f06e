// README: Structured logger construction shared by all services.
package logging

import "go.uber.org/zap"

// New builds the process-wide zap logger. Development mode switches to the
// human-readable console encoder.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
