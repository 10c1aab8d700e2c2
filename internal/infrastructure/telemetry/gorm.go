package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
)

// TraceDatabase registers the otelgorm plugin so every query runs
// inside a child span of the calling operation. Query variables stay
// out of the spans; payment references and tenant data must not land
// in the trace backend.
func TraceDatabase(db *gorm.DB) error {
	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName("postgres"),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return fmt.Errorf("register gorm tracing plugin: %w", err)
	}
	return nil
}
