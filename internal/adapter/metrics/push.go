package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything g gathers to a Pushgateway under job. One-shot stage
// runs exit before a scrape could reach them.
func Push(ctx context.Context, gatewayURL, job string, g prometheus.Gatherer, grouping map[string]string) error {
	p := push.New(gatewayURL, job).Gatherer(g)
	for name, value := range grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
