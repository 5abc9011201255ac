// Package actuator drives the alert lines produced by each cycle.
//
// The fusion core hands over one boolean per line; which physical output a
// line maps to is actuator configuration. GPIO writes a mapped line to its
// sysfs value file when the line changes. Webhook posts a notification when
// a line changes state, to Teams, Slack or a generic HTTP endpoint.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Actuator applies an alert vector.
type Actuator interface {
	Apply(ctx context.Context, lines fusion.AlertVector) error
}

// New builds the actuator selected by cfg. GPIO lines also notify the
// configured webhooks when any are listed.
func New(cfg config.ActuatorConfig) (Actuator, error) {
	switch cfg.Type {
	case "", "none":
		return Noop{}, nil
	case "gpio":
		if len(cfg.Webhooks) > 0 {
			return Multi{NewGPIO(cfg.GPIO), NewWebhook(cfg.Webhooks)}, nil
		}
		return NewGPIO(cfg.GPIO), nil
	case "webhook":
		return NewWebhook(cfg.Webhooks), nil
	default:
		return nil, fmt.Errorf("actuator: unsupported type %q", cfg.Type)
	}
}

// Noop discards every vector.
type Noop struct{}

// Apply implements Actuator.
func (Noop) Apply(context.Context, fusion.AlertVector) error { return nil }

// Multi applies the vector to each actuator in turn and joins the errors.
type Multi []Actuator

// Apply implements Actuator.
func (m Multi) Apply(ctx context.Context, lines fusion.AlertVector) error {
	var errs []error
	for _, a := range m {
		if err := a.Apply(ctx, lines); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
