package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck passes when one of the brokers answers a metadata request.
func ReadyCheck(brokers string) func(context.Context) error {
	list := SplitBrokers(brokers)
	return func(ctx context.Context) error {
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := &kafka.Dialer{Timeout: 2 * time.Second}
		var errs []error
		for _, broker := range list {
			if err := dialBroker(ctx, dialer, broker); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", broker, err))
				continue
			}
			return nil
		}
		return errors.Join(errs...)
	}
}

func dialBroker(ctx context.Context, dialer *kafka.Dialer, broker string) error {
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	_, err = conn.Brokers()
	return err
}
