package main

import (
	"context"
	"errors"
	"fmt"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownInOrder drains in-flight requests before the app closes the
// database, Redis, the broker and the hub those requests use. The app is shut
// down even when draining fails or times out.
func shutdownInOrder(ctx context.Context, server, app shutdowner) error {
	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server failed: %w", err))
	}
	if err := app.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown app failed: %w", err))
	}
	return errors.Join(errs...)
}
